package booth

import (
	"context"
	"image"
	"sync"

	"framebooth/capture"
	"framebooth/compositor"
)

// frameFeed adapts client-pushed preview frames into the capture.Camera
// interface. The latest decoded frame is the "current video frame"; waits
// are always bounded by the caller's context, never open-ended.
type frameFeed struct {
	mu       sync.Mutex
	latest   image.Image
	camErr   *capture.CameraError
	released bool
	// notify is closed and replaced whenever the feed state changes, waking
	// any goroutine blocked in Acquire or Frame.
	notify chan struct{}
}

func newFrameFeed() *frameFeed {
	return &frameFeed{notify: make(chan struct{})}
}

// push decodes and stores a frame from the client.
func (f *frameFeed) push(dataURL string) error {
	img, err := compositor.DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.latest = img
	f.camErr = nil
	f.released = false
	f.wakeLocked()
	f.mu.Unlock()
	return nil
}

// fail records a classified acquisition failure reported by the client.
func (f *frameFeed) fail(kind capture.CameraErrorKind) {
	switch kind {
	case capture.CameraPermissionDenied, capture.CameraNotFound, capture.CameraBusy, capture.CameraUnsupported:
	default:
		kind = capture.CameraUnsupported
	}
	f.mu.Lock()
	f.camErr = &capture.CameraError{Kind: kind}
	f.wakeLocked()
	f.mu.Unlock()
}

func (f *frameFeed) wakeLocked() {
	close(f.notify)
	f.notify = make(chan struct{})
}

// Acquire waits for either the first frame or a classified client error.
func (f *frameFeed) Acquire(ctx context.Context) error {
	for {
		f.mu.Lock()
		if f.camErr != nil {
			err := f.camErr
			f.mu.Unlock()
			return err
		}
		if f.latest != nil {
			f.released = false
			f.mu.Unlock()
			return nil
		}
		wait := f.notify
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return &capture.CameraError{Kind: capture.CameraNotFound, Err: ctx.Err()}
		case <-wait:
		}
	}
}

// Frame returns the current frame, waiting for one within the context's
// deadline when none has arrived yet.
func (f *frameFeed) Frame(ctx context.Context) (image.Image, error) {
	for {
		f.mu.Lock()
		if f.latest != nil && !f.released {
			img := f.latest
			f.mu.Unlock()
			return img, nil
		}
		wait := f.notify
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Release drops the buffered frame; the client stops streaming when it sees
// the idle state.
func (f *frameFeed) Release() {
	f.mu.Lock()
	f.latest = nil
	f.released = true
	f.wakeLocked()
	f.mu.Unlock()
}
