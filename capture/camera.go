// Package capture drives one photo-booth session: camera acquisition, timed
// countdowns, sequential shot capture, slot arrangement, and final
// composition.
package capture

import (
	"context"
	"fmt"
	"image"
)

// CameraErrorKind classifies camera acquisition failures. Each kind maps to a
// distinct user-facing message; the classification is part of the observable
// contract, not incidental.
type CameraErrorKind string

const (
	CameraPermissionDenied CameraErrorKind = "permission-denied"
	CameraNotFound         CameraErrorKind = "no-device-found"
	CameraBusy             CameraErrorKind = "device-in-use"
	CameraUnsupported      CameraErrorKind = "unsupported-browser"
)

// CameraError is a classified acquisition failure. Non-fatal: the user may
// retry acquisition.
type CameraError struct {
	Kind CameraErrorKind
	Err  error
}

func (e *CameraError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("camera %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("camera %s", e.Kind)
}

func (e *CameraError) Unwrap() error { return e.Err }

// Message returns the user-facing text for the error class.
func (e *CameraError) Message() string {
	switch e.Kind {
	case CameraPermissionDenied:
		return "Camera access was denied. Please allow camera access and try again."
	case CameraNotFound:
		return "No camera was found on this device."
	case CameraBusy:
		return "The camera is in use by another application."
	case CameraUnsupported:
		return "Camera capture is not supported in this browser."
	default:
		return "Could not access the camera."
	}
}

// Camera is the single owned stream a session reads frames from. The machine
// owns the lifecycle: Acquire before the session runs, Release on reset or
// teardown so the hardware resource is never held across sessions.
type Camera interface {
	// Acquire binds the video stream. Failures should be *CameraError so the
	// machine can surface a classified message.
	Acquire(ctx context.Context) error

	// Frame returns the current video frame. Implementations must bound the
	// wait (the passed context carries the machine's frame timeout) rather
	// than hang on hardware readiness.
	Frame(ctx context.Context) (image.Image, error)

	// Release stops the stream and frees the device.
	Release()
}
