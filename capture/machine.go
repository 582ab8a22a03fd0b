package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"framebooth/compositor"
	"framebooth/core"
)

// Status is the tagged session state. At any instant the machine is in
// exactly one of these; there are no independent booleans to fall out of
// sync.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusCountdown Status = "countdown"
	StatusCapturing Status = "capturing"
	StatusWaiting   Status = "waiting"
	StatusArranging Status = "arranging"
	StatusFinished  Status = "finished"
)

var (
	// ErrNoCamera is returned when a sequence is started before acquisition.
	ErrNoCamera = errors.New("camera has not been acquired")
	// ErrSessionActive is returned when Start is called mid-sequence.
	ErrSessionActive = errors.New("capture sequence already running")
	// ErrNotArranging is returned by arrangement operations outside the
	// arranging state.
	ErrNotArranging = errors.New("session is not in the arranging state")
	// ErrIncompleteAssignment rejects confirmation while any slot is empty.
	ErrIncompleteAssignment = errors.New("every slot needs a photo before confirming")
)

// Config carries the session pacing constants. The inter-shot delay is a
// deliberate pacing control, not a technical necessity, so it stays
// configurable rather than hard-coded.
type Config struct {
	CountdownFrom     int
	CountdownInterval time.Duration
	InterShotDelay    time.Duration
	FrameTimeout      time.Duration
	MinimumShots      int
}

// DefaultConfig returns the booth defaults: 3-2-1 countdown at one-second
// ticks, five seconds between shots, at least four shots per session.
func DefaultConfig() Config {
	return Config{
		CountdownFrom:     3,
		CountdownInterval: time.Second,
		InterShotDelay:    5 * time.Second,
		FrameTimeout:      4 * time.Second,
		MinimumShots:      4,
	}
}

// Snapshot is an immutable view of session state, safe to hand to transports.
type Snapshot struct {
	Status          Status         `json:"status"`
	Countdown       int            `json:"countdown,omitempty"`
	ShotIndex       int            `json:"shotIndex"`
	CaptureCount    int            `json:"captureCount"`
	CapturedShots   []string       `json:"capturedShots"`
	SlotAssignments map[string]int `json:"slotAssignments"`
	FinalImage      string         `json:"finalImage,omitempty"`
	HasCameraAccess bool           `json:"hasCameraAccess"`
	Error           string         `json:"error,omitempty"`
}

type composeFunc func(ctx context.Context, tpl *core.FrameTemplate, assignments map[string]int, shots []string) (string, error)

// Machine runs one capture session against a single template. It owns the
// camera for the session's lifetime and never mutates the template; the
// template is read-only input to capture and composition.
type Machine struct {
	mu  sync.Mutex
	cfg Config
	tpl *core.FrameTemplate
	cam Camera

	status      Status
	countdown   int
	shotIndex   int
	shots       []string
	assignments map[string]int
	finalImage  string
	lastError   string
	hasCamera   bool
	running     bool
	cancelSeq   context.CancelFunc
	// generation increments on every Reset. Operations that release the lock
	// around slow work re-check it before applying results, so a reset always
	// wins over work that was in flight when it happened.
	generation uint64

	notify  func(Snapshot)
	compose composeFunc
}

// New builds an idle machine for one template and an injected camera source.
func New(tpl *core.FrameTemplate, cam Camera, cfg Config) *Machine {
	return &Machine{
		cfg:         cfg,
		tpl:         tpl,
		cam:         cam,
		status:      StatusIdle,
		assignments: make(map[string]int),
		compose:     compositor.Compose,
	}
}

// OnChange registers a callback invoked with a snapshot after every state
// transition. Called without the machine lock held.
func (m *Machine) OnChange(fn func(Snapshot)) {
	m.mu.Lock()
	m.notify = fn
	m.mu.Unlock()
}

// CaptureCount is the number of shots a sequence takes: always at least as
// many as there are slots so every slot can receive a distinct shot, and
// never fewer than the configured minimum so the user has selection slack.
func (m *Machine) CaptureCount() int {
	n := len(m.tpl.Layout.Slots)
	if m.cfg.MinimumShots > n {
		return m.cfg.MinimumShots
	}
	return n
}

// AcquireCamera requests the camera stream. Failures come back classified
// (*CameraError) and are recorded as the session's user-facing error; they
// are recoverable by calling AcquireCamera again.
func (m *Machine) AcquireCamera(ctx context.Context) error {
	err := m.cam.Acquire(ctx)

	m.mu.Lock()
	if err != nil {
		m.hasCamera = false
		var camErr *CameraError
		if errors.As(err, &camErr) {
			m.lastError = camErr.Message()
		} else {
			m.lastError = "Could not access the camera."
		}
	} else {
		m.hasCamera = true
		m.lastError = ""
	}
	m.mu.Unlock()
	m.emit()
	return err
}

// Start runs the full countdown/capture sequence, strictly in shot-index
// order: shot n+1 never begins its countdown before shot n is stored. It
// blocks until the machine reaches arranging or fails back to idle.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrSessionActive
	}
	if !m.hasCamera {
		m.mu.Unlock()
		return ErrNoCamera
	}
	if m.status != StatusIdle {
		m.mu.Unlock()
		return fmt.Errorf("cannot start capture from state %q", m.status)
	}
	seqCtx, cancel := context.WithCancel(ctx)
	m.cancelSeq = cancel
	m.running = true
	count := m.CaptureCount()
	m.shots = make([]string, count)
	m.assignments = make(map[string]int)
	m.finalImage = ""
	m.lastError = ""
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.cancelSeq = nil
		m.mu.Unlock()
		cancel()
	}()

	for i := 0; i < count; i++ {
		m.mu.Lock()
		m.shotIndex = i
		m.mu.Unlock()

		if err := m.runCountdown(seqCtx); err != nil {
			return m.abort(seqCtx, err)
		}
		if err := m.captureShot(seqCtx, i); err != nil {
			return m.abort(seqCtx, err)
		}
		if i < count-1 {
			if err := m.interShotWait(seqCtx); err != nil {
				return m.abort(seqCtx, err)
			}
		}
	}

	m.mu.Lock()
	m.status = StatusArranging
	m.mu.Unlock()
	m.emit()
	return nil
}

func (m *Machine) runCountdown(ctx context.Context) error {
	m.mu.Lock()
	m.status = StatusCountdown
	m.mu.Unlock()
	for c := m.cfg.CountdownFrom; c >= 1; c-- {
		m.mu.Lock()
		m.countdown = c
		m.mu.Unlock()
		m.emit()
		if err := sleep(ctx, m.cfg.CountdownInterval); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.countdown = 0
	m.mu.Unlock()
	return nil
}

// captureShot grabs the current video frame, center-crops it to the aspect
// ratio of the slot this shot is nominally associated with, and stores it as
// a PNG data URL. Frames are stored un-mirrored; mirroring the live preview
// is a display concern of the client.
func (m *Machine) captureShot(ctx context.Context, index int) error {
	m.mu.Lock()
	m.status = StatusCapturing
	m.mu.Unlock()
	m.emit()

	frameCtx, cancel := context.WithTimeout(ctx, m.cfg.FrameTimeout)
	frame, err := m.cam.Frame(frameCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("no video frame available for shot %d: %w", index, err)
	}

	slots := m.tpl.Layout.Slots
	cropped := frame
	if len(slots) > 0 {
		slot := slots[index%len(slots)]
		if slot.Height > 0 {
			cropped = centerCrop(frame, slot.Width/slot.Height)
		}
	}

	dataURL, err := compositor.EncodePNGDataURL(cropped)
	if err != nil {
		return fmt.Errorf("rasterize shot %d: %w", index, err)
	}

	m.mu.Lock()
	if index >= len(m.shots) {
		// Reset cleared the sequence while the frame was in flight.
		m.mu.Unlock()
		return ctx.Err()
	}
	m.shots[index] = dataURL
	m.mu.Unlock()
	m.emit()
	return nil
}

func (m *Machine) interShotWait(ctx context.Context) error {
	m.mu.Lock()
	m.status = StatusWaiting
	m.mu.Unlock()
	m.emit()
	return sleep(ctx, m.cfg.InterShotDelay)
}

// abort returns the session to idle after a fatal capture error, preserving
// no partial shots. A failed capture is fatal to the session, not retried.
func (m *Machine) abort(ctx context.Context, err error) error {
	m.mu.Lock()
	m.status = StatusIdle
	m.countdown = 0
	m.shotIndex = 0
	m.shots = nil
	m.assignments = make(map[string]int)
	if ctx.Err() == nil {
		m.lastError = "Capture failed. Please start the session again."
	}
	m.mu.Unlock()
	m.emit()
	logrus.WithError(err).Warn("Capture sequence aborted")
	return err
}

// Assign maps a captured shot to a slot. Assignments stay injective: when the
// shot already occupies another slot it moves there, it is never duplicated.
func (m *Machine) Assign(slotID string, shotIndex int) error {
	m.mu.Lock()
	if m.status != StatusArranging {
		m.mu.Unlock()
		return ErrNotArranging
	}
	if _, ok := m.tpl.Layout.SlotByID(slotID); !ok {
		m.mu.Unlock()
		return fmt.Errorf("unknown slot %q", slotID)
	}
	if shotIndex < 0 || shotIndex >= len(m.shots) || m.shots[shotIndex] == "" {
		m.mu.Unlock()
		return fmt.Errorf("no captured shot at index %d", shotIndex)
	}
	for slot, idx := range m.assignments {
		if idx == shotIndex {
			delete(m.assignments, slot)
		}
	}
	m.assignments[slotID] = shotIndex
	m.mu.Unlock()
	m.emit()
	return nil
}

// ClearSlot removes a slot's assignment, if any.
func (m *Machine) ClearSlot(slotID string) error {
	m.mu.Lock()
	if m.status != StatusArranging {
		m.mu.Unlock()
		return ErrNotArranging
	}
	delete(m.assignments, slotID)
	m.mu.Unlock()
	m.emit()
	return nil
}

// Confirm validates the arrangement and invokes the compositor. Every slot
// must hold a shot. On composition failure the machine stays in arranging so
// the user can retry without re-shooting.
func (m *Machine) Confirm(ctx context.Context) error {
	m.mu.Lock()
	if m.status != StatusArranging {
		m.mu.Unlock()
		return ErrNotArranging
	}
	for _, slot := range m.tpl.Layout.Slots {
		if _, ok := m.assignments[slot.ID]; !ok {
			m.lastError = ErrIncompleteAssignment.Error()
			m.mu.Unlock()
			m.emit()
			return ErrIncompleteAssignment
		}
	}
	assignments := make(map[string]int, len(m.assignments))
	for k, v := range m.assignments {
		assignments[k] = v
	}
	shots := make([]string, len(m.shots))
	copy(shots, m.shots)
	compose := m.compose
	gen := m.generation
	m.mu.Unlock()

	final, err := compose(ctx, m.tpl, assignments, shots)

	m.mu.Lock()
	if m.generation != gen || m.status != StatusArranging {
		// The session was reset while composing; the result is stale.
		m.mu.Unlock()
		return ErrNotArranging
	}
	if err != nil {
		m.lastError = "Could not create the final image. Please try again."
		m.mu.Unlock()
		m.emit()
		return err
	}
	m.finalImage = final
	m.lastError = ""
	m.status = StatusFinished
	m.mu.Unlock()
	m.emit()
	return nil
}

// Reset returns all session state to initial values from any state, cancels
// a running sequence, and releases the camera stream so the hardware is not
// held. Safe to call repeatedly; resetting twice equals resetting once. The
// template itself is never touched.
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.cancelSeq != nil {
		m.cancelSeq()
	}
	cam := m.cam
	released := m.hasCamera
	m.status = StatusIdle
	m.countdown = 0
	m.shotIndex = 0
	m.shots = nil
	m.assignments = make(map[string]int)
	m.finalImage = ""
	m.lastError = ""
	m.hasCamera = false
	m.generation++
	m.mu.Unlock()

	if released {
		cam.Release()
	}
	m.emit()
}

// Snapshot returns a copy of the current session state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// DownloadFilename is the suggested name for the final image artifact.
func (m *Machine) DownloadFilename() string {
	return fmt.Sprintf("framebooth-%s.png", m.tpl.Slug)
}

func (m *Machine) snapshotLocked() Snapshot {
	shots := make([]string, len(m.shots))
	copy(shots, m.shots)
	assignments := make(map[string]int, len(m.assignments))
	for k, v := range m.assignments {
		assignments[k] = v
	}
	return Snapshot{
		Status:          m.status,
		Countdown:       m.countdown,
		ShotIndex:       m.shotIndex,
		CaptureCount:    m.CaptureCount(),
		CapturedShots:   shots,
		SlotAssignments: assignments,
		FinalImage:      m.finalImage,
		HasCameraAccess: m.hasCamera,
		Error:           m.lastError,
	}
}

func (m *Machine) emit() {
	m.mu.Lock()
	fn := m.notify
	var snap Snapshot
	if fn != nil {
		snap = m.snapshotLocked()
	}
	m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// centerCrop trims the source symmetrically along its longer dimension so the
// result matches the target aspect ratio.
func centerCrop(src image.Image, aspect float64) image.Image {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	if w <= 0 || h <= 0 || aspect <= 0 {
		return src
	}

	cropW, cropH := w, h
	if w/h > aspect {
		cropW = h * aspect
	} else {
		cropH = w / aspect
	}
	x0 := b.Min.X + int((w-cropW)/2)
	y0 := b.Min.Y + int((h-cropH)/2)
	r := image.Rect(x0, y0, x0+int(cropW), y0+int(cropH))

	if sub, ok := src.(interface {
		SubImage(image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), src, r.Min, draw.Src)
	return out
}
