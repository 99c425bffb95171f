// Package workflow orchestrates the capture → annotate → upload pipeline for
// a single live session.
//
// The Workflow owns the session, the last known location fix and the
// capture-enabled flag. A new capture supersedes a pending one: the older
// call's context is cancelled and its result is discarded with
// ErrSuperseded, so a slow camera can never overwrite a newer session.
// Capture is refused while an upload is in flight.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/capture"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/notify"
	"github.com/teslashibe/go-geostamp/pkg/upload"
)

// Capturer takes one photo.
type Capturer interface {
	Capture(ctx context.Context, src capture.Source) (capture.RawImage, error)
}

// Annotator stamps a coordinate onto a raw photo.
type Annotator interface {
	Annotate(raw []byte, c geo.Coordinate) (*annotate.Image, error)
}

// Uploader persists an annotated photo.
type Uploader interface {
	Upload(ctx context.Context, img *annotate.Image, fileName, linkedRecordID string) (*upload.Receipt, error)
}

// Session is a snapshot of the live session. Images are shared, not copied;
// treat them as read-only.
type Session struct {
	ID        string            `json:"id"`
	State     State             `json:"state"`
	RawImage  *capture.RawImage `json:"-"`
	Annotated *annotate.Image   `json:"annotated,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	Kind      ErrorKind         `json:"error_kind,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`

	err error
}

// Err returns the error that ended the last pipeline stage, if any.
func (s Session) Err() error { return s.err }

// Config wires the workflow's collaborators.
type Config struct {
	Locator   geo.Provider
	Camera    Capturer
	Annotator Annotator
	Uploader  Uploader
	Sink      notify.Sink

	// LinkedRecordID is the business record every upload is attached to.
	LinkedRecordID string

	// FileName is used when Upload is called without one.
	FileName string

	LocationOptions geo.Options

	// RefreshOnCapture starts a background fix acquisition with every
	// capture. Annotation still uses whatever fix is current, waiting only
	// when none has resolved yet.
	RefreshOnCapture bool

	// LocationTimeout bounds background acquisitions. Zero means none.
	LocationTimeout time.Duration

	Logger *slog.Logger
}

// Workflow runs the pipeline. It is safe for concurrent use; concurrent
// calls resolve according to the superseding-capture policy.
type Workflow struct {
	cfg    Config
	fix    *geo.LastKnown
	sink   notify.Sink
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	session       Session
	enabled       bool
	gen           uint64
	cancelCapture context.CancelFunc
}

// New validates cfg and returns a workflow with an empty session. Capture
// stays disabled until Start finds the location capability available.
func New(cfg Config) (*Workflow, error) {
	var missing []string
	if cfg.Locator == nil {
		missing = append(missing, "locator")
	}
	if cfg.Camera == nil {
		missing = append(missing, "camera")
	}
	if cfg.Annotator == nil {
		missing = append(missing, "annotator")
	}
	if cfg.Uploader == nil {
		missing = append(missing, "uploader")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("workflow: missing %v", missing)
	}
	if cfg.FileName == "" {
		cfg.FileName = upload.DefaultFileName
	}
	sink := cfg.Sink
	if sink == nil {
		sink = notify.Discard
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Workflow{
		cfg:    cfg,
		fix:    geo.NewLastKnown(),
		sink:   sink,
		logger: logger.With("component", "workflow"),
		now:    time.Now,
	}
	w.session = w.emptySession()
	return w, nil
}

func (w *Workflow) emptySession() Session {
	return Session{ID: uuid.NewString(), State: StateEmpty, UpdatedAt: w.now()}
}

// Start checks the location capability. If it is unavailable capture is
// disabled, a location-unavailable notification is emitted and
// geo.ErrCapabilityUnavailable is returned. Otherwise capture is enabled and
// a fix is acquired in the background under ctx.
func (w *Workflow) Start(ctx context.Context) error {
	return w.checkLocation(ctx)
}

// RecheckLocation repeats Start's availability check. It is the only way to
// re-enable a disabled capture.
func (w *Workflow) RecheckLocation(ctx context.Context) error {
	return w.checkLocation(ctx)
}

func (w *Workflow) checkLocation(ctx context.Context) error {
	if !w.cfg.Locator.Available() {
		w.mu.Lock()
		w.enabled = false
		w.mu.Unlock()
		w.logger.Warn("location capability unavailable, capture disabled")
		w.sink.Notify(notify.LocationUnavailable())
		return geo.ErrCapabilityUnavailable
	}

	w.mu.Lock()
	w.enabled = true
	w.mu.Unlock()
	w.acquireInBackground(ctx)
	return nil
}

func (w *Workflow) acquireInBackground(ctx context.Context) {
	cancel := context.CancelFunc(func() {})
	if w.cfg.LocationTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, w.cfg.LocationTimeout)
	}
	w.fix.AcquireAsync(ctx, w.cfg.Locator, w.cfg.LocationOptions, func(c geo.Coordinate, err error) {
		cancel()
		w.reportFix(c, err)
	})
}

func (w *Workflow) reportFix(c geo.Coordinate, err error) {
	if err != nil {
		w.logger.Warn("location acquisition failed", "error", err, "kind", Kind(err))
		w.sink.Notify(notify.LocationError())
		return
	}
	w.logger.Info("location detected", "coordinate", c.String())
	w.sink.Notify(notify.LocationDetected())
}

// RefreshLocation acquires a fix synchronously. A failure keeps the previous
// fix and is reported through the sink.
func (w *Workflow) RefreshLocation(ctx context.Context) (geo.Fix, error) {
	if !w.CaptureEnabled() {
		w.sink.Notify(notify.LocationUnavailable())
		return geo.Fix{}, geo.ErrCapabilityUnavailable
	}
	c, err := w.fix.Acquire(ctx, w.cfg.Locator, w.cfg.LocationOptions)
	w.reportFix(c, err)
	if err != nil {
		return geo.Fix{}, err
	}
	f, _ := w.fix.Get()
	return f, nil
}

// CaptureEnabled reports whether the location capability was available at
// the last check.
func (w *Workflow) CaptureEnabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// LastFix returns the most recent fix, if any.
func (w *Workflow) LastFix() (geo.Fix, bool) {
	return w.fix.Get()
}

// LocationPending reports whether a fix acquisition is in flight.
func (w *Workflow) LocationPending() bool {
	return w.fix.Pending()
}

// Session returns a snapshot of the live session.
func (w *Workflow) Session() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Reset discards the live session. A pending capture is cancelled and an
// in-flight upload's outcome no longer touches the session.
func (w *Workflow) Reset() Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	if w.cancelCapture != nil {
		w.cancelCapture()
		w.cancelCapture = nil
	}
	w.session = w.emptySession()
	w.logger.Debug("session reset", "session", w.session.ID)
	return w.session
}

// transitionLocked moves the session to state to. w.mu must be held.
func (w *Workflow) transitionLocked(to State) error {
	from := w.session.State
	if !canTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	w.session.State = to
	w.session.UpdatedAt = w.now()
	return nil
}

// Capture takes a photo, waits for a fix if none has resolved but one is
// being acquired, and annotates the photo with the last known coordinate.
// On success the session holds the annotated image in StateAnnotated.
func (w *Workflow) Capture(ctx context.Context) (Session, error) {
	w.mu.Lock()
	if !w.enabled {
		w.mu.Unlock()
		w.sink.Notify(notify.LocationUnavailable())
		return Session{}, ErrCaptureDisabled
	}
	if w.session.State == StateUploading {
		w.mu.Unlock()
		return Session{}, ErrSessionBusy
	}
	if w.cancelCapture != nil {
		w.logger.Info("superseding pending capture", "session", w.session.ID)
		w.cancelCapture()
	}
	w.gen++
	gen := w.gen
	cctx, cancel := context.WithCancel(ctx)
	w.cancelCapture = cancel
	w.session = w.emptySession()
	if err := w.transitionLocked(StateCapturing); err != nil {
		w.mu.Unlock()
		cancel()
		return Session{}, err
	}
	sessionID := w.session.ID
	w.mu.Unlock()

	defer func() {
		cancel()
		w.mu.Lock()
		if w.gen == gen {
			w.cancelCapture = nil
		}
		w.mu.Unlock()
	}()

	if w.cfg.RefreshOnCapture {
		w.acquireInBackground(context.WithoutCancel(ctx))
	}

	log := w.logger.With("session", sessionID)
	log.Info("capture started")

	raw, err := w.cfg.Camera.Capture(cctx, capture.SourceCamera)
	if err != nil {
		return w.fail(gen, err)
	}

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return Session{}, ErrSuperseded
	}
	// Captured is never observable: both transitions happen under one lock.
	w.transitionLocked(StateCaptured)
	w.session.RawImage = &raw
	w.transitionLocked(StateAnnotating)
	w.mu.Unlock()

	fix, err := w.fix.Await(cctx)
	if err != nil {
		if errors.Is(err, geo.ErrNoFix) {
			err = fmt.Errorf("%w: %w", ErrNoLocationFix, err)
		}
		return w.fail(gen, err)
	}
	if w.superseded(gen) {
		return Session{}, ErrSuperseded
	}

	img, err := w.cfg.Annotator.Annotate(raw.Bytes, fix.Coordinate)
	if err != nil {
		return w.fail(gen, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return Session{}, ErrSuperseded
	}
	if err := w.transitionLocked(StateAnnotated); err != nil {
		return Session{}, err
	}
	w.session.Annotated = img
	w.setErrorLocked(nil)
	log.Info("capture annotated",
		"coordinate", img.Text,
		"fix_age", fix.Age().Round(time.Millisecond),
		"width", img.Width,
		"height", img.Height,
		"bytes", img.Len())
	return w.session, nil
}

func (w *Workflow) superseded(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen != gen
}

// fail ends capture generation gen with err: the session drops back to Empty
// without any image data and the failure is reported.
func (w *Workflow) fail(gen uint64, err error) (Session, error) {
	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		return Session{}, ErrSuperseded
	}
	w.transitionLocked(StateEmpty)
	w.session.RawImage = nil
	w.session.Annotated = nil
	w.setErrorLocked(err)
	snap := w.session
	w.mu.Unlock()

	w.logger.Warn("capture failed", "session", snap.ID, "kind", snap.Kind, "error", err)
	if ev, ok := captureEvent(err); ok {
		w.sink.Notify(ev)
	}
	return snap, err
}

func (w *Workflow) setErrorLocked(err error) {
	w.session.err = err
	w.session.Kind = Kind(err)
	if err != nil {
		w.session.LastError = err.Error()
	} else {
		w.session.LastError = ""
	}
}

// captureEvent picks the notification for a capture-path failure. Caller
// cancellation is not reported.
func captureEvent(err error) (notify.Event, bool) {
	var ce *capture.CaptureError
	var de *annotate.DecodeError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return notify.Event{}, false
	case errors.Is(err, capture.ErrCaptureUnavailable):
		return notify.CaptureInitiationError(), true
	case errors.As(err, &ce):
		return notify.CaptureError(ce.Code, ce.Message), true
	case errors.Is(err, capture.ErrUnsupportedSource):
		return notify.CaptureError(capture.CodeUnknown, err.Error()), true
	case errors.Is(err, ErrNoLocationFix):
		return notify.LocationError(), true
	case errors.As(err, &de):
		return notify.DecodeError(de.Err.Error()), true
	default:
		return notify.DecodeError(err.Error()), true
	}
}

// Upload sends the annotated image. Without one it fails with
// upload.ErrNoImageCaptured before any collaborator call. On success the
// session is cleared; on failure it returns to StateAnnotated with the image
// kept so Upload can simply be called again.
func (w *Workflow) Upload(ctx context.Context, fileName string) (*upload.Receipt, error) {
	if fileName == "" {
		fileName = w.cfg.FileName
	}

	w.mu.Lock()
	if w.session.State == StateUploading {
		w.mu.Unlock()
		return nil, ErrSessionBusy
	}
	if w.session.State != StateAnnotated || w.session.Annotated == nil {
		// A capture in flight owns the session.
		if !w.session.State.Busy() {
			w.setErrorLocked(upload.ErrNoImageCaptured)
		}
		w.mu.Unlock()
		w.logger.Warn("upload requested with no annotated image")
		w.sink.Notify(notify.UploadMissingImage())
		return nil, upload.ErrNoImageCaptured
	}
	if err := w.transitionLocked(StateUploading); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	img := w.session.Annotated
	sessionID := w.session.ID
	w.mu.Unlock()

	receipt, err := w.cfg.Uploader.Upload(ctx, img, fileName, w.cfg.LinkedRecordID)

	w.mu.Lock()
	current := w.session.ID == sessionID
	if current {
		if err != nil {
			w.transitionLocked(StateAnnotated)
			w.setErrorLocked(err)
		} else {
			w.transitionLocked(StateEmpty)
			w.session = w.emptySession()
		}
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Warn("upload failed", "session", sessionID, "kind", Kind(err), "error", err)
		var uerr *upload.UploadError
		if errors.As(err, &uerr) {
			w.sink.Notify(notify.UploadFailure(uerr.Message))
		} else if !errors.Is(err, context.Canceled) {
			w.sink.Notify(notify.UploadFailure(err.Error()))
		}
		return nil, err
	}

	w.logger.Info("upload succeeded", "session", sessionID, "record_id", receipt.RecordID, "reset_meanwhile", !current)
	w.sink.Notify(notify.UploadSuccess())
	return receipt, nil
}
