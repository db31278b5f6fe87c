// Package analyzer implements the capture, analyze and save lifecycle for a
// single leaf specimen, plus a registry of live workflows.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/leafdoctor/internal/application"
	"github.com/bryanwahyu/leafdoctor/internal/domain/ai"
	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

type State string

const (
	StateIdle         State = "idle"
	StateCameraActive State = "camera_active"
	StateImageLoaded  State = "image_loaded"
	StateAnalyzing    State = "analyzing"
	StateResult       State = "result"
	StateError        State = "error"
)

const (
	DefaultMaxUploadBytes = 10 << 20
	jpegQuality           = 90
)

// SaveFunc persists a finished diagnosis, typically gallery.Service.Add.
type SaveFunc func(ctx context.Context, item *gallery.Item) error

type Deps struct {
	Analyzer       ai.Client
	Camera         camera.Device
	Save           SaveFunc
	Clock          application.Clock
	NewID          func() string
	MaxUploadBytes int64
	Constraints    camera.Constraints
	Log            *zap.Logger
}

// Workflow is one analyzer screen instance. All methods are safe for
// concurrent use.
type Workflow struct {
	id   string
	deps Deps
	log  *zap.Logger

	mu         sync.Mutex
	state      State
	image      string
	result     *diagnosis.AnalysisResult
	errMsg     string
	label      string
	saved      *gallery.Item
	generation uint64
	startedAt  time.Time
	cancel     context.CancelFunc
	stream     camera.Stream
	camEpoch   uint64
	closed     bool
}

func New(id string, deps Deps) *Workflow {
	if deps.Clock == nil {
		deps.Clock = application.SystemClock{}
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if deps.Constraints == (camera.Constraints{}) {
		deps.Constraints = camera.DefaultConstraints
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Workflow{
		id:    id,
		deps:  deps,
		state: StateIdle,
		log:   deps.Log.With(zap.String("session", id)),
	}
}

func (w *Workflow) ID() string { return w.id }

// StartCamera opens the device. On failure the workflow stays idle with the
// camera error message set.
func (w *Workflow) StartCamera(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.state != StateIdle {
		return fmt.Errorf("%w: cannot start camera from %s", ErrInvalidTransition, w.state)
	}

	if w.deps.Camera == nil {
		w.errMsg = camera.UnavailableMessage
		return fmt.Errorf("%w: no camera device", ErrCameraUnavailable)
	}
	st, err := w.deps.Camera.Open(ctx, w.deps.Constraints)
	if err != nil {
		w.errMsg = camera.UnavailableMessage
		w.log.Warn("camera open failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, err)
	}
	w.stream = st
	w.camEpoch++
	w.errMsg = ""
	w.state = StateCameraActive
	return nil
}

// CancelCamera releases the stream and returns to idle.
func (w *Workflow) CancelCamera() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.state != StateCameraActive {
		return fmt.Errorf("%w: camera is not active", ErrInvalidTransition)
	}
	w.releaseCamera()
	w.state = StateIdle
	return nil
}

// Capture grabs one frame, re-encodes it as JPEG and loads it as the
// specimen. The camera is released whatever the outcome.
func (w *Workflow) Capture(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.state != StateCameraActive || w.stream == nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: camera is not active", ErrInvalidTransition)
	}
	st := w.stream
	epoch := w.camEpoch
	w.mu.Unlock()

	frame, frameErr := st.Frame(ctx)
	var uri string
	if frameErr == nil {
		uri, frameErr = encodeJPEG(frame)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.camEpoch != epoch {
		// cancelled or reset while the frame was in flight
		_ = st.Stop()
		return ErrStale
	}
	w.releaseCamera()

	if frameErr != nil {
		w.state = StateIdle
		if errors.Is(frameErr, ErrNotAnImage) {
			w.errMsg = decodeMessage
			return frameErr
		}
		w.errMsg = camera.UnavailableMessage
		return fmt.Errorf("%w: %w", ErrCameraUnavailable, frameErr)
	}
	w.load(uri)
	return nil
}

// Upload loads an image file as the specimen, replacing any previous one.
func (w *Workflow) Upload(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, w.deps.MaxUploadBytes+1))
	if err != nil {
		return fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > w.deps.MaxUploadBytes {
		return fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, w.deps.MaxUploadBytes)
	}
	mime := http.DetectContentType(data)
	if len(data) == 0 || !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("%w: detected %s", ErrNotAnImage, mime)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.state == StateAnalyzing {
		return fmt.Errorf("%w: analysis in progress", ErrInvalidTransition)
	}
	w.releaseCamera()
	w.load(diagnosis.DataURI(mime, data))
	return nil
}

// load replaces the specimen and clears everything derived from the old one.
// Caller holds mu.
func (w *Workflow) load(uri string) {
	w.image = uri
	w.result = nil
	w.errMsg = ""
	w.label = ""
	w.saved = nil
	w.state = StateImageLoaded
}

// Pending is an analysis running in the background.
type Pending struct {
	Generation uint64

	done   chan struct{}
	result *diagnosis.AnalysisResult
	err    error
}

// Done is closed once the analysis has completed or been discarded.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the analysis finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*diagnosis.AnalysisResult, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StartAnalysis sends the current image for diagnosis. The call runs in its
// own goroutine under a context derived from ctx and cancelled by Reset or
// Close. A completion arriving after a Reset is dropped with ErrStale.
func (w *Workflow) StartAnalysis(ctx context.Context) (*Pending, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	if w.image == "" || (w.state != StateImageLoaded && w.state != StateError) {
		state := w.state
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot analyze from %s", ErrInvalidTransition, state)
	}

	w.generation++
	gen := w.generation
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = StateAnalyzing
	w.result = nil
	w.errMsg = ""
	w.startedAt = w.deps.Clock.Now()
	img := w.image
	w.mu.Unlock()

	w.log.Debug("analysis started", zap.Uint64("generation", gen))
	p := &Pending{Generation: gen, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer cancel()
		res, err := w.deps.Analyzer.Analyze(runCtx, img)
		p.result, p.err = w.complete(gen, res, err)
	}()
	return p, nil
}

// Analyze runs StartAnalysis and waits for it.
func (w *Workflow) Analyze(ctx context.Context) (*diagnosis.AnalysisResult, error) {
	p, err := w.StartAnalysis(ctx)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

func (w *Workflow) complete(gen uint64, res *diagnosis.AnalysisResult, err error) (*diagnosis.AnalysisResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation || w.state != StateAnalyzing {
		w.log.Debug("discarding stale analysis", zap.Uint64("generation", gen))
		return nil, ErrStale
	}
	w.cancel = nil

	if err == nil && res == nil {
		err = diagnosis.NewAnalysisError(fmt.Errorf("%w: empty result", diagnosis.ErrInvalidResult))
	}
	if err != nil {
		w.state = StateError
		w.errMsg = err.Error()
		if w.errMsg == "" {
			w.errMsg = fallbackMessage
		}
		return nil, err
	}

	w.result = res.Clone()
	w.label = res.PlantName
	w.saved = nil
	w.state = StateResult
	return res.Clone(), nil
}

// SetLabel edits the name the result will be saved under.
func (w *Workflow) SetLabel(label string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.state != StateResult {
		return fmt.Errorf("%w: no result to label", ErrInvalidTransition)
	}
	w.label = label
	return nil
}

// Save hands the current diagnosis to the save callback. Repeated calls
// return the first saved item without saving again.
func (w *Workflow) Save(ctx context.Context) (*gallery.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrClosed
	}
	if w.saved != nil {
		return w.saved.Clone(), nil
	}
	if w.image == "" || w.result == nil || w.state != StateResult {
		return nil, fmt.Errorf("%w: nothing to save", ErrInvalidTransition)
	}
	if w.deps.Save == nil {
		return nil, fmt.Errorf("save is not configured")
	}

	name := w.label
	if strings.TrimSpace(name) == "" {
		name = w.result.PlantName
	}
	item := &gallery.Item{
		ID:         w.deps.NewID(),
		Image:      w.image,
		Analysis:   *w.result.Clone(),
		CustomName: name,
		Timestamp:  w.deps.Clock.Now().UnixMilli(),
	}
	if err := w.deps.Save(ctx, item); err != nil {
		return nil, err
	}
	w.saved = item
	w.log.Info("diagnosis saved", zap.String("item", item.ID))
	return item.Clone(), nil
}

// Reset returns the workflow to a fresh idle state, cancelling any running
// analysis and releasing the camera.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
}

// Close is Reset plus marking the workflow unusable.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reset()
	w.closed = true
}

// Closed reports whether Close has been called.
func (w *Workflow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *Workflow) reset() {
	w.generation++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.releaseCamera()
	w.image = ""
	w.result = nil
	w.errMsg = ""
	w.label = ""
	w.saved = nil
	w.startedAt = time.Time{}
	w.state = StateIdle
}

func (w *Workflow) releaseCamera() {
	if w.stream == nil {
		return
	}
	if err := w.stream.Stop(); err != nil {
		w.log.Warn("camera stop failed", zap.Error(err))
	}
	w.stream = nil
	w.camEpoch++
}

// Snapshot is a read-only view of a workflow.
type Snapshot struct {
	ID          string                    `json:"id"`
	State       State                     `json:"state"`
	Image       string                    `json:"image,omitempty"`
	Result      *diagnosis.AnalysisResult `json:"result,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Label       string                    `json:"label"`
	Saved       bool                      `json:"saved"`
	SavedItemID string                    `json:"savedItemId,omitempty"`
	Step        string                    `json:"step,omitempty"`
	Generation  uint64                    `json:"generation"`
	Closed      bool                      `json:"closed,omitempty"`
}

func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		ID:         w.id,
		State:      w.state,
		Image:      w.image,
		Result:     w.result.Clone(),
		Error:      w.errMsg,
		Label:      w.label,
		Saved:      w.saved != nil,
		Generation: w.generation,
		Closed:     w.closed,
	}
	if w.saved != nil {
		s.SavedItemID = w.saved.ID
	}
	if w.state == StateAnalyzing {
		s.Step = StepAt(w.startedAt, w.deps.Clock.Now())
	}
	return s
}

func encodeJPEG(frame []byte) (string, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	return diagnosis.DataURI("image/jpeg", buf.Bytes()), nil
}
