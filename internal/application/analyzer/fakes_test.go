package analyzer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafdoctor/internal/application"
	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
)

// blockingAI answers each call from release, or returns ctx.Err() when cancelled.
type blockingAI struct {
	calls   atomic.Int32
	started chan struct{}
	release chan reply
}

type reply struct {
	res *diagnosis.AnalysisResult
	err error
}

func newBlockingAI() *blockingAI {
	return &blockingAI{started: make(chan struct{}, 8), release: make(chan reply, 8)}
}

func (a *blockingAI) Analyze(ctx context.Context, _ string) (*diagnosis.AnalysisResult, error) {
	a.calls.Add(1)
	a.started <- struct{}{}
	select {
	case r := <-a.release:
		return r.res, r.err
	case <-ctx.Done():
		return nil, diagnosis.NewAnalysisError(ctx.Err())
	}
}

// instantAI answers immediately.
type instantAI struct {
	res *diagnosis.AnalysisResult
	err error
	got []string
	mu  sync.Mutex
}

func (a *instantAI) Analyze(_ context.Context, image string) (*diagnosis.AnalysisResult, error) {
	a.mu.Lock()
	a.got = append(a.got, image)
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return a.res.Clone(), nil
}

type fakeStream struct {
	frame   []byte
	err     error
	stopped atomic.Int32
}

func (s *fakeStream) Frame(context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.frame, nil
}

func (s *fakeStream) Stop() error {
	s.stopped.Add(1)
	return nil
}

type fakeCamera struct {
	openErr error
	streams []*fakeStream
	frame   []byte
	frameEr error
	gotC    camera.Constraints
}

func (c *fakeCamera) Open(_ context.Context, cons camera.Constraints) (camera.Stream, error) {
	c.gotC = cons
	if c.openErr != nil {
		return nil, c.openErr
	}
	st := &fakeStream{frame: c.frame, err: c.frameEr}
	c.streams = append(c.streams, st)
	return st, nil
}

type saveRecorder struct {
	mu    sync.Mutex
	items []*gallery.Item
	err   error
}

func (r *saveRecorder) Save(_ context.Context, it *gallery.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items = append(r.items, it.Clone())
	return nil
}

func tomato() *diagnosis.AnalysisResult {
	return &diagnosis.AnalysisResult{
		PlantName:       "Tomato",
		HealthStatus:    diagnosis.Diseased,
		DiseaseName:     "Early Blight",
		Confidence:      0.9,
		Description:     "Lesions with concentric rings.",
		Symptoms:        []string{"brown spots"},
		Recommendations: []string{"remove infected leaves"},
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.RGBA{G: 180, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var fixedNow = time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC)

func newWorkflow(deps Deps) *Workflow {
	if deps.Clock == nil {
		deps.Clock = application.FixedClock{T: fixedNow}
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return "item-1" }
	}
	return New("session-1", deps)
}

func waitStarted(t *testing.T, a *blockingAI) {
	t.Helper()
	select {
	case <-a.started:
	case <-time.After(2 * time.Second):
		t.Fatal("analysis never reached the client")
	}
}

// valueStream is a non-comparable Stream held by value. gate, when set,
// blocks Frame until it is closed; entered is signalled first.
type valueStream struct {
	frame   []byte
	gate    chan struct{}
	entered chan struct{}
	stops   *atomic.Int32
}

func (s valueStream) Frame(ctx context.Context) ([]byte, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.frame, nil
}

func (s valueStream) Stop() error {
	s.stops.Add(1)
	return nil
}

type valueCamera struct {
	frame   []byte
	gate    chan struct{}
	entered chan struct{}
	stops   *atomic.Int32
}

func (c valueCamera) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	return valueStream{frame: c.frame, gate: c.gate, entered: c.entered, stops: c.stops}, nil
}
