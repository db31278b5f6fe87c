package analyzer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
	"github.com/bryanwahyu/leafdoctor/internal/domain/diagnosis"
)

func TestWorkflow_FreshSnapshot(t *testing.T) {
	wf := newWorkflow(Deps{})
	s := wf.Snapshot()
	assert.Equal(t, "session-1", s.ID)
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.Image)
	assert.Nil(t, s.Result)
	assert.False(t, s.Saved)
}

func TestWorkflow_Upload(t *testing.T) {
	wf := newWorkflow(Deps{})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))

	s := wf.Snapshot()
	assert.Equal(t, StateImageLoaded, s.State)
	assert.True(t, strings.HasPrefix(s.Image, "data:image/png;base64,"))
}

func TestWorkflow_UploadRejects(t *testing.T) {
	wf := newWorkflow(Deps{MaxUploadBytes: 64})

	err := wf.Upload(strings.NewReader("just some text, definitely not a leaf"))
	assert.ErrorIs(t, err, ErrNotAnImage)
	err = wf.Upload(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNotAnImage)
	err = wf.Upload(bytes.NewReader(pngBytes(t)))
	assert.ErrorIs(t, err, ErrTooLarge)

	assert.Equal(t, StateIdle, wf.Snapshot().State)
}

func TestWorkflow_AnalyzeSuccess(t *testing.T) {
	client := &instantAI{res: tomato()}
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))

	res, err := wf.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tomato", res.PlantName)

	s := wf.Snapshot()
	assert.Equal(t, StateResult, s.State)
	assert.Equal(t, "Tomato", s.Label, "label is prefilled with the plant name")
	assert.Equal(t, tomato(), s.Result)
	assert.Empty(t, s.Error)
	require.Len(t, client.got, 1)
	assert.Equal(t, s.Image, client.got[0])
}

func TestWorkflow_AnalyzeFailureKeepsImage(t *testing.T) {
	client := &instantAI{err: diagnosis.NewAnalysisError(errors.New("503 from upstream"))}
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	img := wf.Snapshot().Image

	_, err := wf.Analyze(context.Background())
	assert.ErrorIs(t, err, diagnosis.ErrAnalysisFailed)

	s := wf.Snapshot()
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, img, s.Image)
	assert.Equal(t, diagnosis.UserMessage, s.Error)
	assert.Nil(t, s.Result)

	// retry from the error state
	client.err = nil
	client.res = tomato()
	_, err = wf.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateResult, wf.Snapshot().State)
	assert.Empty(t, wf.Snapshot().Error)
}

func TestWorkflow_AnalyzeWithoutImage(t *testing.T) {
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}})
	_, err := wf.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWorkflow_SingleInFlightAnalysis(t *testing.T) {
	client := newBlockingAI()
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))

	p, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)

	s := wf.Snapshot()
	assert.Equal(t, StateAnalyzing, s.State)
	assert.Equal(t, DiagnosticSteps[0], s.Step)

	_, err = wf.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, wf.Upload(bytes.NewReader(pngBytes(t))), ErrInvalidTransition)

	client.release <- reply{res: tomato()}
	res, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tomato", res.PlantName)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestWorkflow_ResetDiscardsLateCompletion(t *testing.T) {
	client := newBlockingAI()
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))

	p, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)

	wf.Reset()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStale)

	s := wf.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.Image)
	assert.Nil(t, s.Result)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.Label)
	assert.False(t, s.Saved)
}

func TestWorkflow_NewImageDuringStaleCompletion(t *testing.T) {
	client := newBlockingAI()
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))

	first, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)
	wf.Reset()
	<-first.Done()

	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	second, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)
	assert.Greater(t, second.Generation, first.Generation)

	client.release <- reply{res: tomato()}
	_, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateResult, wf.Snapshot().State)
}

func TestWorkflow_SetLabelAndSave(t *testing.T) {
	saves := &saveRecorder{}
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}, Save: saves.Save})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	_, err := wf.Analyze(context.Background())
	require.NoError(t, err)

	require.NoError(t, wf.SetLabel("Greenhouse row 3"))
	item, err := wf.Save(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "Greenhouse row 3", item.CustomName)
	assert.Equal(t, fixedNow.UnixMilli(), item.Timestamp)
	assert.Equal(t, *tomato(), item.Analysis)
	assert.Equal(t, wf.Snapshot().Image, item.Image)

	again, err := wf.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, item, again)
	assert.Len(t, saves.items, 1, "second save does not call the callback")

	s := wf.Snapshot()
	assert.True(t, s.Saved)
	assert.Equal(t, "item-1", s.SavedItemID)
}

func TestWorkflow_SaveEmptyLabelFallsBackToPlantName(t *testing.T) {
	saves := &saveRecorder{}
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}, Save: saves.Save})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	_, err := wf.Analyze(context.Background())
	require.NoError(t, err)

	require.NoError(t, wf.SetLabel(""))
	item, err := wf.Save(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Tomato", item.CustomName)
}

func TestWorkflow_SaveFailureCanBeRetried(t *testing.T) {
	saves := &saveRecorder{err: errors.New("disk full")}
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}, Save: saves.Save})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	_, err := wf.Analyze(context.Background())
	require.NoError(t, err)

	_, err = wf.Save(context.Background())
	require.Error(t, err)
	assert.False(t, wf.Snapshot().Saved)

	saves.err = nil
	_, err = wf.Save(context.Background())
	require.NoError(t, err)
	assert.Len(t, saves.items, 1)
}

func TestWorkflow_SaveAndLabelRequireResult(t *testing.T) {
	wf := newWorkflow(Deps{Save: (&saveRecorder{}).Save})
	_, err := wf.Save(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, wf.SetLabel("x"), ErrInvalidTransition)
}

func TestWorkflow_NewUploadClearsSavedFlag(t *testing.T) {
	saves := &saveRecorder{}
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}, Save: saves.Save})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	_, err := wf.Analyze(context.Background())
	require.NoError(t, err)
	_, err = wf.Save(context.Background())
	require.NoError(t, err)

	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	s := wf.Snapshot()
	assert.Equal(t, StateImageLoaded, s.State)
	assert.False(t, s.Saved)
	assert.Nil(t, s.Result)
}

func TestWorkflow_CameraCapture(t *testing.T) {
	cam := &fakeCamera{frame: pngBytes(t)}
	wf := newWorkflow(Deps{Camera: cam})

	require.NoError(t, wf.StartCamera(context.Background()))
	assert.Equal(t, StateCameraActive, wf.Snapshot().State)
	assert.Equal(t, camera.DefaultConstraints, cam.gotC)

	require.NoError(t, wf.Capture(context.Background()))
	s := wf.Snapshot()
	assert.Equal(t, StateImageLoaded, s.State)
	assert.True(t, strings.HasPrefix(s.Image, "data:image/jpeg;base64,"))
	require.Len(t, cam.streams, 1)
	assert.EqualValues(t, 1, cam.streams[0].stopped.Load())
}

func TestWorkflow_CaptureFromValueStream(t *testing.T) {
	stops := &atomic.Int32{}
	wf := newWorkflow(Deps{Camera: valueCamera{frame: pngBytes(t), stops: stops}})

	require.NoError(t, wf.StartCamera(context.Background()))
	require.NoError(t, wf.Capture(context.Background()))
	assert.Equal(t, StateImageLoaded, wf.Snapshot().State)
	assert.EqualValues(t, 1, stops.Load())
}

func TestWorkflow_CaptureAfterCancelIsStale(t *testing.T) {
	stops := &atomic.Int32{}
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	wf := newWorkflow(Deps{Camera: valueCamera{frame: pngBytes(t), gate: gate, entered: entered, stops: stops}})
	require.NoError(t, wf.StartCamera(context.Background()))

	done := make(chan error, 1)
	go func() { done <- wf.Capture(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("capture never read a frame")
	}
	require.NoError(t, wf.CancelCamera())
	close(gate)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(2 * time.Second):
		t.Fatal("capture never returned")
	}
	s := wf.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Empty(t, s.Image)
	assert.GreaterOrEqual(t, stops.Load(), int32(1))
}

func TestWorkflow_CameraUnavailable(t *testing.T) {
	wf := newWorkflow(Deps{Camera: &fakeCamera{openErr: camera.ErrUnavailable}})

	err := wf.StartCamera(context.Background())
	assert.ErrorIs(t, err, ErrCameraUnavailable)
	s := wf.Snapshot()
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, camera.UnavailableMessage, s.Error)

	noDevice := newWorkflow(Deps{})
	assert.ErrorIs(t, noDevice.StartCamera(context.Background()), ErrCameraUnavailable)
}

func TestWorkflow_CaptureFailuresReleaseCamera(t *testing.T) {
	cases := map[string]struct {
		cam     *fakeCamera
		wantErr error
		wantMsg string
	}{
		"frame error": {&fakeCamera{frameEr: camera.ErrUnavailable}, ErrCameraUnavailable, camera.UnavailableMessage},
		"garbage":     {&fakeCamera{frame: []byte("not an image")}, ErrNotAnImage, decodeMessage},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			wf := newWorkflow(Deps{Camera: tc.cam})
			require.NoError(t, wf.StartCamera(context.Background()))

			err := wf.Capture(context.Background())
			assert.ErrorIs(t, err, tc.wantErr)
			s := wf.Snapshot()
			assert.Equal(t, StateIdle, s.State)
			assert.Equal(t, tc.wantMsg, s.Error)
			assert.EqualValues(t, 1, tc.cam.streams[0].stopped.Load())
		})
	}
}

func TestWorkflow_CameraReleasedOnEveryExit(t *testing.T) {
	exits := map[string]func(t *testing.T, wf *Workflow){
		"cancel": func(t *testing.T, wf *Workflow) { require.NoError(t, wf.CancelCamera()) },
		"upload": func(t *testing.T, wf *Workflow) { require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t)))) },
		"reset":  func(_ *testing.T, wf *Workflow) { wf.Reset() },
		"close":  func(_ *testing.T, wf *Workflow) { wf.Close() },
	}
	for name, exit := range exits {
		t.Run(name, func(t *testing.T) {
			cam := &fakeCamera{frame: pngBytes(t)}
			wf := newWorkflow(Deps{Camera: cam})
			require.NoError(t, wf.StartCamera(context.Background()))

			exit(t, wf)
			assert.EqualValues(t, 1, cam.streams[0].stopped.Load())
			assert.NotEqual(t, StateCameraActive, wf.Snapshot().State)
		})
	}
}

func TestWorkflow_CameraTransitions(t *testing.T) {
	wf := newWorkflow(Deps{Camera: &fakeCamera{frame: pngBytes(t)}})
	assert.ErrorIs(t, wf.CancelCamera(), ErrInvalidTransition)
	assert.ErrorIs(t, wf.Capture(context.Background()), ErrInvalidTransition)

	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	assert.ErrorIs(t, wf.StartCamera(context.Background()), ErrInvalidTransition)
}

func TestWorkflow_Closed(t *testing.T) {
	client := newBlockingAI()
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	p, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)

	wf.Close()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStale)

	assert.ErrorIs(t, wf.Upload(bytes.NewReader(pngBytes(t))), ErrClosed)
	_, err = wf.StartAnalysis(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, wf.StartCamera(context.Background()), ErrClosed)
	_, err = wf.Save(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, wf.Snapshot().Closed)
}

func TestPending_WaitHonoursContext(t *testing.T) {
	client := newBlockingAI()
	wf := newWorkflow(Deps{Analyzer: client})
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	p, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateAnalyzing, wf.Snapshot().State, "waiting caller giving up does not cancel the analysis")

	client.release <- reply{res: tomato()}
	<-p.Done()
}

func TestWorkflow_ResetAfterSavedResult(t *testing.T) {
	saves := &saveRecorder{}
	wf := newWorkflow(Deps{Analyzer: &instantAI{res: tomato()}, Save: saves.Save})

	runOnce := func() {
		require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
		_, err := wf.Analyze(context.Background())
		require.NoError(t, err)
		_, err = wf.Save(context.Background())
		require.NoError(t, err)
	}

	runOnce()
	require.True(t, wf.Snapshot().Saved)
	wf.Reset()

	got := wf.Snapshot()
	want := newWorkflow(Deps{}).Snapshot()
	got.ID, want.ID = "", ""
	got.Generation, want.Generation = 0, 0
	assert.Equal(t, want, got)

	runOnce()
	assert.Len(t, saves.items, 2, "save after reset calls the callback again")
	assert.True(t, wf.Snapshot().Saved)
}
