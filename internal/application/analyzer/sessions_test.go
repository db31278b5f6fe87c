package analyzer

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSessions(ttl time.Duration, deps Deps) *Sessions {
	return NewSessions(ttl, 0, func(id string) *Workflow { return New(id, deps) }, zap.NewNop())
}

func TestSessions_Lifecycle(t *testing.T) {
	s := newSessions(time.Minute, Deps{})

	wf := s.Create()
	require.NotEmpty(t, wf.ID())
	assert.Equal(t, 1, s.Count())

	got, err := s.Get(wf.ID())
	require.NoError(t, err)
	assert.Same(t, wf, got)

	require.NoError(t, s.Delete(wf.ID()))
	assert.True(t, wf.Snapshot().Closed)
	assert.Equal(t, 0, s.Count())

	_, err = s.Get(wf.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Delete(wf.ID()), ErrSessionNotFound)
}

func TestSessions_ExpiryClosesWorkflow(t *testing.T) {
	cam := &fakeCamera{}
	s := newSessions(20*time.Millisecond, Deps{Camera: cam})

	wf := s.Create()
	require.NoError(t, wf.StartCamera(context.Background()))

	time.Sleep(40 * time.Millisecond)
	s.Sweep()

	assert.True(t, wf.Snapshot().Closed)
	assert.EqualValues(t, 1, cam.streams[0].stopped.Load())
	_, err := s.Get(wf.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_GetExtendsLifetime(t *testing.T) {
	s := newSessions(300*time.Millisecond, Deps{})
	wf := s.Create()

	for i := 0; i < 3; i++ {
		time.Sleep(150 * time.Millisecond)
		_, err := s.Get(wf.ID())
		require.NoError(t, err)
	}
	s.Sweep()
	assert.False(t, wf.Snapshot().Closed)
}

func TestSessions_CloseCancelsAnalyses(t *testing.T) {
	client := newBlockingAI()
	s := newSessions(time.Minute, Deps{Analyzer: client})

	wf := s.Create()
	require.NoError(t, wf.Upload(bytes.NewReader(pngBytes(t))))
	p, err := wf.StartAnalysis(context.Background())
	require.NoError(t, err)
	waitStarted(t, client)

	s.Close()
	_, err = p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, 0, s.Count())
}

func TestSessions_GetSkipsClosedWorkflow(t *testing.T) {
	s := newSessions(time.Minute, Deps{})
	wf := s.Create()

	wf.Close()
	_, err := s.Get(wf.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessions_ConcurrentGetDoesNotRestoreDeleted(t *testing.T) {
	s := newSessions(time.Minute, Deps{})

	for i := 0; i < 200; i++ {
		wf := s.Create()
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Get(wf.ID())
			}()
		}
		require.NoError(t, s.Delete(wf.ID()))
		wg.Wait()

		_, err := s.Get(wf.ID())
		require.ErrorIs(t, err, ErrSessionNotFound)
	}
	assert.Equal(t, 0, s.Count())
}
