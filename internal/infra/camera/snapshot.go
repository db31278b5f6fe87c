// Package camera provides camera.Device implementations.
package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bryanwahyu/leafdoctor/internal/domain/camera"
)

const (
	defaultTimeout = 10 * time.Second
	maxFrameBytes  = 20 << 20
)

// Snapshot is a camera reachable over HTTP that returns one still image per GET.
type Snapshot struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

func NewSnapshot(rawURL string, timeout time.Duration, client *http.Client) (*Snapshot, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid snapshot url %q", rawURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Snapshot{url: rawURL, timeout: timeout, client: client}, nil
}

// Open probes the camera once so an unreachable device fails here rather than
// on the first capture.
func (s *Snapshot) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	st := &snapshotStream{cam: s, constraints: c}
	if _, err := st.fetch(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

type snapshotStream struct {
	cam         *Snapshot
	constraints camera.Constraints

	mu      sync.Mutex
	stopped bool
}

func (st *snapshotStream) Frame(ctx context.Context) ([]byte, error) {
	st.mu.Lock()
	stopped := st.stopped
	st.mu.Unlock()
	if stopped {
		return nil, camera.ErrStopped
	}
	return st.fetch(ctx)
}

func (st *snapshotStream) Stop() error {
	st.mu.Lock()
	st.stopped = true
	st.mu.Unlock()
	return nil
}

func (st *snapshotStream) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, st.cam.timeout)
	defer cancel()

	u, _ := url.Parse(st.cam.url)
	q := u.Query()
	if st.constraints.Width > 0 {
		q.Set("width", strconv.Itoa(st.constraints.Width))
	}
	if st.constraints.Height > 0 {
		q.Set("height", strconv.Itoa(st.constraints.Height))
	}
	if st.constraints.FacingMode != "" {
		q.Set("facing", st.constraints.FacingMode)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrUnavailable, err)
	}
	resp, err := st.cam.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", camera.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: snapshot returned %s", camera.ErrUnavailable, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read frame: %v", camera.ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame", camera.ErrUnavailable)
	}
	return data, nil
}

// None is used when no camera is configured; every Open fails.
type None struct{}

func (None) Open(context.Context, camera.Constraints) (camera.Stream, error) {
	return nil, fmt.Errorf("%w: no camera configured", camera.ErrUnavailable)
}
