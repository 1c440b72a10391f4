package poller

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/render"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

type step struct {
	status render.JobStatus
	err    error
}

type fakeSource struct {
	steps       []step
	queries     int
	downloaded  []string
	downloadErr error
}

func (f *fakeSource) Status(ctx context.Context, jobID string) (render.JobStatus, error) {
	i := f.queries
	f.queries++
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	return f.steps[i].status, f.steps[i].err
}

func (f *fakeSource) Download(ctx context.Context, videoURL, dst string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	f.downloaded = append(f.downloaded, videoURL)
	return dst, nil
}

func processing() step { return step{status: render.JobStatus{Status: render.StatusProcessing}} }

func completed(url string) step {
	return step{status: render.JobStatus{Status: render.StatusCompleted, VideoURL: url}}
}

func networkErr() step {
	return step{err: errors.WrapWithCode(fmt.Errorf("dial tcp: i/o timeout"), errors.CodeNetwork, "render.status", "status query failed")}
}

func testConfig() Config {
	return Config{
		Interval:       10 * time.Second,
		MaxWait:        600 * time.Second,
		NetworkBackoff: 5 * time.Second,
		NetworkRetries: 3,
	}
}

func newTestPoller(src Source, cfg Config, clock Clock) *Poller {
	return New(src, cfg, logger.Discard(), WithClock(clock))
}

func TestWaitCompletesAfterThirdQuery(t *testing.T) {
	src := &fakeSource{steps: []step{processing(), processing(), completed("https://cdn/v.mp4")}}
	clock := newFakeClock()

	st, err := newTestPoller(src, testConfig(), clock).Wait(context.Background(), "vid")
	require.NoError(t, err)

	assert.Equal(t, 3, src.queries)
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, clock.sleeps)
	assert.Equal(t, "https://cdn/v.mp4", st.VideoURL)
	assert.Equal(t, render.StatusCompleted, st.Status)
}

func TestWaitTimesOutWithoutFurtherQueries(t *testing.T) {
	src := &fakeSource{steps: []step{processing()}}
	clock := newFakeClock()
	cfg := testConfig()
	cfg.MaxWait = 25 * time.Second

	_, err := newTestPoller(src, cfg, clock).Wait(context.Background(), "vid")
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.CodeTimeout))
	assert.Contains(t, err.Error(), "25 seconds")
	assert.Equal(t, 3, src.queries, "queries at 0s, 10s and 20s only")
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second, 5 * time.Second}, clock.sleeps,
		"last sleep is capped at the remaining budget")
}

func TestWaitRecoversFromTwoNetworkFailures(t *testing.T) {
	src := &fakeSource{steps: []step{networkErr(), networkErr(), completed("https://cdn/v.mp4")}}
	clock := newFakeClock()

	st, err := newTestPoller(src, testConfig(), clock).Wait(context.Background(), "vid")
	require.NoError(t, err)

	assert.Equal(t, 3, src.queries)
	assert.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second}, clock.sleeps)
	assert.Zero(t, st.NetworkFailures)
}

func TestWaitPropagatesThirdNetworkFailure(t *testing.T) {
	src := &fakeSource{steps: []step{networkErr(), networkErr(), networkErr(), completed("never")}}
	clock := newFakeClock()

	_, err := newTestPoller(src, testConfig(), clock).Wait(context.Background(), "vid")
	require.Error(t, err)

	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, 3, src.queries, "no fourth query")
	assert.Len(t, clock.sleeps, 2)
}

func TestWaitSuccessResetsNetworkFailures(t *testing.T) {
	src := &fakeSource{steps: []step{
		networkErr(), networkErr(), processing(),
		networkErr(), networkErr(), completed("https://cdn/v.mp4"),
	}}
	clock := newFakeClock()

	_, err := newTestPoller(src, testConfig(), clock).Wait(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, 6, src.queries)
}

func TestWaitFailedJob(t *testing.T) {
	src := &fakeSource{steps: []step{
		processing(),
		{status: render.JobStatus{Status: render.StatusFailed, Error: "avatar rejected"}},
	}}

	_, err := newTestPoller(src, testConfig(), newFakeClock()).Wait(context.Background(), "vid")
	require.Error(t, err)

	assert.True(t, errors.IsCode(err, errors.CodeRenderFailed))
	assert.Contains(t, err.Error(), "avatar rejected")
	assert.Equal(t, "avatar rejected", errors.GetFields(err)["reason"])
}

func TestWaitCompletedWithoutURL(t *testing.T) {
	src := &fakeSource{steps: []step{{status: render.JobStatus{Status: render.StatusCompleted}}}}

	_, err := newTestPoller(src, testConfig(), newFakeClock()).Wait(context.Background(), "vid")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeVendorRejection))
}

func TestWaitVendorRejectionIsNotRetried(t *testing.T) {
	rejection := errors.Vendor(errors.CodeVendorRejection, "heygen", 500, "")
	src := &fakeSource{steps: []step{{err: rejection}, completed("never")}}

	_, err := newTestPoller(src, testConfig(), newFakeClock()).Wait(context.Background(), "vid")
	require.Error(t, err)
	assert.Equal(t, 1, src.queries)
}

func TestWaitUnknownStatusKeepsPolling(t *testing.T) {
	src := &fakeSource{steps: []step{
		{status: render.JobStatus{Status: "queued_for_gpu"}},
		completed("https://cdn/v.mp4"),
	}}
	clock := newFakeClock()

	_, err := newTestPoller(src, testConfig(), clock).Wait(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Second}, clock.sleeps)
}

func TestWaitCanceled(t *testing.T) {
	src := &fakeSource{steps: []step{processing()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestPoller(src, testConfig(), newFakeClock()).Wait(ctx, "vid")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWaitAndDownload(t *testing.T) {
	src := &fakeSource{steps: []step{completed("https://cdn/v.mp4")}}

	video, err := newTestPoller(src, testConfig(), newFakeClock()).
		WaitAndDownload(context.Background(), "vid", "/out/demo_video.mp4")
	require.NoError(t, err)

	assert.Equal(t, render.Video{Path: "/out/demo_video.mp4", SourceJob: "vid"}, video)
	assert.Equal(t, []string{"https://cdn/v.mp4"}, src.downloaded)
}

func TestWaitAndDownloadFailure(t *testing.T) {
	src := &fakeSource{
		steps:       []step{completed("https://cdn/v.mp4")},
		downloadErr: errors.New(errors.CodeDownload, "404"),
	}

	_, err := newTestPoller(src, testConfig(), newFakeClock()).
		WaitAndDownload(context.Background(), "vid", "/out/demo_video.mp4")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDownload))
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		obs      Observation
		kind     ActionKind
		failures int
	}{
		{"pending waits", NewState("j", 3), Observation{Status: render.JobStatus{Status: render.StatusPending}}, Wait, 0},
		{"waiting waits", NewState("j", 3), Observation{Status: render.JobStatus{Status: render.StatusWaiting}}, Wait, 0},
		{"first network failure retries", NewState("j", 3), Observation{Err: networkErr().err}, Retry, 1},
		{"limit reached fails", State{MaxNetworkFailures: 3, NetworkFailures: 2}, Observation{Err: networkErr().err}, Fail, 3},
		{"success resets", State{MaxNetworkFailures: 3, NetworkFailures: 2}, Observation{Status: render.JobStatus{Status: render.StatusProcessing}}, Wait, 0},
		{"completed downloads", NewState("j", 3), Observation{Status: render.JobStatus{Status: render.StatusCompleted, VideoURL: "u"}}, Download, 0},
		{"failed fails", NewState("j", 3), Observation{Status: render.JobStatus{Status: render.StatusFailed}}, Fail, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, act := Transition(tt.state, tt.obs)
			assert.Equal(t, tt.kind, act.Kind, "got %s", act.Kind)
			assert.Equal(t, tt.failures, next.NetworkFailures)
			assert.Equal(t, tt.state.Queries+1, next.Queries)
		})
	}
}
