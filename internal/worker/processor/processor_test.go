package processor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avatarpipe/internal/models"
	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/speech"
)

type fakeRuns struct {
	mu      sync.Mutex
	runs    map[string]*models.Run
	phases  []string
	result  any
	failMsg string
	partial any
}

func newFakeRuns(runs ...*models.Run) *fakeRuns {
	f := &fakeRuns{runs: map[string]*models.Run{}}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRuns) Get(ctx context.Context, id string) (*models.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, errors.NotFound("run", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuns) MarkRunning(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.StatusRunning
	return nil
}

func (f *fakeRuns) SetPhase(ctx context.Context, id, phase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.phases = append(f.phases, phase)
	f.runs[id].Phase = phase
	return nil
}

func (f *fakeRuns) MarkDone(ctx context.Context, id string, result any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.StatusDone
	f.result = result
	return nil
}

func (f *fakeRuns) MarkFailed(ctx context.Context, id, message string, partial any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[id].Status = models.StatusFailed
	f.failMsg = message
	f.partial = partial
	return nil
}

type fakePipeline struct {
	opts     pipeline.Options
	audioErr error
	videoErr error
	path     string
}

func (f *fakePipeline) GenerateAudio(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.AudioResult, error) {
	f.opts, f.path = opts, scriptPath
	opts.OnPhase(pipeline.PhaseAudioGenerating)
	if f.audioErr != nil {
		return nil, f.audioErr
	}
	opts.OnPhase(pipeline.PhaseAudioReady)
	return &pipeline.AudioResult{ScriptStem: "weekly", StableAudio: "out/weekly_audio_OptionA.mp3"}, nil
}

func (f *fakePipeline) ContinueWithAudio(ctx context.Context, audioPath string, opts pipeline.Options) (*pipeline.VideoResult, error) {
	f.opts, f.path = opts, audioPath
	opts.OnPhase(pipeline.PhaseVideoGenerating)
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	opts.OnPhase(pipeline.PhaseVideoReady)
	return &pipeline.VideoResult{VideoPath: "out/weekly_video.mp4"}, nil
}

func (f *fakePipeline) RunFull(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.FullResult, error) {
	audio, err := f.GenerateAudio(ctx, scriptPath, opts)
	if err != nil {
		return nil, err
	}
	video, err := f.ContinueWithAudio(ctx, audio.StableAudio, opts)
	if err != nil {
		return &pipeline.FullResult{Audio: audio}, err
	}
	return &pipeline.FullResult{Audio: audio, Video: video}, nil
}

func queued(mode models.Mode) *models.Run {
	return models.NewRun(models.CreateRunRequest{
		Mode:       mode,
		ScriptPath: "scripts/weekly.txt",
		AudioPath:  "out/weekly_audio_OptionB.mp3",
		Options:    models.RunOptions{SkipCloud: true, YouTubeTitle: "Weekly"},
	}, time.Now())
}

func newProcessor(runs Runs, p Runner, tempDir string) *Processor {
	return New(Deps{Runs: runs, Pipeline: p, TempDir: tempDir, CleanupTemp: tempDir != "", Log: logger.Discard()})
}

func TestProcessAudioRun(t *testing.T) {
	run := queued(models.ModeAudio)
	runs := newFakeRuns(run)
	pl := &fakePipeline{}

	require.NoError(t, newProcessor(runs, pl, "").ProcessRun(context.Background(), run.ID))

	assert.Equal(t, models.StatusDone, runs.runs[run.ID].Status)
	assert.Equal(t, []string{"audio_generating", "audio_ready"}, runs.phases)
	assert.Equal(t, "scripts/weekly.txt", pl.path)
	assert.True(t, pl.opts.SkipCloud)
	assert.Equal(t, "Weekly", pl.opts.YouTubeTitle)
	require.IsType(t, &pipeline.AudioResult{}, runs.result)
}

func TestProcessContinueRun(t *testing.T) {
	run := queued(models.ModeContinue)
	runs := newFakeRuns(run)
	pl := &fakePipeline{}

	require.NoError(t, newProcessor(runs, pl, "").ProcessRun(context.Background(), run.ID))

	assert.Equal(t, "out/weekly_audio_OptionB.mp3", pl.path)
	assert.Equal(t, "video_ready", runs.runs[run.ID].Phase)
	res, ok := runs.result.(*pipeline.VideoResult)
	require.True(t, ok)
	assert.Equal(t, "out/weekly_video.mp4", res.VideoPath)
}

func TestProcessFullRunFailureKeepsPartial(t *testing.T) {
	run := queued(models.ModeFull)
	runs := newFakeRuns(run)
	pl := &fakePipeline{videoErr: errors.New(errors.CodeRenderFailed, "video generation failed: bad avatar")}

	err := newProcessor(runs, pl, "").ProcessRun(context.Background(), run.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeRenderFailed))

	assert.Equal(t, models.StatusFailed, runs.runs[run.ID].Status)
	assert.Contains(t, runs.failMsg, "bad avatar")
	partial, ok := runs.partial.(*pipeline.FullResult)
	require.True(t, ok)
	assert.NotNil(t, partial.Audio)
	assert.Nil(t, partial.Video)
}

func TestProcessFullRunPhaseOneFailureHasNoPartial(t *testing.T) {
	run := queued(models.ModeFull)
	runs := newFakeRuns(run)
	pl := &fakePipeline{audioErr: errors.Validation("script file is empty")}

	err := newProcessor(runs, pl, "").ProcessRun(context.Background(), run.ID)
	require.Error(t, err)
	assert.Equal(t, models.StatusFailed, runs.runs[run.ID].Status)
	assert.Nil(t, runs.partial)
}

func TestProcessSkipsNonQueuedRun(t *testing.T) {
	run := queued(models.ModeAudio)
	run.Status = models.StatusDone
	runs := newFakeRuns(run)
	pl := &fakePipeline{}

	require.NoError(t, newProcessor(runs, pl, "").ProcessRun(context.Background(), run.ID))
	assert.Empty(t, pl.path)
	assert.Nil(t, runs.result)
}

func TestProcessMissingRun(t *testing.T) {
	err := newProcessor(newFakeRuns(), &fakePipeline{}, "").ProcessRun(context.Background(), "run_gone")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestProcessUnknownMode(t *testing.T) {
	run := queued(models.ModeAudio)
	run.Mode = "video"
	runs := newFakeRuns(run)

	err := newProcessor(runs, &fakePipeline{}, "").ProcessRun(context.Background(), run.ID)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Equal(t, models.StatusFailed, runs.runs[run.ID].Status)
}

func TestCleanupRemovesTempTakes(t *testing.T) {
	dir := t.TempDir()
	stable, expressive := speech.DualPaths(filepath.Join(dir, "audio", "weekly"))
	require.NoError(t, os.MkdirAll(filepath.Dir(stable), 0o755))
	for _, p := range []string{stable, expressive} {
		require.NoError(t, os.WriteFile(p, []byte("mp3"), 0o644))
	}
	keep := filepath.Join(dir, "audio", "other_OptionA.mp3")
	require.NoError(t, os.WriteFile(keep, []byte("mp3"), 0o644))

	run := queued(models.ModeAudio)
	require.NoError(t, newProcessor(newFakeRuns(run), &fakePipeline{}, dir).ProcessRun(context.Background(), run.ID))

	assert.NoFileExists(t, stable)
	assert.NoFileExists(t, expressive)
	assert.FileExists(t, keep)
}

func TestCleanupDisabled(t *testing.T) {
	dir := t.TempDir()
	stable, _ := speech.DualPaths(filepath.Join(dir, "audio", "weekly"))
	require.NoError(t, os.MkdirAll(filepath.Dir(stable), 0o755))
	require.NoError(t, os.WriteFile(stable, []byte("mp3"), 0o644))

	NewCleanup(dir, false).CleanupRun("weekly")
	assert.FileExists(t, stable)
}
