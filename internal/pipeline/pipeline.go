// Package pipeline runs the two-phase script to avatar video workflow.
//
// Phase 1 turns a script into two candidate narrations for review. Phase 2
// renders a video from the chosen narration and fans the result out to the
// publication steps.
package pipeline

import (
	"context"
	"time"

	"avatarpipe/internal/artifact"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/publish"
	"avatarpipe/internal/render"
	"avatarpipe/internal/speech"
)

// Phase is a stage of a run, reported through Options.OnPhase. Finer
// progress is reported per step through Options.OnStep.
type Phase string

const (
	PhaseAudioGenerating Phase = "audio_generating"
	PhaseAudioReady      Phase = "audio_ready"
	PhaseVideoGenerating Phase = "video_generating"
	PhaseVideoReady      Phase = "video_ready"
)

// DefaultBackground is the render background colour.
const DefaultBackground = "#ffffff"

// Progress identifies the step about to run.
type Progress struct {
	Step  int
	Total int
	Name  string
}

// Synthesizer produces the two candidate narrations.
type Synthesizer interface {
	SynthesizeDual(ctx context.Context, text, basePath string) (speech.Dual, error)
}

// Renderer submits render jobs.
type Renderer interface {
	UploadAudio(ctx context.Context, path string) (string, error)
	CreateJob(ctx context.Context, req render.JobRequest) (render.Job, error)
}

// Waiter waits for a render job and fetches its video.
type Waiter interface {
	WaitAndDownload(ctx context.Context, jobID, dst string) (render.Video, error)
}

// Paths are the directories the pipeline writes to.
type Paths struct {
	OutputDir string
	TempDir   string
}

// Deps wires the pipeline to its collaborators. Cloud steps run unless
// Options.SkipCloud is set; YouTube runs only when requested.
type Deps struct {
	Speech  Synthesizer
	Render  Renderer
	Poller  Waiter
	Cloud   []publish.Step
	YouTube publish.Step

	Paths          Paths
	NotifyEmail    string
	YouTubePrivacy string
	Log            *logger.Logger
}

// Options tune a single run.
type Options struct {
	// OutputName names the video; the script base name is used when empty.
	OutputName     string
	Background     string
	SkipCloud      bool
	Email          string
	UploadYouTube  bool
	YouTubeTitle   string
	YouTubePrivacy string

	OnPhase func(Phase)
	OnStep  func(Progress)
}

func (o Options) phase(p Phase) {
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

func (o Options) step(n, total int, name string) {
	if o.OnStep != nil {
		o.OnStep(Progress{Step: n, Total: total, Name: name})
	}
}

// AudioResult is the outcome of Phase 1.
type AudioResult struct {
	ScriptName      string        `json:"script_name"`
	ScriptStem      string        `json:"script_stem"`
	ScriptLength    int           `json:"script_length"`
	StableAudio     string        `json:"stable_audio"`
	ExpressiveAudio string        `json:"expressive_audio"`
	Elapsed         time.Duration `json:"elapsed"`
}

// VideoResult is the outcome of Phase 2.
type VideoResult struct {
	VideoPath       string           `json:"video_path"`
	AudioPath       string           `json:"audio_path"`
	BaseName        string           `json:"base_name"`
	SelectedVariant artifact.Variant `json:"selected_variant"`
	JobID           string           `json:"job_id"`
	DriveLink       string           `json:"drive_link,omitempty"`
	SheetLink       string           `json:"sheet_link,omitempty"`
	YouTubeURL      string           `json:"youtube_url,omitempty"`
	Duration        time.Duration    `json:"duration"`
	Publication     publish.Report   `json:"publication"`
}

// FullResult combines both phases.
type FullResult struct {
	Audio *AudioResult `json:"audio"`
	Video *VideoResult `json:"video"`
}

// Pipeline runs the workflow.
type Pipeline struct {
	deps Deps
	log  *logger.Logger
	now  func() time.Time
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pipeline{
		deps: d,
		log:  log.WithComponent("pipeline"),
		now:  time.Now,
	}
}

// RunFull runs Phase 1 and continues with the Stable take.
func (p *Pipeline) RunFull(ctx context.Context, scriptPath string, opts Options) (*FullResult, error) {
	audio, err := p.GenerateAudio(ctx, scriptPath, opts)
	if err != nil {
		return nil, err
	}

	p.log.FromContext(ctx).Info("continuing with stable take", "audio", audio.StableAudio)

	video, err := p.ContinueWithAudio(ctx, audio.StableAudio, opts)
	if err != nil {
		return &FullResult{Audio: audio}, err
	}
	return &FullResult{Audio: audio, Video: video}, nil
}
