// Package processor executes one queued run: it loads the row, drives the
// pipeline in the requested mode and records phase, result and failure.
package processor

import (
	"context"

	"avatarpipe/internal/models"
	"avatarpipe/internal/pipeline"
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

// Runs is the run store the processor updates.
type Runs interface {
	Get(ctx context.Context, id string) (*models.Run, error)
	MarkRunning(ctx context.Context, id string) error
	SetPhase(ctx context.Context, id, phase string) error
	MarkDone(ctx context.Context, id string, result any) error
	MarkFailed(ctx context.Context, id, message string, partial any) error
}

// Runner is the pipeline surface a run can invoke.
type Runner interface {
	GenerateAudio(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.AudioResult, error)
	ContinueWithAudio(ctx context.Context, audioPath string, opts pipeline.Options) (*pipeline.VideoResult, error)
	RunFull(ctx context.Context, scriptPath string, opts pipeline.Options) (*pipeline.FullResult, error)
}

type Deps struct {
	Runs     Runs
	Pipeline Runner
	// TempDir is the pipeline temp directory; CleanupTemp removes a run's
	// intermediate takes from it once the run finishes.
	TempDir     string
	CleanupTemp bool
	Log         *logger.Logger
}

type Processor struct {
	runs     Runs
	pipeline Runner
	cleanup  *Cleanup
	log      *logger.Logger
}

func New(d Deps) *Processor {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Processor{
		runs:     d.Runs,
		pipeline: d.Pipeline,
		cleanup:  NewCleanup(d.TempDir, d.CleanupTemp),
		log:      log.WithComponent("processor"),
	}
}

// ProcessRun orchestrates a single run end to end.
func (p *Processor) ProcessRun(ctx context.Context, runID string) error {
	ctx = logger.ContextWithRunID(ctx, runID)
	log := p.log.FromContext(ctx)

	// 1. Load the run
	log.Debug("loading run")
	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		if errors.IsNotFound(err) {
			log.Warn("run not found, dropping")
		}
		return err
	}
	if run.Status != models.StatusQueued {
		log.Warn("run is not queued, skipping", "status", string(run.Status))
		return nil
	}

	// 2. Mark as running
	if err := p.runs.MarkRunning(ctx, runID); err != nil {
		return p.failRun(ctx, runID, errors.Wrap(err, "processor.status", "failed to mark run as running"), nil)
	}

	// 3. Execute the requested mode
	opts := p.options(ctx, run)
	log.Info("starting run", "mode", string(run.Mode))

	var (
		result any
		stem   string
	)
	switch run.Mode {
	case models.ModeAudio:
		res, err := p.pipeline.GenerateAudio(ctx, run.ScriptPath, opts)
		if err != nil {
			return p.failRun(ctx, runID, err, nil)
		}
		result, stem = res, res.ScriptStem
	case models.ModeContinue:
		res, err := p.pipeline.ContinueWithAudio(ctx, run.AudioPath, opts)
		if err != nil {
			return p.failRun(ctx, runID, err, nil)
		}
		result = res
	case models.ModeFull:
		res, err := p.pipeline.RunFull(ctx, run.ScriptPath, opts)
		if res != nil && res.Audio != nil {
			stem = res.Audio.ScriptStem
		}
		if err != nil {
			p.cleanup.CleanupRun(stem)
			var partial any
			if res != nil {
				partial = res
			}
			return p.failRun(ctx, runID, err, partial)
		}
		result = res
	default:
		return p.failRun(ctx, runID, errors.ValidationField("mode", "unknown run mode "+string(run.Mode)), nil)
	}

	// 4. Remove intermediate takes
	p.cleanup.CleanupRun(stem)

	// 5. Store the result and complete
	if err := p.runs.MarkDone(ctx, runID, result); err != nil {
		return p.failRun(ctx, runID, errors.Wrap(err, "processor.save", "failed to save run result"), nil)
	}
	return nil
}

func (p *Processor) options(ctx context.Context, run *models.Run) pipeline.Options {
	log := p.log.FromContext(ctx)
	o := run.Options
	return pipeline.Options{
		OutputName:     o.OutputName,
		Background:     o.Background,
		SkipCloud:      o.SkipCloud,
		Email:          o.Email,
		UploadYouTube:  o.UploadYouTube,
		YouTubeTitle:   o.YouTubeTitle,
		YouTubePrivacy: o.YouTubePrivacy,
		OnPhase: func(ph pipeline.Phase) {
			if err := p.runs.SetPhase(ctx, run.ID, string(ph)); err != nil {
				log.Warn("could not record phase", "phase", string(ph), "error", err.Error())
			}
		},
		OnStep: func(s pipeline.Progress) {
			log.Debug("step", "step", s.Step, "total", s.Total, "name", s.Name)
		},
	}
}

func (p *Processor) failRun(ctx context.Context, runID string, cause error, partial any) error {
	log := p.log.FromContext(ctx)

	var coded *errors.Error
	if errors.As(cause, &coded) {
		log.Error("run failed",
			"code", string(coded.Code),
			"op", coded.Op,
			"message", coded.Message,
			"error", cause.Error(),
		)
	} else {
		log.Error("run failed", "error", cause.Error())
	}

	if err := p.runs.MarkFailed(ctx, runID, cause.Error(), partial); err != nil {
		log.Warn("could not record failure", "error", err.Error())
	}
	return cause
}
