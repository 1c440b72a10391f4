// Package publish runs the optional steps that follow a successful render:
// archiving, logging, notification and video hosting. A failed step is
// recorded and logged; it never fails the run.
package publish

import (
	"context"
	"fmt"
	"time"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

// Outcome carries what the steps need and collects what they produce.
type Outcome struct {
	VideoPath    string
	VideoName    string
	AudioPath    string
	BaseName     string
	ScriptLength int
	Elapsed      time.Duration

	Email          string
	YouTubeTitle   string
	YouTubePrivacy string

	DriveLink  string
	SheetLink  string
	SheetRow   int
	YouTubeURL string
}

// Step is one publication action.
type Step interface {
	Name() string
	Run(ctx context.Context, out *Outcome) error
}

// StepResult records one step.
type StepResult struct {
	Name     string        `json:"name"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the step succeeded.
func (r StepResult) OK() bool { return r.Err == nil }

// Report is the per-step record of a fan-out.
type Report struct {
	Steps []StepResult `json:"steps"`
}

// Failed returns the steps that did not succeed.
func (r Report) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if !s.OK() {
			failed = append(failed, s)
		}
	}
	return failed
}

// Hook is called before each step starts.
type Hook func(name string)

// Run executes every step in order against out. Each step runs regardless of
// earlier failures and sees whatever earlier steps produced.
func Run(ctx context.Context, out *Outcome, steps []Step, log *logger.Logger, before Hook) Report {
	log = log.FromContext(ctx).WithComponent("publish")

	report := Report{Steps: make([]StepResult, 0, len(steps))}
	for _, step := range steps {
		if before != nil {
			before(step.Name())
		}

		start := time.Now()
		err := runStep(ctx, step, out)
		res := StepResult{Name: step.Name(), Err: err, Duration: time.Since(start)}

		if err != nil {
			res.Error = err.Error()
			log.Warn("publication step failed",
				"step", step.Name(),
				"error_code", string(errors.GetCode(err)),
				"error", err.Error(),
			)
		} else {
			log.Info("publication step done", "step", step.Name(), "duration", res.Duration.String())
		}
		report.Steps = append(report.Steps, res)
	}
	return report
}

func runStep(ctx context.Context, step Step, out *Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.CodeInternal, fmt.Sprintf("step %s panicked: %v", step.Name(), r)).
				WithOp("publish.run")
		}
	}()
	return step.Run(ctx, out)
}
