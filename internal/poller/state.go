// Package poller waits for a render job to reach a terminal state.
//
// The decision logic is a pure transition function over State and one status
// Observation; Poller drives it against the vendor with bounded waiting.
package poller

import (
	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/render"
)

// ActionKind is what the loop does after an observation.
type ActionKind int

const (
	// Wait sleeps for the poll interval, then queries again.
	Wait ActionKind = iota
	// Retry sleeps for the network backoff after a failed query.
	Retry
	// Download fetches the finished video.
	Download
	// Fail stops polling with Action.Err.
	Fail
)

func (k ActionKind) String() string {
	switch k {
	case Wait:
		return "wait"
	case Retry:
		return "retry"
	case Download:
		return "download"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// Action is the outcome of one transition.
type Action struct {
	Kind ActionKind
	Err  error
	// Unrecognised is set when the vendor reported a status outside the known set.
	Unrecognised bool
}

// State is the poller's view of one job.
type State struct {
	JobID  string
	Status string
	// Queries counts every status query, failed or not.
	Queries int
	// NetworkFailures counts consecutive transient query failures.
	NetworkFailures int
	// MaxNetworkFailures is the consecutive failure count that ends polling.
	MaxNetworkFailures int
	VideoURL           string
}

// NewState returns the initial state for a job.
func NewState(jobID string, maxNetworkFailures int) State {
	if maxNetworkFailures <= 0 {
		maxNetworkFailures = 1
	}
	return State{JobID: jobID, MaxNetworkFailures: maxNetworkFailures}
}

// Observation is the result of one status query.
type Observation struct {
	Status render.JobStatus
	Err    error
}

// Transition applies one observation. It has no side effects.
func Transition(s State, obs Observation) (State, Action) {
	const op = "poller.transition"

	s.Queries++

	if obs.Err != nil {
		if !errors.IsTransient(obs.Err) {
			return s, Action{Kind: Fail, Err: obs.Err}
		}
		s.NetworkFailures++
		if s.NetworkFailures >= s.MaxNetworkFailures {
			return s, Action{Kind: Fail, Err: errors.Wrapf(obs.Err, op,
				"status query failed %d times in a row", s.NetworkFailures)}
		}
		return s, Action{Kind: Retry}
	}

	s.NetworkFailures = 0
	s.Status = obs.Status.Status

	switch s.Status {
	case render.StatusCompleted:
		if obs.Status.VideoURL == "" {
			return s, Action{Kind: Fail, Err: errors.New(errors.CodeVendorRejection,
				"no video URL in completed status").WithOp(op).WithField("job_id", s.JobID)}
		}
		s.VideoURL = obs.Status.VideoURL
		return s, Action{Kind: Download}
	case render.StatusFailed:
		reason := obs.Status.Error
		if reason == "" {
			reason = "Unknown error"
		}
		return s, Action{Kind: Fail, Err: errors.Newf(errors.CodeRenderFailed,
			"video generation failed: %s", reason).
			WithOp(op).
			WithField("job_id", s.JobID).
			WithField("reason", reason)}
	case render.StatusPending, render.StatusProcessing, render.StatusWaiting:
		return s, Action{Kind: Wait}
	default:
		return s, Action{Kind: Wait, Unrecognised: true}
	}
}
