package poller

import (
	"context"
	"time"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/render"
)

const (
	DefaultInterval       = 10 * time.Second
	DefaultMaxWait        = 600 * time.Second
	DefaultNetworkBackoff = 5 * time.Second
	DefaultNetworkRetries = 3
)

// Clock is the time source the loop sleeps on.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Source is the part of the render client the poller uses.
type Source interface {
	Status(ctx context.Context, jobID string) (render.JobStatus, error)
	Download(ctx context.Context, videoURL, dst string) (string, error)
}

// Config bounds the wait.
type Config struct {
	Interval       time.Duration
	MaxWait        time.Duration
	NetworkBackoff time.Duration
	NetworkRetries int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.NetworkBackoff < 0 {
		c.NetworkBackoff = 0
	} else if c.NetworkBackoff == 0 {
		c.NetworkBackoff = DefaultNetworkBackoff
	}
	if c.NetworkRetries <= 0 {
		c.NetworkRetries = DefaultNetworkRetries
	}
	return c
}

// Poller waits for render jobs to finish.
type Poller struct {
	src   Source
	cfg   Config
	clock Clock
	log   *logger.Logger
}

// Option customises a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// New creates a poller over src.
func New(src Source, cfg Config, log *logger.Logger, opts ...Option) *Poller {
	p := &Poller{
		src:   src,
		cfg:   cfg.withDefaults(),
		clock: realClock{},
		log:   log.WithComponent("poller"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait queries the job until it completes, fails, or the wait budget runs
// out. Every sleep is capped at the remaining budget, so the timeout check
// runs on schedule even with long intervals.
func (p *Poller) Wait(ctx context.Context, jobID string) (State, error) {
	const op = "poller.wait"

	log := p.log.FromContext(ctx).With("job_id", jobID)
	log.Info("waiting for render", "max_wait", p.cfg.MaxWait.String(), "interval", p.cfg.Interval.String())

	start := p.clock.Now()
	st := NewState(jobID, p.cfg.NetworkRetries)

	for {
		elapsed := p.clock.Now().Sub(start)
		if elapsed >= p.cfg.MaxWait {
			return st, errors.Newf(errors.CodeTimeout,
				"video generation timed out after %d seconds", int(elapsed.Seconds())).
				WithOp(op).
				WithField("job_id", jobID).
				WithField("elapsed", elapsed.String())
		}

		status, err := p.src.Status(ctx, jobID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return st, errors.Wrap(ctxErr, op, "render wait canceled")
		}

		var act Action
		st, act = Transition(st, Observation{Status: status, Err: err})

		var pause time.Duration
		switch act.Kind {
		case Download:
			log.Info("render completed", "elapsed", int(elapsed.Seconds()), "queries", st.Queries)
			return st, nil
		case Fail:
			return st, act.Err
		case Retry:
			log.Warn("status query failed, retrying",
				"attempt", st.NetworkFailures,
				"max", st.MaxNetworkFailures,
				"error", err.Error(),
			)
			pause = p.cfg.NetworkBackoff
		case Wait:
			if act.Unrecognised {
				log.Warn("unknown render status", "status", st.Status)
			} else {
				log.Info("render status", "status", st.Status, "elapsed", int(elapsed.Seconds()))
			}
			pause = p.cfg.Interval
		}

		remaining := p.cfg.MaxWait - p.clock.Now().Sub(start)
		if pause > remaining {
			pause = remaining
		}
		if pause > 0 {
			if err := p.clock.Sleep(ctx, pause); err != nil {
				return st, errors.Wrap(err, op, "render wait canceled")
			}
		}
	}
}

// WaitAndDownload waits for the job and downloads the video to dst.
func (p *Poller) WaitAndDownload(ctx context.Context, jobID, dst string) (render.Video, error) {
	st, err := p.Wait(ctx, jobID)
	if err != nil {
		return render.Video{}, err
	}
	path, err := p.src.Download(ctx, st.VideoURL, dst)
	if err != nil {
		return render.Video{}, err
	}
	return render.Video{Path: path, SourceJob: jobID}, nil
}
