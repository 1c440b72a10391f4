// Package worker consumes run IDs from the queue and processes them one at a
// time until its context is canceled.
package worker

import (
	"context"
	"time"

	"avatarpipe/internal/pkg/logger"
)

const (
	defaultPopTimeout = 30 * time.Second
	defaultRetryDelay = time.Second
)

func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = defaultPopTimeout
	}
	retryDelay := d.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		runID, err := d.Queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying", "error", err.Error())
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if runID == "" {
			continue
		}

		runLog := log.WithRunID(runID)
		runLog.Info("processing run")
		start := time.Now()

		if err := d.Processor.ProcessRun(ctx, runID); err != nil {
			runLog.Error("run failed",
				"error", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		} else {
			runLog.Info("run completed",
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}
	}
}
