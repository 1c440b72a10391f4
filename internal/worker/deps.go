package worker

import (
	"context"
	"time"

	"avatarpipe/internal/pkg/logger"
)

// Queue hands out queued run IDs.
type Queue interface {
	Pop(ctx context.Context, timeout time.Duration) (string, error)
}

// Processor executes one run.
type Processor interface {
	ProcessRun(ctx context.Context, runID string) error
}

type Deps struct {
	Queue     Queue
	Processor Processor
	Log       *logger.Logger

	// PopTimeout bounds each blocking pop; RetryDelay is the pause after a
	// queue error.
	PopTimeout time.Duration
	RetryDelay time.Duration
}
