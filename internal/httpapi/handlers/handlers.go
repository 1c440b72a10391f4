// Package handlers implements the run API endpoints.
package handlers

import (
	"context"
	"time"

	"avatarpipe/internal/models"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/ports"
)

// RunStore persists runs.
type RunStore interface {
	Create(ctx context.Context, run *models.Run) error
	Get(ctx context.Context, id string) (*models.Run, error)
	List(ctx context.Context, status models.Status, limit int) ([]models.Run, error)
	MarkFailed(ctx context.Context, id, message string, partial any) error
}

// Enqueuer hands a run ID to the worker.
type Enqueuer interface {
	Push(ctx context.Context, runID string) error
}

// Check is a named dependency probe for the deep health check.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Deps struct {
	Runs   RunStore
	Queue  Enqueuer
	SP     ports.StorageProvider
	Checks []Check
	Log    *logger.Logger
}

type Handler struct {
	runs   RunStore
	queue  Enqueuer
	sp     ports.StorageProvider
	checks []Check
	log    *logger.Logger
	now    func() time.Time
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Handler{
		runs:   d.Runs,
		queue:  d.Queue,
		sp:     d.SP,
		checks: d.Checks,
		log:    log.WithComponent("api"),
		now:    time.Now,
	}
}

// Log returns the handler's logger.
func (h *Handler) Log() *logger.Logger {
	return h.log
}
