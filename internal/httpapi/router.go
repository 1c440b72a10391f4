// Package httpapi assembles the run API router.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"avatarpipe/internal/httpapi/handlers"
	"avatarpipe/internal/httpkit"
	"avatarpipe/internal/pkg/logger"
	"avatarpipe/internal/pkg/middleware"
	"avatarpipe/internal/ports"
)

// DefaultCORSOrigins are allowed when none are configured.
var DefaultCORSOrigins = []string{
	"http://localhost:8081",
	"http://localhost:5173",
}

type Deps struct {
	Runs        handlers.RunStore
	Queue       handlers.Enqueuer
	SP          ports.StorageProvider
	Checks      []handlers.Check
	CORSOrigins []string
	Log         *logger.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}

	r := chi.NewRouter()

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))
	r.Use(httpkit.CORS(httpkit.CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAgeSeconds:  600,
	}))

	h := handlers.New(handlers.Deps{
		Runs:   d.Runs,
		Queue:  d.Queue,
		SP:     d.SP,
		Checks: d.Checks,
		Log:    log,
	})
	wrap := func(fn middleware.ErrorHandlerFunc) http.HandlerFunc {
		return middleware.WrapHandler(h.Log(), fn)
	}

	// ---- HEALTH ----
	r.Get("/health", h.Health)

	// ---- RUNS ----
	r.Post("/runs", wrap(h.PostRun))
	r.Get("/runs", wrap(h.ListRuns))
	r.Get("/runs/{runId}", wrap(h.GetRun))

	return r
}
