package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"avatarpipe/internal/httpkit"
	"avatarpipe/internal/models"
	"avatarpipe/internal/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// PostRun validates the request, stores a QUEUED run and enqueues it.
func (h *Handler) PostRun(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req models.CreateRunRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "api.runs.create", "invalid json body")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	run := models.NewRun(req, h.now())
	if err := h.runs.Create(ctx, run); err != nil {
		return err
	}

	if err := h.queue.Push(ctx, run.ID); err != nil {
		if markErr := h.runs.MarkFailed(ctx, run.ID, err.Error(), nil); markErr != nil {
			h.log.FromContext(ctx).Warn("could not mark unqueued run failed",
				"run_id", run.ID,
				"error", markErr.Error(),
			)
		}
		return err
	}

	h.log.FromContext(ctx).Info("run queued", "run_id", run.ID, "mode", string(run.Mode))
	httpkit.WriteJSON(w, http.StatusCreated, map[string]any{"run": run})
	return nil
}

// ListRuns returns the newest runs, optionally filtered by ?status.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) error {
	status := models.Status(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))))
	if status != "" && !models.ValidStatus(status) {
		return errors.ValidationField("status", "status must be one of QUEUED, RUNNING, DONE, FAILED")
	}

	limit := defaultListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= maxListLimit {
			limit = v
		}
	}

	runs, err := h.runs.List(r.Context(), status, limit)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
	return nil
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) error {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "runId"))
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{"run": run})
	return nil
}
