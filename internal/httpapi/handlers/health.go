package handlers

import (
	"context"
	"net/http"
	"time"

	"avatarpipe/internal/httpkit"
)

const checkTimeout = 5 * time.Second

// Health reports liveness; with ?deep=true it also probes every dependency
// and reports "degraded" when any probe fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	health := map[string]any{
		"status":  "ok",
		"service": "avatarpipe-api",
	}

	if r.URL.Query().Get("deep") == "true" {
		checks := h.deepHealthCheck(ctx)
		health["checks"] = checks

		for _, check := range checks {
			if check["status"] != "ok" {
				health["status"] = "degraded"
				h.log.FromContext(ctx).Warn("health check degraded", "checks", checks)
				break
			}
		}
	}

	httpkit.WriteJSON(w, http.StatusOK, health)
}

func (h *Handler) deepHealthCheck(ctx context.Context) map[string]map[string]any {
	checks := make(map[string]map[string]any, len(h.checks)+1)
	for _, c := range h.checks {
		checks[c.Name] = probe(ctx, c.Ping)
	}
	if h.sp != nil {
		result := probe(ctx, h.sp.Check)
		result["provider"] = h.sp.Provider()
		checks["storage"] = result
	}
	return checks
}

func probe(ctx context.Context, ping func(context.Context) error) map[string]any {
	start := time.Now()
	result := map[string]any{"status": "ok"}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := ping(checkCtx); err != nil {
		result["status"] = "error"
		result["error"] = err.Error()
	}

	result["latency_ms"] = time.Since(start).Milliseconds()
	return result
}
