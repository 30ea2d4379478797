// internal/api/health.go
package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"gacp-certification/internal/common/logger"

	"golang.org/x/sync/errgroup"
)

type HealthHandler struct {
	checks  map[string]ReadinessCheck
	timeout time.Duration
	logger  logger.Logger
}

func NewHealthHandler(checks map[string]ReadinessCheck, timeout time.Duration, log logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: timeout, logger: log}
}

// Health handles GET /health. It only reports that the process is serving.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Failed []string          `json:"failed,omitempty"`
}

// Ready handles GET /ready. Every check runs concurrently under one deadline;
// any failure answers 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu  sync.Mutex
		out = readiness{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	)
	g := new(errgroup.Group)
	for name, check := range h.checks {
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Checks[name] = err.Error()
				out.Failed = append(out.Failed, name)
				return nil
			}
			out.Checks[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if len(out.Failed) > 0 {
		sort.Strings(out.Failed)
		out.Status = "unavailable"
		status = http.StatusServiceUnavailable
		h.logger.Warn("readiness check failed", map[string]interface{}{"failed": out.Failed})
	}
	writeJSON(w, status, out)
}
