package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/akolanti/TenantRAG/internal/api"
)

const healthTimeout = 2 * time.Second

// HealthHandler pings every dependency and reports 503 when one is down.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		res = api.HealthResponse{Status: "ok", Dependencies: map[string]string{}}
	)
	for name, dep := range h.dependencies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := "ok"
			if err := dep.Ping(ctx); err != nil {
				h.logger.FromContext(ctx).Warn("Dependency unhealthy", "dependency", name, "error", err)
				state = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			res.Dependencies[name] = state
			if state != "ok" {
				res.Status = "degraded"
			}
		}()
	}
	wg.Wait()

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJsonResponse(w, status, res)
}
