package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/clinic-booking-widget/pkg/logging"
)

const defaultReadyTimeout = 2 * time.Second

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	mu      sync.RWMutex
	checks  map[string]Check
	timeout time.Duration
	logger  *logging.Logger
}

// NewHealthHandler creates a handler with no readiness checks.
func NewHealthHandler(logger *logging.Logger) *HealthHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &HealthHandler{
		checks:  make(map[string]Check),
		timeout: defaultReadyTimeout,
		logger:  logger,
	}
}

// AddCheck registers a readiness dependency under name.
func (h *HealthHandler) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// Live handles GET /health. It never touches dependencies.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready by running every check concurrently.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names))
	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		healthy = true
	)
	for _, name := range names {
		h.mu.RLock()
		check := h.checks[name]
		h.mu.RUnlock()

		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			status := "ok"
			if err := check(ctx); err != nil {
				h.logger.Warn("readiness check failed", "check", name, "error", err)
				status = "unavailable"
			}
			resMu.Lock()
			defer resMu.Unlock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
		}(name, check)
	}
	wg.Wait()

	code, status := http.StatusOK, "ok"
	if !healthy {
		code, status = http.StatusServiceUnavailable, "unavailable"
	}
	writeJSON(w, code, map[string]any{"status": status, "checks": results})
}
