package http

import (
	"net/http"

	"github.com/salonflow/salonflow-sessions/internal/api/respond"
	"github.com/salonflow/salonflow-sessions/internal/health"
	"github.com/salonflow/salonflow-sessions/internal/session"
)

// HealthHandler serves the liveness, readiness and deep health endpoints.
type HealthHandler struct {
	store   *session.Store
	service *health.Service
}

// NewHealthHandler wires the health endpoints. service may be nil when no
// background checkers run (tests, CLI embedding).
func NewHealthHandler(store *session.Store, service *health.Service) *HealthHandler {
	return &HealthHandler{store: store, service: service}
}

// Live handles GET /v1/health/live. It answers 200 as long as the
// process is serving requests.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /v1/health/ready based on background dependency probes.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ready, detail := h.service.Ready()
	status := http.StatusOK
	state := "ok"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	respond.WriteJSON(w, status, map[string]interface{}{"status": state, "dependencies": detail})
}

// Deep handles GET /v1/health. It runs a live write/read/delete probe
// against the store and reports per-check latency.
func (h *HealthHandler) Deep(w http.ResponseWriter, r *http.Request) {
	report := h.store.HealthCheck(r.Context())
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respond.WriteJSON(w, status, report)
}
