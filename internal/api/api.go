// Package api wires the platform's operations to HTTP. It maps error kinds
// to status codes and owns the x-api-key tenant resolution; everything else
// lives in the service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/miniagent/agent-platform/internal/metrics"
	"github.com/miniagent/agent-platform/internal/platform/errs"
	"github.com/miniagent/agent-platform/internal/service"
	"github.com/miniagent/agent-platform/internal/tenant"
)

type Handler struct {
	svc      *service.Service
	registry *tenant.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(svc *service.Service, registry *tenant.Registry, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{svc: svc, registry: registry, logger: logger, metrics: m}
}

// Router builds the full route table with logging, metrics and tenant auth.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.requestLog)
	router.Use(h.authenticate)

	router.HandleFunc("/health", healthHandler).Methods("GET")
	router.Handle("/metrics", h.metrics.Handler()).Methods("GET")

	router.HandleFunc("/tools", h.listTools).Methods("GET")
	router.HandleFunc("/tools", h.createTool).Methods("POST")
	router.HandleFunc("/tools/{id}", h.getTool).Methods("GET")
	router.HandleFunc("/tools/{id}", h.updateTool).Methods("PUT")
	router.HandleFunc("/tools/{id}", h.deleteTool).Methods("DELETE")

	router.HandleFunc("/agents", h.listAgents).Methods("GET")
	router.HandleFunc("/agents", h.createAgent).Methods("POST")
	router.HandleFunc("/agents/{id}", h.getAgent).Methods("GET")
	router.HandleFunc("/agents/{id}", h.updateAgent).Methods("PUT")
	router.HandleFunc("/agents/{id}", h.deleteAgent).Methods("DELETE")
	router.HandleFunc("/agents/{id}/run", h.runAgent).Methods("POST")

	router.HandleFunc("/executions", h.listExecutions).Methods("GET")

	return router
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindInvalidTenant:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	if kind == errs.KindUnknown {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, statusFor(kind), map[string]string{
		"error":  string(kind),
		"detail": errs.DetailOf(err),
	})
}
