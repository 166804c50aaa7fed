package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/miniagent/agent-platform/internal/platform/errs"
	"github.com/miniagent/agent-platform/internal/tenant"
)

type contextKey string

const tenantContextKey contextKey = "tenant"

// openPaths are served without tenant authentication.
var openPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// authenticate resolves the x-api-key header against the tenant registry and
// injects the tenant into the request context. Unrecognized keys are
// rejected before any other processing.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if openPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		t, ok := h.registry.Lookup(r.Header.Get("x-api-key"))
		if !ok {
			h.writeError(w, r, errs.InvalidTenant("Invalid API key"))
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tenantFromContext(ctx context.Context) (tenant.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(tenant.Tenant)
	return t, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLog logs each request with a generated request id and feeds the
// request metrics.
func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		elapsed := time.Since(start)
		h.metrics.ObserveRequest(r.Method, route, strconv.Itoa(recorder.status), elapsed)
		h.logger.Info("request",
			"request_id", uuid.NewString(),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.status,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	})
}
