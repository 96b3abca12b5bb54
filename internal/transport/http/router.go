package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter assembles the service routes. Authentication is intentionally
// absent: this surface is a thin host for the compliance core and sits behind
// whatever gateway the deployment provides.
func NewRouter(consents *ConsentHandler, auditLogs *AuditHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(30 * time.Second))

	consents.Register(r)
	auditLogs.Register(r)

	r.Get("/compliance/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
