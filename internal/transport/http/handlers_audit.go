package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"custodia/internal/audit"
	"custodia/internal/retention"
)

// AuditQuerier defines the audit log operations the transport exposes.
type AuditQuerier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

// RetentionRunner triggers an on-demand sweep.
type RetentionRunner interface {
	RunOnce(ctx context.Context) (retention.Summary, error)
}

type auditLogRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	// UserID is the legacy name for ActorID; mapped here, once.
	ActorID string `json:"actor_id"`
	UserID  string `json:"user_id"`
	Action  string `json:"action"`
	Limit   int    `json:"limit"`
}

func (r auditLogRequest) actor() string {
	if r.ActorID != "" {
		return r.ActorID
	}
	return r.UserID
}

// AuditHandler exposes audit queries and the on-demand retention sweep.
type AuditHandler struct {
	auditLog  AuditQuerier
	retention RetentionRunner
}

func NewAuditHandler(auditLog AuditQuerier, retention RetentionRunner) *AuditHandler {
	return &AuditHandler{auditLog: auditLog, retention: retention}
}

// Register mounts the audit routes.
func (h *AuditHandler) Register(r chi.Router) {
	r.Post("/compliance/audit-logs", h.handleQuery)
	r.Post("/compliance/apply-retention", h.handleApplyRetention)
}

func (h *AuditHandler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req auditLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	events, err := h.auditLog.Query(r.Context(), audit.Filter{
		From:    req.StartDate,
		To:      req.EndDate,
		ActorID: req.actor(),
		Action:  req.Action,
		Limit:   req.Limit,
	})
	if err != nil {
		log.WithField("error", err).Error("Failed to query audit logs")
		writeError(w, http.StatusInternalServerError, "failed to query audit logs")
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *AuditHandler) handleApplyRetention(w http.ResponseWriter, r *http.Request) {
	summary, err := h.retention.RunOnce(r.Context())
	if err != nil {
		// Partial sweeps still report their counts; the summary event carries
		// the error status.
		log.WithField("error", err).Error("On-demand retention sweep reported failures")
		writeError(w, http.StatusInternalServerError, "retention sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
