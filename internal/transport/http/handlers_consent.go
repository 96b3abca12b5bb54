package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"custodia/internal/audit"
	"custodia/internal/consent"
	"custodia/pkg/platform/sentinel"
)

// ConsentService defines the consent operations the transport exposes.
type ConsentService interface {
	SetConsent(ctx context.Context, req consent.SetRequest) (consent.Record, error)
	GetConsent(ctx context.Context, subjectID string) (consent.Record, error)
	ListConsents(ctx context.Context, activeOnly bool) ([]consent.Record, error)
}

// setConsentRequest is the wire form of a consent write. EmployeeID is the
// legacy name for SubjectID from earlier deployments; the mapping is applied
// here, once, and never reaches the core.
type setConsentRequest struct {
	SubjectID         string   `json:"subject_id"`
	EmployeeID        string   `json:"employee_id"`
	MonitoringEnabled bool     `json:"monitoring_enabled"`
	RetentionDays     int      `json:"retention_days"`
	DataCategories    []string `json:"data_categories"`
}

func (r setConsentRequest) subject() string {
	if r.SubjectID != "" {
		return r.SubjectID
	}
	return r.EmployeeID
}

// ConsentHandler exposes the consent store over HTTP.
type ConsentHandler struct {
	consents ConsentService
	auditor  consent.AuditRecorder
}

// NewConsentHandler creates the handler. The auditor records API-level access
// events, mirroring what the consent service records at the domain level.
func NewConsentHandler(consents ConsentService, auditor consent.AuditRecorder) *ConsentHandler {
	return &ConsentHandler{consents: consents, auditor: auditor}
}

// Register mounts the consent routes.
func (h *ConsentHandler) Register(r chi.Router) {
	r.Post("/compliance/consent", h.handleSetConsent)
	r.Get("/compliance/consent/{subjectID}", h.handleGetConsent)
	r.Get("/compliance/consent", h.handleListConsents)
}

func requesterID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return audit.SystemActor
}

func (h *ConsentHandler) apiEvent(r *http.Request, action, resource string, extra map[string]any) {
	details := map[string]any{
		"ip_address": r.RemoteAddr,
		"user_agent": r.UserAgent(),
	}
	for k, v := range extra {
		details[k] = v
	}
	if _, err := h.auditor.Record(r.Context(), requesterID(r), action, resource, details, audit.StatusSuccess); err != nil {
		log.WithFields(log.Fields{
			"action": action,
			"error":  err,
		}).Error("Failed to record API audit event")
	}
}

func (h *ConsentHandler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	var req setConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	subjectID := req.subject()
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "subject_id is required")
		return
	}

	record, err := h.consents.SetConsent(r.Context(), consent.SetRequest{
		SubjectID:         subjectID,
		MonitoringEnabled: req.MonitoringEnabled,
		RetentionDays:     req.RetentionDays,
		DataCategories:    req.DataCategories,
		RequesterID:       requesterID(r),
	})
	if err != nil {
		log.WithFields(log.Fields{
			"subject_id": subjectID,
			"error":      err,
		}).Error("Failed to set consent")
		writeError(w, http.StatusInternalServerError, "failed to set consent")
		return
	}

	h.apiEvent(r, "api_set_consent", "subject/"+subjectID+"/consent", map[string]any{
		"monitoring_enabled": req.MonitoringEnabled,
	})
	writeJSON(w, http.StatusOK, record)
}

func (h *ConsentHandler) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	subjectID := chi.URLParam(r, "subjectID")

	record, err := h.consents.GetConsent(r.Context(), subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no consent record found")
			return
		}
		log.WithFields(log.Fields{
			"subject_id": subjectID,
			"error":      err,
		}).Error("Failed to get consent")
		writeError(w, http.StatusInternalServerError, "failed to get consent")
		return
	}

	h.apiEvent(r, "api_get_consent", "subject/"+subjectID+"/consent", nil)
	writeJSON(w, http.StatusOK, record)
}

func (h *ConsentHandler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	activeOnly := true
	if raw := r.URL.Query().Get("active_only"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active_only value")
			return
		}
		activeOnly = parsed
	}

	records, err := h.consents.ListConsents(r.Context(), activeOnly)
	if err != nil {
		log.WithField("error", err).Error("Failed to list consents")
		writeError(w, http.StatusInternalServerError, "failed to list consents")
		return
	}
	if records == nil {
		records = []consent.Record{}
	}

	h.apiEvent(r, "api_list_consents", "subject/consent", map[string]any{
		"active_only": activeOnly,
		"count":       len(records),
	})
	writeJSON(w, http.StatusOK, records)
}
