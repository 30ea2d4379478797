// internal/api/staff.go
package api

import (
	stderrors "errors"
	"net/http"
	"strings"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/wizard"
)

var errSearchDisabled = stderrors.New("application search is not configured")

// StaffHandler serves the back-office pages and the farmer payment confirmation.
type StaffHandler struct {
	apps   *applications.Service
	logger logger.Logger
}

func NewStaffHandler(apps *applications.Service, log logger.Logger) *StaffHandler {
	return &StaffHandler{apps: apps, logger: log}
}

// Dashboard handles GET /staff/dashboard
func (h *StaffHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.apps.Summary(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func statusParam(r *http.Request) (applications.Status, error) {
	raw := strings.ToUpper(r.URL.Query().Get("status"))
	if raw == "" {
		return "", nil
	}
	s := applications.Status(raw)
	if !s.Valid() {
		return "", errors.NewValidationError("unknown application status", map[string]string{"status": raw})
	}
	return s, nil
}

// ListApplications handles GET /staff/applications?status=&limit=&offset=
func (h *StaffHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	status, err := statusParam(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	apps, err := h.apps.Repository().List(r.Context(), applications.ListFilter{Status: status, Limit: limit, Offset: offset})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"applications": apps, "count": len(apps)})
}

// SearchApplications handles GET /staff/applications/search?q=
func (h *StaffHandler) SearchApplications(w http.ResponseWriter, r *http.Request) {
	search := h.apps.Search()
	if search == nil {
		writeError(w, h.logger, r, errors.NewExternalServiceError("elasticsearch", errSearchDisabled))
		return
	}
	status, err := statusParam(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	res, err := search.Query(r.Context(), r.URL.Query().Get("q"), status, limit, offset)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetApplication handles GET /staff/applications/{id}
func (h *StaffHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	app, err := h.apps.Repository().Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	history, err := h.apps.Repository().History(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"application": app,
		"history":     history,
		"allowedNext": app.Status.AllowedTransitions(),
	})
}

// UpdateStatus handles POST /staff/applications/{id}/status
func (h *StaffHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status applications.Status `json:"status"`
		Note   string              `json:"note,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if !req.Status.Valid() {
		writeError(w, h.logger, r, errors.NewValidationError("unknown application status", map[string]string{"status": string(req.Status)}))
		return
	}
	change, err := h.apps.Repository().UpdateStatus(r.Context(), r.PathValue("id"), req.Status, actor(r.Context()), req.Note)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Info("application status changed", map[string]interface{}{
		"applicationId": change.ApplicationID,
		"from":          change.From,
		"to":            change.To,
		"actor":         change.Actor,
	})
	writeJSON(w, http.StatusOK, change)
}

// ListAudits handles GET /staff/audits?result=
func (h *StaffHandler) ListAudits(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	result := applications.AuditResult(strings.ToUpper(r.URL.Query().Get("result")))
	audits, err := h.apps.Repository().ListAudits(r.Context(), result, limit, offset)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"audits": audits, "count": len(audits)})
}

// ScheduleAudit handles POST /staff/audits
func (h *StaffHandler) ScheduleAudit(w http.ResponseWriter, r *http.Request) {
	var req applications.ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	audit, err := h.apps.Repository().ScheduleAudit(r.Context(), req, actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, audit)
}

// RecordAuditResult handles POST /staff/audits/{id}/result
func (h *StaffHandler) RecordAuditResult(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Result applications.AuditResult `json:"result"`
		Notes  string                   `json:"notes,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	audit, err := h.apps.Repository().RecordAuditResult(r.Context(), r.PathValue("id"), req.Result, req.Notes, actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

// ListPayments handles GET /staff/accounting/payments?status=
func (h *StaffHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	status := applications.PaymentStatus(strings.ToUpper(r.URL.Query().Get("status")))
	payments, err := h.apps.Repository().ListPayments(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"payments": payments, "count": len(payments)})
}

// ReviewPayment handles POST /staff/accounting/payments/{id}/review
func (h *StaffHandler) ReviewPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool `json:"approve"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	payment, err := h.apps.Repository().ReviewPayment(r.Context(), r.PathValue("id"), req.Approve, actor(r.Context()))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// RecordPayment handles POST /applications/{id}/payment, the farmer's
// confirmation that a milestone invoice was paid.
func (h *StaffHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase     wizard.InvoicePhase `json:"phase"`
		Amount    float64             `json:"amount"`
		Reference string              `json:"reference,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	payment, err := h.apps.Repository().RecordPayment(r.Context(), r.PathValue("id"), req.Phase, req.Amount, req.Reference)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

// ListVerifications handles GET /staff/verifications?applicationId=&status=
func (h *StaffHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	q := r.URL.Query()
	status := applications.VerificationStatus(strings.ToUpper(q.Get("status")))
	docs, err := h.apps.Repository().ListVerifications(r.Context(), q.Get("applicationId"), status, limit, offset)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"verifications": docs, "count": len(docs)})
}

// ReviewDocument handles POST /staff/verifications/{id}/review
func (h *StaffHandler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve bool   `json:"approve"`
		Comment string `json:"comment,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	doc, err := h.apps.Repository().ReviewDocument(r.Context(), r.PathValue("id"), req.Approve, actor(r.Context()), req.Comment)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
