// internal/api/wizard.go
package api

import (
	"bytes"
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/metrics"
	"gacp-certification/internal/masterdata"
	"gacp-certification/internal/preview"
	"gacp-certification/internal/session"
	"gacp-certification/internal/wizard"
)

// WizardHandler serves the applicant-facing wizard routes.
type WizardHandler struct {
	sessions   *session.Manager
	masterData *masterdata.Service
	previews   *preview.Renderer
	documents  DocumentStore
	catalog    *wizard.DocumentCatalog
	maxUpload  int64
	now        func() time.Time
	logger     logger.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewWizardHandler(d Deps, log logger.Logger) *WizardHandler {
	return &WizardHandler{
		sessions:   d.Sessions,
		masterData: d.MasterData,
		previews:   d.Previews,
		documents:  d.Documents,
		catalog:    d.Catalog,
		maxUpload:  d.MaxUploadBytes,
		now:        d.Now,
		logger:     log,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// sessionView is the state of a session as served to the client.
type sessionView struct {
	SessionID     string                    `json:"sessionId"`
	State         *wizard.State             `json:"state"`
	Steps         []wizard.StepStatus       `json:"steps"`
	Documents     []wizard.Requirement      `json:"documents"`
	Estimate      wizard.ProductionEstimate `json:"estimate"`
	LastSaveError string                    `json:"lastSaveError,omitempty"`
}

func (h *WizardHandler) view(sess *session.Session) (*sessionView, error) {
	st := sess.Store().Snapshot()
	reqs, err := h.catalog.Requirements(st)
	if err != nil {
		return nil, err
	}
	v := &sessionView{
		SessionID: sess.ID,
		State:     st,
		Steps:     wizard.Progress(st),
		Documents: reqs,
		Estimate:  wizard.EstimateForState(st),
	}
	if err := sess.LastSaveError(); err != nil {
		v.LastSaveError = err.Error()
	}
	return v, nil
}

func (h *WizardHandler) respondView(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	v, err := h.view(sess)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, status, v)
}

// session loads the session named in the path, writing the error response when it cannot.
func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return nil, false
	}
	return sess, true
}

// CreateSession handles POST /wizard/sessions
func (h *WizardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.respondView(w, r, http.StatusCreated, sess)
}

// GetSession handles GET /wizard/{session}
func (h *WizardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respondView(w, r, http.StatusOK, sess)
}

// PatchSession handles PATCH /wizard/{session}
func (h *WizardHandler) PatchSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var partial map[string]json.RawMessage
	if err := decodeJSON(r, &partial); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := sess.Store().Patch(partial); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, sess)
}

// PutGroup handles PUT /wizard/{session}/{group}
func (h *WizardHandler) PutGroup(w http.ResponseWriter, r *http.Request) {
	set, known := groups[r.PathValue("group")]
	if !known {
		writeError(w, h.logger, r, errors.NewResourceNotFoundError("wizard", "unknown field group "+strconv.Quote(r.PathValue("group"))))
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := set(sess.Store(), r); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.respondView(w, r, http.StatusOK, sess)
}

// AddPlot handles POST /wizard/{session}/plots
func (h *WizardHandler) AddPlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var plot wizard.Plot
	if err := decodeJSON(r, &plot); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if plot.FarmLayoutID != "" && plot.EstimatedPlant == 0 {
		count, err := h.plantCount(r, plot)
		if err != nil {
			writeError(w, h.logger, r, err)
			return
		}
		plot.EstimatedPlant = count.Count
	}
	stored, err := sess.Store().AddPlot(plot)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (h *WizardHandler) plantCount(r *http.Request, plot wizard.Plot) (wizard.PlantCount, error) {
	layout, err := h.masterData.Layout(r.Context(), plot.FarmLayoutID)
	if err != nil {
		return wizard.PlantCount{}, err
	}
	var style *wizard.GrowingStyle
	if plot.GrowingStyleID != "" {
		s, err := h.masterData.Style(r.Context(), plot.GrowingStyleID)
		if err != nil {
			return wizard.PlantCount{}, err
		}
		style = &s
	}
	area := wizard.ToSquareMeters(wizard.ParseArea(plot.AreaSize), plot.AreaUnit)
	return wizard.EstimatePlantCount(area, layout, style, plot.Tiers), nil
}

// RemovePlot handles DELETE /wizard/{session}/plots/{id}
func (h *WizardHandler) RemovePlot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if !sess.Store().RemovePlot(r.PathValue("id")) {
		writeError(w, h.logger, r, errors.NewResourceNotFoundError("wizard", "plot "+r.PathValue("id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLot handles POST /wizard/{session}/lots
func (h *WizardHandler) AddLot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var lot wizard.Lot
	if err := decodeJSON(r, &lot); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	stored, err := sess.Store().AddLot(lot)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// RemoveLot handles DELETE /wizard/{session}/lots/{id}
func (h *WizardHandler) RemoveLot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if !sess.Store().RemoveLot(r.PathValue("id")) {
		writeError(w, h.logger, r, errors.NewResourceNotFoundError("wizard", "lot "+r.PathValue("id")))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Steps handles GET /wizard/{session}/steps
func (h *WizardHandler) Steps(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	st := sess.Store().Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"currentStep":     st.CurrentStep,
		"firstIncomplete": wizard.FirstIncomplete(st),
		"steps":           wizard.Progress(st),
	})
}

// OpenStep handles GET /wizard/{session}/step/{n}. A link to a step that is
// not reachable yet lands on the first incomplete step instead. It only
// resolves the link; moving the wizard is left to next, back and PATCH.
func (h *WizardHandler) OpenStep(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, h.logger, r, errors.NewInvalidRequestError("step must be an integer"))
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	step, found := wizard.ResolveStep(sess.Store().Snapshot(), n)
	if !found {
		writeError(w, h.logger, r, errors.NewStepOutOfRangeError(n, wizard.StepCount))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requested":  n,
		"step":       step.Index,
		"id":         step.ID,
		"title":      step.Title,
		"path":       step.Path(),
		"redirected": step.Index != n,
	})
}

// Next handles POST /wizard/{session}/next
func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	step, err := sess.Store().Next()
	if err != nil {
		metrics.StepTransitions.WithLabelValues("next", "blocked").Inc()
		writeError(w, h.logger, r, err)
		return
	}
	metrics.StepTransitions.WithLabelValues("next", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]int{"currentStep": step})
}

// Back handles POST /wizard/{session}/back
func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	step := sess.Store().Back()
	metrics.StepTransitions.WithLabelValues("back", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]int{"currentStep": step})
}

// SaveDraft handles POST /wizard/{session}/draft
func (h *WizardHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	if err := h.sessions.SaveDraft(r.Context(), id); err != nil {
		if _, ok := errors.AsStandardError(err); !ok {
			err = errors.NewDraftStorageFailedError(err)
		}
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessionId": id,
		"savedAt":   h.now().UTC(),
	})
}

// Submit handles POST /wizard/{session}/submit
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	res, err := h.sessions.Submit(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Info("application submitted", map[string]interface{}{
		"sessionId":     r.PathValue("session"),
		"applicationNo": res.ApplicationNo,
	})
	writeJSON(w, http.StatusCreated, res)
}

// Reset handles POST /wizard/{session}/reset
func (h *WizardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	sess.Store().Reset()
	h.respondView(w, r, http.StatusOK, sess)
}

// AcceptQuotes handles POST /wizard/{session}/quote/accept. Quotes are issued
// on first acceptance; accepting again returns the recorded quotes.
func (h *WizardHandler) AcceptQuotes(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	st := sess.Store().Snapshot()
	if st.Milestone1 != nil && st.Milestone1.DTAMQuote.Accepted && st.Milestone1.PlatformQuote.Accepted {
		writeJSON(w, http.StatusOK, st.Milestone1)
		return
	}

	var m wizard.Milestone1
	if st.Milestone1 != nil {
		m = *st.Milestone1
	} else {
		h.rngMu.Lock()
		m = wizard.QuoteMilestone1(h.now(), h.rng)
		h.rngMu.Unlock()
	}
	m.DTAMQuote.Accepted = true
	m.PlatformQuote.Accepted = true
	if err := sess.Store().AcceptQuotes(m); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Store().Snapshot().Milestone1)
}

// Preview handles GET /wizard/{session}/preview/{kind}?phase=
func (h *WizardHandler) Preview(w http.ResponseWriter, r *http.Request) {
	phase, err := queryInt(r, "phase", 0)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	err = h.previews.Render(&buf, preview.Kind(r.PathValue("kind")), sess.Store().Snapshot(), preview.Options{
		Phase:    wizard.InvoicePhase(phase),
		IssuedAt: h.now(),
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
