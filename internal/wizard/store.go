// internal/wizard/store.go
package wizard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gacp-certification/internal/common/errors"

	"github.com/google/uuid"
)

// Store serialises every mutation of one session's State. Setters are
// synchronous and last-write-wins. The change hook runs after the lock is
// released, so it may read the store.
type Store struct {
	mu       sync.Mutex
	state    *State
	onChange func()
	now      func() time.Time
}

type StoreOption func(*Store)

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithChangeHook registers fn to run after every successful mutation.
func WithChangeHook(fn func()) StoreOption {
	return func(s *Store) { s.onChange = fn }
}

// NewStore wraps initial, or a fresh state when initial is nil.
func NewStore(initial *State, opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if initial == nil {
		initial = NewState(s.now())
	} else {
		initial = initial.Clone()
	}
	s.state = initial
	return s
}

// SetChangeHook replaces the change hook.
func (s *Store) SetChangeHook(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// View runs fn against the live state under the lock. fn must not retain st.
func (s *Store) View(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// update applies fn under the lock. fn must leave st untouched when it
// returns an error.
func (s *Store) update(fn func(st *State) error) error {
	s.mu.Lock()
	if err := fn(s.state); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state.UpdatedAt = s.now().UTC()
	hook := s.onChange
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (s *Store) set(fn func(st *State)) {
	_ = s.update(func(st *State) error {
		fn(st)
		return nil
	})
}

// ==========================
// Generic patch
// ==========================

// Patch shallow-merges partial into the state: each top-level key replaces
// the field of the same JSON name. Collections go through the same rules as
// their setters, and currentStep may only move to a reachable step. A
// rejected patch leaves the state unchanged.
func (s *Store) Patch(partial map[string]json.RawMessage) error {
	return s.update(func(st *State) error {
		base, err := json.Marshal(st)
		if err != nil {
			return errors.NewInternalError(fmt.Errorf("encode state: %w", err))
		}
		merged := make(map[string]json.RawMessage)
		if err := json.Unmarshal(base, &merged); err != nil {
			return errors.NewInternalError(fmt.Errorf("decode state: %w", err))
		}
		for k, v := range partial {
			merged[k] = v
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return errors.NewInvalidRequestError(err.Error())
		}

		next := &State{}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(next); err != nil {
			return errors.NewValidationError("patch does not match the wizard state", map[string]string{"body": err.Error()})
		}
		if next.CurrentStep < 0 || next.CurrentStep >= StepCount {
			return errors.NewStepOutOfRangeError(next.CurrentStep, StepCount)
		}
		_, lotsSet := partial["lots"]
		if err := normalizeCollections(next, !lotsSet); err != nil {
			return err
		}
		if next.CurrentStep != st.CurrentStep && !Reachable(next, next.CurrentStep) {
			return errors.NewStepLockedError(next.CurrentStep, FirstIncomplete(next))
		}
		next.Submitting = st.Submitting
		next.CreatedAt = st.CreatedAt
		next.normalize()
		*st = *next
		return nil
	})
}

// replaceCollections swaps in collections built by fill on a shallow copy of
// the state and keeps the copy only when it passes normalizeCollections.
func (s *Store) replaceCollections(cascade bool, fill func(next *State)) error {
	return s.update(func(st *State) error {
		next := *st
		fill(&next)
		if err := normalizeCollections(&next, cascade); err != nil {
			return err
		}
		*st = next
		return nil
	})
}

// normalizeCollections enforces the collection rules on a whole state. Each
// document slot appears once, later entries winning. Plots and lots are keyed
// by unique ids, generated when missing. A lot must sit on an existing plot
// with a non-negative plant count; with cascade set, lots whose plot is gone
// are dropped instead of rejected. Fresh slices are built so the caller's
// state is untouched on error.
func normalizeCollections(st *State, cascade bool) error {
	docs := make([]DocumentUpload, 0, len(st.Documents))
	for _, d := range st.Documents {
		if d.ID == "" {
			return errors.NewValidationError("document slot is required", map[string]string{"documents.id": "required"})
		}
		docs = upsertDocument(docs, d)
	}
	st.Documents = docs

	plotNames := make(map[string]string, len(st.Plots))
	plots := make([]Plot, 0, len(st.Plots))
	for _, p := range st.Plots {
		if p.Name == "" {
			return errors.NewValidationError("plot name is required", map[string]string{"plots.name": "required"})
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, dup := plotNames[p.ID]; dup {
			return errors.NewValidationError("plot id already exists", map[string]string{"plots.id": p.ID})
		}
		plotNames[p.ID] = p.Name
		plots = append(plots, p)
	}
	st.Plots = plots

	lotIDs := make(map[string]bool, len(st.Lots))
	lots := make([]Lot, 0, len(st.Lots))
	for _, l := range st.Lots {
		name, ok := plotNames[l.PlotID]
		if !ok {
			if cascade {
				continue
			}
			return errors.NewValidationError("lot must reference an existing plot", map[string]string{"plotId": l.PlotID})
		}
		if l.PlantCount < 0 {
			return errors.NewValidationError("plant count must not be negative", map[string]string{"plantCount": "negative"})
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if lotIDs[l.ID] {
			return errors.NewValidationError("lot id already exists", map[string]string{"lots.id": l.ID})
		}
		lotIDs[l.ID] = true
		if l.PlotName == "" {
			l.PlotName = name
		}
		if l.Status == "" {
			l.Status = LotPlanned
		}
		if l.LotCode == "" {
			l.LotCode = fmt.Sprintf("LOT-%03d", len(lots)+1)
		}
		lots = append(lots, l)
	}
	st.Lots = lots
	return nil
}

// ==========================
// Group setters
// ==========================

func (s *Store) SetPlant(id PlantID) error {
	if !id.Valid() {
		return errors.NewValidationError("unknown plant", map[string]string{"plantId": string(id)})
	}
	s.set(func(st *State) { st.PlantID = id })
	return nil
}

func (s *Store) SetServiceType(t ServiceType) {
	s.set(func(st *State) { st.ServiceType = t })
}

func (s *Store) SetCertificationPurpose(p CertificationPurpose) {
	s.set(func(st *State) { st.CertificationPurpose = p })
}

func (s *Store) SetCultivationMethod(m CultivationMethod) {
	s.set(func(st *State) { st.CultivationMethod = m })
}

func (s *Store) SetSiteTypes(types []SiteType) {
	s.set(func(st *State) { st.SiteTypes = append([]SiteType{}, types...) })
}

func (s *Store) SetLocationType(t SiteType) {
	s.set(func(st *State) { st.LocationType = t })
}

func (s *Store) SetLicensePDFURL(url string) {
	s.set(func(st *State) { st.LicensePDFURL = url })
}

func (s *Store) SetYoutubeURL(url string) {
	s.set(func(st *State) { st.YoutubeURL = url })
}

func (s *Store) ConsentPDPA() {
	s.set(func(st *State) { st.ConsentedPDPA = true })
}

func (s *Store) AcknowledgeStandards() {
	s.set(func(st *State) { st.AcknowledgedStandards = true })
}

func (s *Store) SetApplicantData(d *ApplicantData) {
	s.set(func(st *State) { st.ApplicantData = d })
}

func (s *Store) SetGeneralInfo(d *GeneralInfo) {
	s.set(func(st *State) { st.GeneralInfo = d })
}

func (s *Store) SetSiteData(d *SiteData) {
	s.set(func(st *State) { st.SiteData = d })
}

func (s *Store) SetFarmData(d *FarmData) {
	s.set(func(st *State) { st.FarmData = d })
}

func (s *Store) SetProductionData(d *ProductionData) {
	s.set(func(st *State) { st.ProductionData = d })
}

func (s *Store) SetCultivationDetails(d *CultivationDetails) {
	s.set(func(st *State) { st.CultivationDetails = d })
}

func (s *Store) SetSecurityData(d *SecurityData) {
	s.set(func(st *State) { st.SecurityData = d })
}

func (s *Store) SetHarvestData(d *HarvestData) {
	s.set(func(st *State) { st.HarvestData = d })
}

func (s *Store) SetApplicationID(id string) {
	s.set(func(st *State) { st.ApplicationID = id })
}

// SetCurrentStep is GoTo under the setter name: only reachable steps are accepted.
func (s *Store) SetCurrentStep(i int) error {
	return s.GoTo(i)
}

// SetQRCount stores the requested QR count and its tiered cost.
func (s *Store) SetQRCount(count int) error {
	if count < 0 {
		return errors.NewValidationError("qr count must not be negative", map[string]string{"qrCount": "negative"})
	}
	s.set(func(st *State) {
		st.QRCount = count
		st.EstimatedQRCost = QRCost(count)
	})
	return nil
}

// ==========================
// Documents
// ==========================

// SetDocuments replaces the document list. Later entries win when two share a slot.
func (s *Store) SetDocuments(docs []DocumentUpload) error {
	return s.replaceCollections(false, func(next *State) {
		next.Documents = append([]DocumentUpload{}, docs...)
	})
}

// UpsertDocument records an upload for doc.ID, replacing any earlier entry of
// that slot in place.
func (s *Store) UpsertDocument(doc DocumentUpload) error {
	if doc.ID == "" {
		return errors.NewValidationError("document slot is required", map[string]string{"id": "required"})
	}
	s.set(func(st *State) {
		if doc.Uploaded && doc.UploadedAt == nil {
			t := s.now().UTC()
			doc.UploadedAt = &t
		}
		st.Documents = upsertDocument(st.Documents, doc)
	})
	return nil
}

func upsertDocument(docs []DocumentUpload, doc DocumentUpload) []DocumentUpload {
	for i := range docs {
		if docs[i].ID == doc.ID {
			docs[i] = doc
			return docs
		}
	}
	return append(docs, doc)
}

func (s *Store) RemoveDocument(slot string) {
	s.set(func(st *State) {
		kept := st.Documents[:0]
		for _, d := range st.Documents {
			if d.ID != slot {
				kept = append(kept, d)
			}
		}
		st.Documents = kept
	})
}

// ==========================
// Plots and lots
// ==========================

// SetPlots replaces the plot list. Lots planted on a plot that is no longer
// listed are removed with it.
func (s *Store) SetPlots(plots []Plot) error {
	return s.replaceCollections(true, func(next *State) {
		next.Plots = append([]Plot{}, plots...)
	})
}

// AddPlot appends p, assigning a UUID when it has none, and returns the stored plot.
func (s *Store) AddPlot(p Plot) (Plot, error) {
	if p.Name == "" {
		return Plot{}, errors.NewValidationError("plot name is required", map[string]string{"name": "required"})
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := s.update(func(st *State) error {
		for _, existing := range st.Plots {
			if existing.ID == p.ID {
				return errors.NewValidationError("plot id already exists", map[string]string{"id": p.ID})
			}
		}
		st.Plots = append(st.Plots, p)
		return nil
	})
	return p, err
}

// RemovePlot drops the plot and every lot planted on it.
func (s *Store) RemovePlot(plotID string) bool {
	removed := false
	s.set(func(st *State) {
		plots := st.Plots[:0]
		for _, p := range st.Plots {
			if p.ID == plotID {
				removed = true
				continue
			}
			plots = append(plots, p)
		}
		st.Plots = plots

		lots := st.Lots[:0]
		for _, l := range st.Lots {
			if l.PlotID != plotID {
				lots = append(lots, l)
			}
		}
		st.Lots = lots
	})
	return removed
}

func (s *Store) SetLots(lots []Lot) error {
	return s.replaceCollections(false, func(next *State) {
		next.Lots = append([]Lot{}, lots...)
	})
}

// AddLot appends l to an existing plot. The lot code defaults to LOT-<n>.
func (s *Store) AddLot(l Lot) (Lot, error) {
	if l.PlantCount < 0 {
		return Lot{}, errors.NewValidationError("plant count must not be negative", map[string]string{"plantCount": "negative"})
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = LotPlanned
	}
	err := s.update(func(st *State) error {
		var plot *Plot
		for i := range st.Plots {
			if st.Plots[i].ID == l.PlotID {
				plot = &st.Plots[i]
				break
			}
		}
		if plot == nil {
			return errors.NewValidationError("lot must reference an existing plot", map[string]string{"plotId": l.PlotID})
		}
		if l.PlotName == "" {
			l.PlotName = plot.Name
		}
		if l.LotCode == "" {
			l.LotCode = fmt.Sprintf("LOT-%03d", len(st.Lots)+1)
		}
		st.Lots = append(st.Lots, l)
		return nil
	})
	return l, err
}

func (s *Store) RemoveLot(lotID string) bool {
	removed := false
	s.set(func(st *State) {
		lots := st.Lots[:0]
		for _, l := range st.Lots {
			if l.ID == lotID {
				removed = true
				continue
			}
			lots = append(lots, l)
		}
		st.Lots = lots
	})
	return removed
}

// ==========================
// Quotes
// ==========================

// AcceptQuotes records both first-milestone quotes as accepted. Both must be
// accepted together.
func (s *Store) AcceptQuotes(m Milestone1) error {
	if !m.DTAMQuote.Accepted || !m.PlatformQuote.Accepted {
		return errors.NewValidationError("both quotes must be accepted", map[string]string{
			"dtamQuote":     fmt.Sprint(m.DTAMQuote.Accepted),
			"platformQuote": fmt.Sprint(m.PlatformQuote.Accepted),
		})
	}
	s.set(func(st *State) {
		at := s.now().UTC()
		if m.DTAMQuote.AcceptedAt == nil {
			m.DTAMQuote.AcceptedAt = &at
		}
		if m.PlatformQuote.AcceptedAt == nil {
			m.PlatformQuote.AcceptedAt = &at
		}
		st.Milestone1 = &m
	})
	return nil
}

// ==========================
// Navigation
// ==========================

// Next advances one step when the current step is complete and returns the new index.
func (s *Store) Next() (int, error) {
	var step int
	err := s.update(func(st *State) error {
		if st.CurrentStep >= LastStep {
			return errors.NewStepOutOfRangeError(st.CurrentStep+1, StepCount)
		}
		if !CanProceed(st, st.CurrentStep) {
			return errors.NewStepLockedError(st.CurrentStep+1, FirstIncomplete(st))
		}
		st.CurrentStep++
		step = st.CurrentStep
		return nil
	})
	return step, err
}

// Back moves one step back, never below 0.
func (s *Store) Back() int {
	var step int
	s.set(func(st *State) {
		if st.CurrentStep > 0 {
			st.CurrentStep--
		}
		step = st.CurrentStep
	})
	return step
}

// GoTo jumps to a reachable step.
func (s *Store) GoTo(i int) error {
	return s.update(func(st *State) error {
		if i < 0 || i >= StepCount {
			return errors.NewStepOutOfRangeError(i, StepCount)
		}
		if !Reachable(st, i) {
			return errors.NewStepLockedError(i, FirstIncomplete(st))
		}
		st.CurrentStep = i
		return nil
	})
}

// ==========================
// Submission lifecycle
// ==========================

// BeginSubmit sets the transient submitting flag. It fails when a submission
// is already in flight.
func (s *Store) BeginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Submitting {
		return false
	}
	s.state.Submitting = true
	return true
}

// EndSubmit clears the submitting flag without touching anything else.
func (s *Store) EndSubmit() {
	s.mu.Lock()
	s.state.Submitting = false
	s.mu.Unlock()
}

// Reset restores the initial empty state.
func (s *Store) Reset() {
	s.set(func(st *State) {
		*st = *NewState(s.now())
	})
}
