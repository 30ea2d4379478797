// internal/session/manager.go
package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"gacp-certification/internal/applications"
	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/metrics"
	"gacp-certification/internal/common/observability"
	"gacp-certification/internal/draft"
	"gacp-certification/internal/wizard"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DraftStore persists wizard snapshots between requests.
type DraftStore interface {
	Save(ctx context.Context, sessionID string, st *wizard.State) error
	Load(ctx context.Context, sessionID string) (*wizard.State, error)
}

// Submitter hands a finished wizard to the back office.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, st *wizard.State) (*applications.SubmissionResult, error)
}

type Config struct {
	Debounce    time.Duration
	IdleTTL     time.Duration
	SaveTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = 5 * time.Second
	}
	return c
}

// Session is one applicant's live wizard. All edits go through Store; every
// change schedules a debounced draft save.
type Session struct {
	ID    string
	store *wizard.Store
	saver *wizard.Debouncer

	lastUsed time.Time // guarded by Manager.mu

	errMu   sync.Mutex
	saveErr error
}

func (s *Session) Store() *wizard.Store {
	return s.store
}

// LastSaveError is the result of the most recent draft write.
func (s *Session) LastSaveError() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.saveErr
}

func (s *Session) setSaveError(err error) {
	s.errMu.Lock()
	s.saveErr = err
	s.errMu.Unlock()
}

// Manager maps session ids to live sessions, hydrating them from the draft
// store on first access and evicting them once idle.
type Manager struct {
	drafts    DraftStore
	submitter Submitter
	cfg       Config
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithObservability(obs *observability.Observability) Option {
	return func(m *Manager) { m.obs = obs }
}

func NewManager(drafts DraftStore, submitter Submitter, cfg Config, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		drafts:    drafts,
		submitter: submitter,
		cfg:       cfg.withDefaults(),
		logger:    log.WithFields(map[string]interface{}{"component": "session-manager"}),
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) newSession(id string, st *wizard.State) *Session {
	sess := &Session{ID: id}
	sess.store = wizard.NewStore(st, wizard.WithClock(m.now))
	sess.saver = wizard.NewDebouncer(m.cfg.Debounce, func() { m.save(sess) })
	sess.store.SetChangeHook(sess.saver.Trigger)
	return sess
}

// register adds sess unless another goroutine got there first, in which case
// the existing session wins.
func (m *Manager) register(sess *Session) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		sess.saver.Stop()
		return nil, errors.NewSessionNotFoundError(sess.ID).WithMetadata("reason", "manager closed")
	}
	if existing, ok := m.sessions[sess.ID]; ok {
		existing.lastUsed = m.now()
		sess.saver.Stop()
		return existing, nil
	}
	sess.lastUsed = m.now()
	m.sessions[sess.ID] = sess
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	return sess, nil
}

// Create starts a fresh wizard and writes its empty draft right away so the
// session id survives a restart.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	sess := m.newSession(uuid.New().String(), wizard.NewState(m.now()))
	sess, err := m.register(sess)
	if err != nil {
		return nil, err
	}
	m.saveWith(ctx, sess)
	m.logger.Info("wizard session created", map[string]interface{}{"sessionId": sess.ID})
	return sess, nil
}

// Get returns the live session, loading its draft when it is not in memory.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.NewSessionNotFoundError(id).WithMetadata("reason", "manager closed")
	}
	if sess, ok := m.sessions[id]; ok {
		sess.lastUsed = m.now()
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	st, err := m.drafts.Load(ctx, id)
	if stderrors.Is(err, draft.ErrNotFound) {
		return nil, errors.NewSessionNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}
	m.logger.Debug("wizard session hydrated", map[string]interface{}{
		"sessionId":   id,
		"currentStep": st.CurrentStep,
	})
	return m.register(m.newSession(id, st))
}

func (m *Manager) save(sess *Session) {
	ctx := context.Background()
	m.saveWith(ctx, sess)
}

func (m *Manager) saveWith(ctx context.Context, sess *Session) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SaveTimeout)
	defer cancel()

	err := m.drafts.Save(ctx, sess.ID, sess.store.Snapshot())
	sess.setSaveError(err)

	outcome := "success"
	if err != nil {
		outcome = "error"
		m.logger.Warn("draft save failed", map[string]interface{}{
			"sessionId": sess.ID,
			"error":     err.Error(),
		})
	}
	metrics.DraftSaves.WithLabelValues(outcome).Inc()
	m.obs.RecordDraftSave(ctx, outcome)
}

// SaveDraft writes the current state now and reports the outcome, unlike the
// background saves which only log failures.
func (m *Manager) SaveDraft(ctx context.Context, id string) error {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sess.saver.Flush() {
		m.saveWith(ctx, sess)
	}
	return sess.LastSaveError()
}

// Submit hands the session's snapshot to the submitter. Success resets the
// wizard; failure leaves the state as it was so the applicant can retry.
func (m *Manager) Submit(ctx context.Context, id string) (*applications.SubmissionResult, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.store.BeginSubmit() {
		return nil, errors.NewBusinessRuleError("Submission already in progress", "sessionId: "+id)
	}
	defer sess.store.EndSubmit()

	ctx, span := m.obs.StartSpan(ctx, "wizard.submit", attribute.String("session.id", id))
	defer span.End()

	started := time.Now()
	res, err := m.submitter.Submit(ctx, id, sess.store.Snapshot())
	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	metrics.Submissions.WithLabelValues(outcome).Inc()
	m.obs.RecordSubmission(ctx, time.Since(started), outcome)

	if err != nil {
		m.logger.Warn("wizard submission failed", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		return nil, err
	}

	span.SetAttributes(attribute.String("application.no", res.ApplicationNo))
	sess.store.Reset()
	sess.saver.Flush()
	return res, nil
}

// EvictIdle drops sessions unused for longer than the idle TTL after writing
// their pending drafts. It returns how many were evicted.
func (m *Manager) EvictIdle() int {
	cutoff := m.now().Add(-m.cfg.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, sess := range m.sessions {
		if sess.lastUsed.Before(cutoff) {
			idle = append(idle, sess)
			delete(m.sessions, id)
		}
	}
	metrics.WizardSessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, sess := range idle {
		sess.saver.Flush()
		sess.saver.Stop()
	}
	if len(idle) > 0 {
		m.logger.Debug("evicted idle wizard sessions", map[string]interface{}{"count": len(idle)})
	}
	return len(idle)
}

// Run evicts idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// Len is the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close flushes every pending draft and stops all timers. Later calls to Get
// and Create fail.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	metrics.WizardSessionsActive.Set(0)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.saver.Flush()
		sess.saver.Stop()
	}
}
