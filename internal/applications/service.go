// internal/applications/service.go
package applications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gacp-certification/internal/common/errors"
	"gacp-certification/internal/common/logger"
	"gacp-certification/internal/common/validation"
	"gacp-certification/internal/wizard"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ProcessStarter starts the certification workflow for a new application.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// Service turns wizard snapshots into applications and serves the staff views.
type Service struct {
	repo      *Repository
	starter   ProcessStarter
	search    *Search
	validator *validation.Validator
	catalog   *wizard.DocumentCatalog
	processID string
	logger    logger.Logger
}

type ServiceOption func(*Service)

// WithSearch indexes new applications for staff search. Indexing failures are
// logged; the index-application worker re-indexes on status changes.
func WithSearch(s *Search) ServiceOption {
	return func(svc *Service) { svc.search = s }
}

func WithCatalog(c *wizard.DocumentCatalog) ServiceOption {
	return func(svc *Service) { svc.catalog = c }
}

// NewService wires the submission path. A nil starter skips the workflow start.
func NewService(repo *Repository, starter ProcessStarter, processID string, log logger.Logger, opts ...ServiceOption) (*Service, error) {
	v, err := validation.SubmissionValidator()
	if err != nil {
		return nil, fmt.Errorf("load submission schema: %w", err)
	}
	svc := &Service{
		repo:      repo,
		starter:   starter,
		validator: v,
		catalog:   wizard.DefaultCatalog(),
		processID: processID,
		logger:    log.WithFields(map[string]interface{}{"component": "applications"}),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) Repository() *Repository {
	return s.repo
}

func (s *Service) Search() *Search {
	return s.search
}

// Submit validates st, records it as a new application and starts the
// certification process in the same transaction. Nothing is persisted when
// any step fails.
func (s *Service) Submit(ctx context.Context, sessionID string, st *wizard.State) (*SubmissionResult, error) {
	if st == nil {
		return nil, errors.NewInvalidRequestError("empty wizard state")
	}
	for i := 0; i <= wizard.SubmitGate; i++ {
		if !wizard.CanProceed(st, i) {
			return nil, errors.NewStepLockedError(wizard.LastStep, wizard.FirstIncomplete(st))
		}
	}

	result, err := s.validator.Validate(st)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(st)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("encode snapshot: %w", err))
	}

	missing, err := s.catalog.MissingRequired(st)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	app := &Application{
		ID:                   uuid.New().String(),
		SessionID:            sessionID,
		PlantID:              st.PlantID,
		PlantGroup:           st.PlantID.Group(),
		CertificationPurpose: st.CertificationPurpose,
		ServiceType:          st.ServiceType,
		Status:               StatusSubmitted,
		Snapshot:             snapshot,
	}
	if app.ServiceType == "" {
		app.ServiceType = wizard.ServiceNew
	}
	applicantType := ""
	if a := st.ApplicantData; a != nil {
		applicantType = a.ApplicantType
		app.ApplicantName = a.DisplayName()
		app.ApplicantEmail = firstNonEmpty(a.Email, a.ContactEmail)
		app.ApplicantPhone = firstNonEmpty(a.Phone, a.ContactPhone)
	}
	if st.SiteData != nil {
		app.Province = st.SiteData.Province
	}

	started := time.Now()
	err = s.repo.Create(ctx, app, st.Documents, func(ctx context.Context, app *Application) (int64, error) {
		if s.starter == nil {
			return 0, nil
		}
		key, err := s.starter.StartProcess(ctx, s.processID, map[string]interface{}{
			"applicationId":        app.ID,
			"applicationNo":        app.ApplicationNo,
			"plantId":              string(app.PlantID),
			"plantGroup":           string(app.PlantGroup),
			"certificationPurpose": string(app.CertificationPurpose),
			"serviceType":          string(app.ServiceType),
			"applicantType":        applicantType,
			"applicantName":        app.ApplicantName,
			"applicantEmail":       app.ApplicantEmail,
			"applicantPhone":       app.ApplicantPhone,
			"uploadedDocuments":    st.UploadedDocuments(),
			"missingDocuments":     missing,
			"siteTypeCount":        len(st.SiteTypes),
		})
		if err != nil {
			return 0, errors.NewProcessStartFailedError(s.processID, err)
		}
		return key, nil
	})
	if err != nil {
		s.logger.Error("application submission failed", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err.Error(),
		})
		return nil, err
	}

	out := &SubmissionResult{
		ApplicationID: app.ID,
		ApplicationNo: app.ApplicationNo,
		Status:        app.Status,
		SubmittedAt:   app.SubmittedAt,
	}
	if app.ProcessInstanceKey != nil {
		out.ProcessInstanceKey = *app.ProcessInstanceKey
	}

	s.logger.Info("application submitted", map[string]interface{}{
		"sessionId":          sessionID,
		"applicationId":      app.ID,
		"applicationNo":      app.ApplicationNo,
		"processInstanceKey": out.ProcessInstanceKey,
		"missingDocuments":   len(missing),
		"duration":           time.Since(started).String(),
	})

	if s.search != nil {
		if err := s.search.Index(ctx, app); err != nil {
			s.logger.Warn("application not indexed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
	return out, nil
}

// Summary gathers the dashboard counters concurrently.
func (s *Service) Summary(ctx context.Context) (*DashboardSummary, error) {
	var sum DashboardSummary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		byStatus, err := s.repo.CountByStatus(ctx)
		if err != nil {
			return err
		}
		sum.ByStatus = byStatus
		for _, n := range byStatus {
			sum.Total += n
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.repo.CountPendingPayments(ctx)
		sum.PendingPayments = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountPendingVerifications(ctx)
		sum.PendingVerifications = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountUpcomingAudits(ctx)
		sum.UpcomingAudits = n
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &sum, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
