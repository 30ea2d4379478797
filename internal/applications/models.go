// internal/applications/models.go
package applications

import (
	"encoding/json"
	"time"

	"gacp-certification/internal/wizard"
)

// Status is the back-office lifecycle state of a submitted application.
type Status string

const (
	StatusDraft                 Status = "DRAFT"
	StatusSubmitted             Status = "SUBMITTED"
	StatusUnderReview           Status = "UNDER_REVIEW"
	StatusRevisionRequired      Status = "REVISION_REQUIRED"
	StatusPaymentPending        Status = "PAYMENT_PENDING"
	StatusPaymentVerified       Status = "PAYMENT_VERIFIED"
	StatusInspectionScheduled   Status = "INSPECTION_SCHEDULED"
	StatusInspectionCompleted   Status = "INSPECTION_COMPLETED"
	StatusPhase2PaymentPending  Status = "PHASE2_PAYMENT_PENDING"
	StatusPhase2PaymentVerified Status = "PHASE2_PAYMENT_VERIFIED"
	StatusApproved              Status = "APPROVED"
	StatusCertificateIssued     Status = "CERTIFICATE_ISSUED"
	StatusRejected              Status = "REJECTED"
	StatusExpired               Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusDraft:                 {StatusSubmitted},
	StatusSubmitted:             {StatusUnderReview, StatusExpired},
	StatusUnderReview:           {StatusPaymentPending, StatusRevisionRequired, StatusRejected, StatusExpired},
	StatusRevisionRequired:      {StatusSubmitted, StatusRejected, StatusExpired},
	StatusPaymentPending:        {StatusPaymentVerified, StatusExpired},
	StatusPaymentVerified:       {StatusInspectionScheduled, StatusExpired},
	StatusInspectionScheduled:   {StatusInspectionCompleted, StatusRejected, StatusExpired},
	StatusInspectionCompleted:   {StatusPhase2PaymentPending, StatusRejected, StatusExpired},
	StatusPhase2PaymentPending:  {StatusPhase2PaymentVerified, StatusExpired},
	StatusPhase2PaymentVerified: {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:              {StatusCertificateIssued},
	StatusCertificateIssued:     {},
	StatusRejected:              {},
	StatusExpired:               {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// AllowedTransitions lists the successors of s.
func (s Status) AllowedTransitions() []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// PaymentPendingStatus and PaymentVerifiedStatus give the application status
// that brackets a payment of phase.
func PaymentPendingStatus(phase wizard.InvoicePhase) Status {
	if phase == wizard.PhaseOnsiteAudit {
		return StatusPhase2PaymentPending
	}
	return StatusPaymentPending
}

func PaymentVerifiedStatus(phase wizard.InvoicePhase) Status {
	if phase == wizard.PhaseOnsiteAudit {
		return StatusPhase2PaymentVerified
	}
	return StatusPaymentVerified
}

// Application is one submitted wizard snapshot plus its lifecycle columns.
type Application struct {
	ID                   string                      `json:"id"`
	ApplicationNo        string                      `json:"applicationNo"`
	SessionID            string                      `json:"sessionId"`
	PlantID              wizard.PlantID              `json:"plantId"`
	PlantGroup           wizard.PlantGroup           `json:"plantGroup"`
	CertificationPurpose wizard.CertificationPurpose `json:"certificationPurpose"`
	ServiceType          wizard.ServiceType          `json:"serviceType"`
	ApplicantName        string                      `json:"applicantName"`
	ApplicantEmail       string                      `json:"applicantEmail,omitempty"`
	ApplicantPhone       string                      `json:"applicantPhone,omitempty"`
	Province             string                      `json:"province,omitempty"`
	Status               Status                      `json:"status"`
	Snapshot             json.RawMessage             `json:"snapshot,omitempty"`
	ProcessInstanceKey   *int64                      `json:"processInstanceKey,omitempty"`
	SubmittedAt          time.Time                   `json:"submittedAt"`
	UpdatedAt            time.Time                   `json:"updatedAt"`
}

// State decodes the stored wizard snapshot.
func (a *Application) State() (*wizard.State, error) {
	st := &wizard.State{}
	if err := json.Unmarshal(a.Snapshot, st); err != nil {
		return nil, err
	}
	return st, nil
}

type StatusChange struct {
	ID            int64     `json:"id"`
	ApplicationID string    `json:"applicationId"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	Actor         string    `json:"actor,omitempty"`
	Note          string    `json:"note,omitempty"`
	ChangedAt     time.Time `json:"changedAt"`
}

type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (f ListFilter) page() (limit, offset int) {
	limit = f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = f.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// SubmissionResult is what the applicant sees after a successful submit.
type SubmissionResult struct {
	ApplicationID      string    `json:"applicationId"`
	ApplicationNo      string    `json:"applicationNo"`
	Status             Status    `json:"status"`
	ProcessInstanceKey int64     `json:"processInstanceKey,omitempty"`
	SubmittedAt        time.Time `json:"submittedAt"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentVerified PaymentStatus = "VERIFIED"
	PaymentRejected PaymentStatus = "REJECTED"
)

type Payment struct {
	ID            string              `json:"id"`
	ApplicationID string              `json:"applicationId"`
	Phase         wizard.InvoicePhase `json:"phase"`
	Amount        float64             `json:"amount"`
	Reference     string              `json:"reference,omitempty"`
	Status        PaymentStatus       `json:"status"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

type AuditMode string

const (
	AuditOnsite AuditMode = "ONSITE"
	AuditOnline AuditMode = "ONLINE"
)

type AuditResult string

const (
	AuditPending AuditResult = "PENDING"
	AuditPass    AuditResult = "PASS"
	AuditFail    AuditResult = "FAIL"
)

type Audit struct {
	ID            string      `json:"id"`
	ApplicationID string      `json:"applicationId"`
	Auditor       string      `json:"auditor"`
	Mode          AuditMode   `json:"mode"`
	ScheduledFor  time.Time   `json:"scheduledFor"`
	Result        AuditResult `json:"result"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationApproved VerificationStatus = "APPROVED"
	VerificationRejected VerificationStatus = "REJECTED"
)

type DocumentVerification struct {
	ID            string             `json:"id"`
	ApplicationID string             `json:"applicationId"`
	Slot          string             `json:"slot"`
	URL           string             `json:"url"`
	Status        VerificationStatus `json:"status"`
	Reviewer      string             `json:"reviewer,omitempty"`
	Comment       string             `json:"comment,omitempty"`
	ReviewedAt    *time.Time         `json:"reviewedAt,omitempty"`
}

// DashboardSummary feeds the staff landing page.
type DashboardSummary struct {
	ByStatus             map[Status]int `json:"byStatus"`
	Total                int            `json:"total"`
	PendingPayments      int            `json:"pendingPayments"`
	PendingVerifications int            `json:"pendingVerifications"`
	UpcomingAudits       int            `json:"upcomingAudits"`
}
