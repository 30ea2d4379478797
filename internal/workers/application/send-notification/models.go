// internal/workers/application/send-notification/models.go
package sendnotification

type Input struct {
	ApplicationID    string                 `json:"applicationId"`
	NotificationType string                 `json:"notificationType"`
	Priority         string                 `json:"priority,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type Output struct {
	NotificationID string   `json:"notificationId"`
	Status         string   `json:"notificationStatus"` // "sent", "failed", "disabled"
	Channels       []string `json:"notificationChannels"`
	FailedChannels []string `json:"failedChannels,omitempty"`
	SentAt         string   `json:"sentAt"` // ISO 8601
}

// Notification types
const (
	TypeApplicationSubmitted = "application_submitted"
	TypeRevisionRequired     = "revision_required"
	TypePaymentPending       = "payment_pending"
	TypePaymentVerified      = "payment_verified"
	TypeAuditScheduled       = "audit_scheduled"
	TypeCertificateIssued    = "certificate_issued"
	TypeApplicationRejected  = "application_rejected"
)

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

// Channels
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

const (
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)
