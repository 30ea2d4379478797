// internal/workers/application/update-application-status/models.go
package updateapplicationstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	TargetStatus  string `json:"targetStatus"`
	Note          string `json:"note,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ApplicationStatus string `json:"applicationStatus"`
	PreviousStatus    string `json:"previousStatus"`
	Changed           bool   `json:"statusChanged"`
	UpdatedAt         string `json:"updatedAt"` // ISO 8601
}
