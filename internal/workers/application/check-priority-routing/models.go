// internal/workers/application/check-priority-routing/models.go
package checkpriorityrouting

// Input is read from the variables the submission started the process with,
// plus the readiness score produced earlier in the flow.
type Input struct {
	ApplicationID        string   `json:"applicationId"`
	PlantGroup           string   `json:"plantGroup"`
	CertificationPurpose string   `json:"certificationPurpose"`
	ServiceType          string   `json:"serviceType"`
	ApplicantType        string   `json:"applicantType"`
	ReadinessScore       int      `json:"readinessScore"`
	MissingDocuments     []string `json:"missingDocuments"`
	SiteTypeCount        int      `json:"siteTypeCount"`
}

type Output struct {
	RoutingPriority string `json:"routingPriority"`
	ReviewQueue     string `json:"reviewQueue"`
	MatchedRule     string `json:"matchedRule"`
}

// Priority levels
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Review queues
const (
	QueueControlledExport = "controlled-export"
	QueueControlled       = "controlled-plants"
	QueueExport           = "export"
	QueueRenewal          = "renewal"
	QueueGeneral          = "general"
)

// DefaultRuleName is reported when no rule matched.
const DefaultRuleName = "default"
