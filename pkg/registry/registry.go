// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return &reg, reg.Validate()
}

// Find returns the activity bound to taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// TaskTypes lists the task types in registry order.
func (r *ActivityRegistry) TaskTypes() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.TaskType)
	}
	return out
}

// Validate rejects activities without an id or task type and duplicate task types.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]string, len(r.Activities))
	for i, a := range r.Activities {
		if a.ID == "" {
			return fmt.Errorf("activity %d: id is required", i)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s: taskType is required", a.ID)
		}
		if other, dup := seen[a.TaskType]; dup {
			return fmt.Errorf("activity %s: taskType %q already used by %s", a.ID, a.TaskType, other)
		}
		seen[a.TaskType] = a.ID
	}
	return nil
}

// Default is the activity set the certification process is modelled with.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-03-14",
		ProcessID:   "gacp-certification",
		Activities: []Activity{
			{
				ID:          "validate-application-data",
				DisplayName: "Validate Application Data",
				Description: "Re-validates the submitted snapshot and applicant contact details.",
				Category:    "intake",
				TaskType:    "validate-application-data",
				Inputs:      []string{"applicationId"},
				Outputs:     []string{"isValid", "firstIncompleteStep", "validationErrors"},
				ErrorCodes:  []string{"APPLICATION_NOT_FOUND", "APPLICATION_INVALID"},
				Retries:     3,
			},
			{
				ID:          "check-readiness-score",
				DisplayName: "Check Readiness Score",
				Description: "Scores document completeness, farm structure and security measures.",
				Category:    "intake",
				TaskType:    "check-readiness-score",
				Inputs:      []string{"applicationId"},
				Outputs:     []string{"readinessScore", "qualificationLevel", "ready", "missingDocuments"},
				ErrorCodes:  []string{"APPLICATION_NOT_FOUND", "APPLICATION_INVALID"},
				Retries:     3,
			},
			{
				ID:          "check-priority-routing",
				DisplayName: "Check Priority Routing",
				Description: "Assigns a review priority and staff queue from configurable rules.",
				Category:    "routing",
				TaskType:    "check-priority-routing",
				Inputs:      []string{"plantGroup", "certificationPurpose", "serviceType", "readinessScore", "missingDocuments"},
				Outputs:     []string{"routingPriority", "reviewQueue", "matchedRule"},
				Retries:     0,
			},
			{
				ID:          "update-application-status",
				DisplayName: "Update Application Status",
				Description: "Moves the application along its lifecycle and records the change.",
				Category:    "lifecycle",
				TaskType:    "update-application-status",
				Inputs:      []string{"applicationId", "targetStatus", "note"},
				Outputs:     []string{"applicationStatus", "previousStatus", "statusChanged"},
				ErrorCodes:  []string{"APPLICATION_NOT_FOUND", "APPLICATION_INVALID"},
				Retries:     3,
			},
			{
				ID:          "index-application",
				DisplayName: "Index Application",
				Description: "Refreshes the staff search document of the application.",
				Category:    "lifecycle",
				TaskType:    "index-application",
				Inputs:      []string{"applicationId"},
				Outputs:     []string{"indexed", "searchIndex"},
				ErrorCodes:  []string{"APPLICATION_NOT_FOUND"},
				Retries:     3,
			},
			{
				ID:          "send-notification",
				DisplayName: "Send Notification",
				Description: "Emails the applicant and, for high priority messages, sends an SMS.",
				Category:    "communication",
				TaskType:    "send-notification",
				Inputs:      []string{"applicationId", "notificationType", "priority", "metadata"},
				Outputs:     []string{"notificationId", "notificationStatus", "notificationChannels"},
				ErrorCodes:  []string{"APPLICATION_NOT_FOUND"},
				Retries:     3,
				Tags:        []string{"aws-ses", "aws-sns"},
			},
		},
	}
}
