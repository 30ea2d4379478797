// internal/workers/application/index-application/models.go
package indexapplication

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Indexed       bool   `json:"indexed"`
	Index         string `json:"searchIndex"`
	Status        string `json:"indexedStatus"`
	IndexedAt     string `json:"indexedAt"` // ISO 8601
}
