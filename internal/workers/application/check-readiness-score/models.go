// internal/workers/application/check-readiness-score/models.go
package checkreadinessscore

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID      string         `json:"applicationId"`
	ReadinessScore     int            `json:"readinessScore"`
	QualificationLevel string         `json:"qualificationLevel"`
	Ready              bool           `json:"ready"`
	MissingDocuments   []string       `json:"missingDocuments"`
	ScoreBreakdown     ScoreBreakdown `json:"scoreBreakdown"`
}

type ScoreBreakdown struct {
	Documents     int `json:"documents"`
	FarmStructure int `json:"farmStructure"`
	Security      int `json:"security"`
}

// Score weights; they add up to 100.
const (
	WeightDocuments     = 60
	WeightFarmStructure = 20
	WeightSecurity      = 20
)

// Qualification levels
const (
	LevelReady      = "ready"
	LevelPartial    = "partial"
	LevelIncomplete = "incomplete"
)
