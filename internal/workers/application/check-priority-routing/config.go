// internal/workers/application/check-priority-routing/config.go
package checkpriorityrouting

import "time"

// Rule routes applications whose variables satisfy When, an expr-lang
// boolean expression. Rules are tried in order; the first match wins.
type Rule struct {
	Name     string
	When     string
	Priority string
	Queue    string
}

type Config struct {
	Timeout time.Duration
	Rules   []Rule
}

var DefaultRules = []Rule{
	{Name: "controlled-export", When: `plantGroup == "HIGH_CONTROL" && purpose == "EXPORT"`, Priority: PriorityHigh, Queue: QueueControlledExport},
	{Name: "controlled", When: `plantGroup == "HIGH_CONTROL"`, Priority: PriorityHigh, Queue: QueueControlled},
	{Name: "export", When: `purpose == "EXPORT"`, Priority: PriorityMedium, Queue: QueueExport},
	{Name: "not-ready", When: `readinessScore < 50 || missingDocuments > 3`, Priority: PriorityLow, Queue: QueueGeneral},
	{Name: "renewal", When: `serviceType in ["RENEWAL", "REPLACEMENT"]`, Priority: PriorityMedium, Queue: QueueRenewal},
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 5 * time.Second,
		Rules:   DefaultRules,
	}
}
