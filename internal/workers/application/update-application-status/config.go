// internal/workers/application/update-application-status/config.go
package updateapplicationstatus

import "time"

type Config struct {
	Timeout time.Duration
	// Actor is written to the status history for workflow-driven changes.
	Actor string
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 10 * time.Second,
		Actor:   "workflow",
	}
}
