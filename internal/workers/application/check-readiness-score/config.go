// internal/workers/application/check-readiness-score/config.go
package checkreadinessscore

import "time"

type Config struct {
	Timeout time.Duration
	// ReadyScore is the minimum score for an application with no missing
	// required documents to be marked ready for review.
	ReadyScore int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:    10 * time.Second,
		ReadyScore: 80,
	}
}
