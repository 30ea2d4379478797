// internal/workers/application/validate-application-data/config.go
package validateapplicationdata

import "time"

type Config struct {
	Timeout time.Duration
	// RequireContact rejects applications with neither email nor phone.
	RequireContact bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        10 * time.Second,
		RequireContact: true,
	}
}
