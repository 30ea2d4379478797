// internal/workers/application/send-notification/config.go
package sendnotification

import "time"

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	// SMSPriorities lists the priorities that also go out by SMS.
	SMSPriorities []string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		EmailEnabled:  true,
		SMSEnabled:    true,
		SMSPriorities: []string{PriorityHigh},
		Timeout:       30 * time.Second,
	}
}
