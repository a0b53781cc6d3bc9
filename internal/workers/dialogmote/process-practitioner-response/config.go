// internal/workers/dialogmote/process-practitioner-response/config.go
package processpractitionerresponse

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
