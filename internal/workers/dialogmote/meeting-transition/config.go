// internal/workers/dialogmote/meeting-transition/config.go
package meetingtransition

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
