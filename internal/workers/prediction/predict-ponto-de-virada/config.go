// internal/workers/prediction/predict-ponto-de-virada/config.go
package predictpontodevirada

import "time"

type Config struct {
	Timeout time.Duration
}

// LoadConfig falls back to 10s when timeout is not positive.
func LoadConfig(timeout time.Duration) *Config {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Config{Timeout: timeout}
}
