package transport

import (
	"strings"
	"time"
)

// Settings is the configuration block shared by every provider. Each
// provider reads it under its own prefix, e.g. OPENAI_KEY, OPENAI_PROXY.
type Settings struct {
	// Key is a single credential or a comma separated pool.
	Key string `env:"KEY"`
	// Proxy overrides the provider's base endpoint.
	Proxy string `env:"PROXY"`
	// Timeout bounds the wait for response headers, in seconds.
	Timeout int `env:"TIMEOUT" envDefault:"60"`
}

// BaseURL returns the proxy override or fallback, without a trailing slash.
func (s Settings) BaseURL(fallback string) string {
	base := s.Proxy
	if base == "" {
		base = fallback
	}
	return strings.TrimRight(base, "/")
}

// TimeoutDuration converts Timeout to a duration.
func (s Settings) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}
