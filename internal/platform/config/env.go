package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads configuration from environment variables. A non-empty
// prefix is prepended to every env tag, so `env:"HTTP_ADDR"` with prefix
// "CALLSESSION_" reads CALLSESSION_HTTP_ADDR.
func ParseEnv(target any, prefix string) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: prefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
