package config

import (
	"fmt"
	"time"
)

// JWTConfig holds configuration for bearer-token validation.
type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

// Expiration is the lifetime of tokens issued with this configuration.
func (c *JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("JWT_EXPIRATION_HOURS must be at least 1 hour, got: %d", c.ExpirationHours)
	}
	return nil
}

// JWT returns the token configuration for c, or nil when no secret is configured.
// JWT_EXPIRATION_HOURS (default: 24) is read from the environment.
func (c Config) JWT() (*JWTConfig, error) {
	if c.JWTSecret == "" {
		return nil, nil
	}
	cfg := &JWTConfig{
		Secret:          c.JWTSecret,
		ExpirationHours: getEnvInt("JWT_EXPIRATION_HOURS", 24),
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}
