package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`

	VideoRoomBaseURL string `env:"VIDEO_ROOM_BASE_URL" envDefault:"https://meet.mediline.health"`
	PushGatewayURL   string `env:"PUSH_GATEWAY_URL" envDefault:""`

	MaxRedials                int `env:"MAX_REDIALS" envDefault:"2"`
	RedialDelaySeconds        int `env:"REDIAL_DELAY_SECONDS" envDefault:"30"`
	ShortCallThresholdSeconds int `env:"SHORT_CALL_THRESHOLD_SECONDS" envDefault:"30"`
	SessionRetentionSeconds   int `env:"SESSION_RETENTION_SECONDS" envDefault:"86400"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) RedialDelay() time.Duration {
	return time.Duration(c.RedialDelaySeconds) * time.Second
}

func (c *Config) ShortCallThreshold() time.Duration {
	return time.Duration(c.ShortCallThresholdSeconds) * time.Second
}

func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.MaxRedials < 0 {
		return fmt.Errorf("MAX_REDIALS must not be negative")
	}
	if c.RedialDelaySeconds <= 0 {
		return fmt.Errorf("REDIAL_DELAY_SECONDS must be positive")
	}
	if c.ShortCallThresholdSeconds <= 0 {
		return fmt.Errorf("SHORT_CALL_THRESHOLD_SECONDS must be positive")
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.PushGatewayURL == "" {
			log.Warn().Msg("PUSH_GATEWAY_URL is empty in production: offline participants will not receive call invitations")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
