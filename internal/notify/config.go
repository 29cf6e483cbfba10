package notify

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProviderMailtrap = "mailtrap"
	ProviderLog      = "log"
)

type Config struct {
	Provider     string        `env:"EMAIL_PROVIDER" envDefault:"log"`
	MailtrapURL  string        `env:"MAILTRAP_API_URL" envDefault:"https://send.api.mailtrap.io/api/send"`
	MailtrapKey  string        `env:"MAILTRAP_API_KEY"`
	From         string        `env:"EMAIL_FROM" envDefault:"no-reply@localhost"`
	FromName     string        `env:"EMAIL_FROM_NAME" envDefault:"Notes"`
	MaxRetries   uint64        `env:"EMAIL_MAX_RETRIES" envDefault:"3"`
	RetryBackoff time.Duration `env:"EMAIL_RETRY_BACKOFF" envDefault:"2s"`
}

// ConfigFromEnv reads email delivery settings from env vars.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse email env: %w", err)
	}
	return cfg, nil
}
