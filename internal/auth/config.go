package auth

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	AppEnv             string `env:"APP_ENV" envDefault:"production"`
	ClientURL          string `env:"CLIENT_URL" envDefault:"http://localhost:5173"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL" envDefault:"http://localhost:8000/api/auth/google/callback"`
}

// ConfigFromEnv reads auth settings from env vars.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse auth env: %w", err)
	}
	// CLIENT_URL may list several CORS origins; redirects go to the first
	first, _, _ := strings.Cut(cfg.ClientURL, ",")
	cfg.ClientURL = strings.TrimRight(strings.TrimSpace(first), "/")
	return cfg, nil
}

// Development reports whether error detail may be returned to clients.
func (c Config) Development() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// GoogleEnabled reports whether Google login credentials are configured.
func (c Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
