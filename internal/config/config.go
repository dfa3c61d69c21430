package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Application backend
	APIBaseURL  string        `envconfig:"PULLQUEST_API_URL" default:"http://localhost:8012"`
	HTTPTimeout time.Duration `envconfig:"PULLQUEST_HTTP_TIMEOUT" default:"30s"`
	PerPage     int           `envconfig:"PULLQUEST_PER_PAGE" default:"30"`

	// GitHub (empty uses api.github.com)
	GitHubAPIURL string `envconfig:"PULLQUEST_GITHUB_API_URL"`

	// Durable client state (SQLite file)
	StatePath string `envconfig:"PULLQUEST_STATE_PATH" default:"pullquest.db"`

	// Authorization gate. Without a secret tokens are decoded but not verified.
	JWTSecret string `envconfig:"PULLQUEST_JWT_SECRET"`
	LoginPath string `envconfig:"PULLQUEST_LOGIN_PATH" default:"/login"`
	HomePath  string `envconfig:"PULLQUEST_HOME_PATH" default:"/"`

	// Local status API
	StatusAddr string `envconfig:"PULLQUEST_STATUS_ADDR" default:"127.0.0.1:8091"`

	// Optional YAML file with preset issue labels
	LabelsFile string `envconfig:"PULLQUEST_LABELS_FILE"`
}

// IsDevelopment returns true for the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// VerifySignatures returns true if bearer tokens are signature-checked.
func (c *Config) VerifySignatures() bool {
	return c.JWTSecret != ""
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("PULLQUEST_API_URL must not be empty")
	}
	if c.PerPage < 1 || c.PerPage > 100 {
		return fmt.Errorf("PULLQUEST_PER_PAGE must be between 1 and 100, got %d", c.PerPage)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix("")
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimSuffix(cfg.APIBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
