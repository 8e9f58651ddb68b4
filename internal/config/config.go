// ABOUTME: Configuration loading and parsing for the techscore server
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete techscore configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
	WebAdmin WebAdminConfig `yaml:"webadmin"`
	Updates  UpdatesConfig  `yaml:"updates"`
	Scoring  ScoringConfig  `yaml:"scoring"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds API token configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	TokenTTLRaw string `yaml:"token_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WebAdminConfig holds scoring UI configuration
type WebAdminConfig struct {
	// BaseURL is the external URL for the UI (used for invite links).
	// If not set, it's derived from server.http_addr.
	BaseURL       string        `yaml:"base_url"`
	SecureCookies bool          `yaml:"secure_cookies"`
	SessionTTL    time.Duration `yaml:"-"`
	InviteTTL     time.Duration `yaml:"-"`

	SessionTTLRaw string `yaml:"session_ttl"`
	InviteTTLRaw  string `yaml:"invite_ttl"`
}

// UpdatesConfig controls the update request worker.
type UpdatesConfig struct {
	Enabled     bool          `yaml:"enabled"`
	WebhookURL  string        `yaml:"webhook_url"`
	BatchSize   int           `yaml:"batch_size"`
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"-"`
	Coalesce    time.Duration `yaml:"-"`
	Timeout     time.Duration `yaml:"-"`

	IntervalRaw string `yaml:"interval"`
	CoalesceRaw string `yaml:"coalesce"`
	TimeoutRaw  string `yaml:"timeout"`
}

// ScoringConfig holds scoring defaults.
type ScoringConfig struct {
	// TeamBoats is how many boats each team sails in a team race.
	TeamBoats int `yaml:"team_boats"`
	// DefaultBoat names the boat class used for new races.
	DefaultBoat string `yaml:"default_boat"`
}

// DefaultPath returns $TECHSCORE_CONFIG, or techscore/techscore.yaml
// under the XDG config directory.
func DefaultPath() string {
	if p := os.Getenv("TECHSCORE_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "techscore.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "techscore", "techscore.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 30 * 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.WebAdmin.SessionTTL == 0 {
		c.WebAdmin.SessionTTL = 7 * 24 * time.Hour
	}
	if c.WebAdmin.InviteTTL == 0 {
		c.WebAdmin.InviteTTL = 24 * time.Hour
	}
	if c.Updates.Interval == 0 {
		c.Updates.Interval = 5 * time.Second
	}
	if c.Updates.Coalesce == 0 {
		c.Updates.Coalesce = 30 * time.Second
	}
	if c.Updates.Timeout == 0 {
		c.Updates.Timeout = 10 * time.Second
	}
	if c.Updates.BatchSize == 0 {
		c.Updates.BatchSize = 50
	}
	if c.Updates.MaxAttempts == 0 {
		c.Updates.MaxAttempts = 5
	}
	if c.Scoring.TeamBoats == 0 {
		c.Scoring.TeamBoats = 3
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	if c.Updates.WebhookURL != "" && c.Auth.JWTSecret == "" {
		return errors.New("updates.webhook_url requires auth.jwt_secret for signing")
	}
	if c.Scoring.TeamBoats < 1 || c.Scoring.TeamBoats > 4 {
		return errors.New("scoring.team_boats must be between 1 and 4")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"session_ttl", cfg.WebAdmin.SessionTTLRaw, &cfg.WebAdmin.SessionTTL},
		{"invite_ttl", cfg.WebAdmin.InviteTTLRaw, &cfg.WebAdmin.InviteTTL},
		{"interval", cfg.Updates.IntervalRaw, &cfg.Updates.Interval},
		{"coalesce", cfg.Updates.CoalesceRaw, &cfg.Updates.Coalesce},
		{"timeout", cfg.Updates.TimeoutRaw, &cfg.Updates.Timeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
