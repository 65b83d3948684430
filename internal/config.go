package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Notes      NotesConfig       `yaml:"notes"`
	Ollama     OllamaConfig      `yaml:"ollama"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	SQLite     SQLiteConfig      `yaml:"sqlite"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notes.Validate(); err != nil {
		return err
	}
	if err := c.Ollama.Validate(); err != nil {
		return err
	}
	if err := c.Classifier.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig holds the on-disk note store configuration.
type NotesConfig struct {
	Path                string `yaml:"path"`
	BackupEnabled       bool   `yaml:"backup_enabled"`
	BackupRetentionDays int    `yaml:"backup_retention_days"`
	MaxFilenameLength   int    `yaml:"max_filename_length"`
	MaxNoteLength       int    `yaml:"max_note_length"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.BackupRetentionDays, validation.Min(0)),
		validation.Field(&c.MaxFilenameLength, validation.Min(20)),
		validation.Field(&c.MaxNoteLength, validation.Min(1)),
	)
}

// OllamaConfig holds the classification backend configuration.
type OllamaConfig struct {
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	ProbeTimeoutSeconds int    `yaml:"probe_timeout_seconds"`
}

// Timeout returns the classification request timeout.
func (c *OllamaConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ProbeTimeout returns the availability probe timeout.
func (c *OllamaConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// Validate validates the Ollama configuration.
func (c *OllamaConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.TimeoutSeconds, validation.Min(1)),
		validation.Field(&c.ProbeTimeoutSeconds, validation.Min(1)),
	)
}

// ClassifierConfig holds the classification policy configuration.
type ClassifierConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	PendingTTLMinutes   int     `yaml:"pending_ttl_minutes"`
}

// PendingTTL returns the lifetime of a note parked for confirmation.
func (c *ClassifierConfig) PendingTTL() time.Duration {
	return time.Duration(c.PendingTTLMinutes) * time.Minute
}

// Validate validates the classifier configuration.
func (c *ClassifierConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ConfidenceThreshold, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&c.PendingTTLMinutes, validation.Min(0)),
	)
}

// SQLiteConfig holds the search index configuration. An empty Path disables
// the index; read operations then scan the notes tree directly.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether the index is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path:                "./notes",
			BackupEnabled:       true,
			BackupRetentionDays: 30,
			MaxFilenameLength:   100,
			MaxNoteLength:       4000,
		},
		Ollama: OllamaConfig{
			BaseURL:             "http://localhost:11434",
			Model:               "llama3.1",
			TimeoutSeconds:      30,
			ProbeTimeoutSeconds: 5,
		},
		Classifier: ClassifierConfig{
			ConfidenceThreshold: 0.7,
			PendingTTLMinutes:   10,
		},
		SQLite: SQLiteConfig{
			Path: "./ansuz.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
