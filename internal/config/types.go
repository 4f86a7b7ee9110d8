// Package config provides configuration management for sqlchat.
//
// Precedence, highest to lowest: CLI flags > environment variables
// (SQLCHAT_ prefix) > config file (sqlchat.yaml) > defaults.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Model    ModelConfig    `koanf:"model"`
	Chat     ChatConfig     `koanf:"chat"`
	Verbose  bool           `koanf:"verbose"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
}

// DatabaseConfig configures the gateway's PostgreSQL pool. URL, when set,
// wins over the discrete fields.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"`

	MaxConns       int           `koanf:"max_conns"`
	MaxIdleConns   int           `koanf:"max_idle_conns"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`
	MaxRows        int           `koanf:"max_rows"`
}

// ModelConfig configures the language-model endpoint and the selectable
// model identifiers.
type ModelConfig struct {
	BaseURL string   `koanf:"base_url"`
	APIKey  string   `koanf:"api_key"`
	Models  []string `koanf:"models"`
	Default string   `koanf:"default"`
	// SchemaHint is used in the instruction prompt when live schema
	// introspection is unavailable.
	SchemaHint string `koanf:"schema_hint"`
}

// ChatConfig holds the conversation variant flags.
type ChatConfig struct {
	AutoExecute bool `koanf:"auto_execute"`
	Ratings     bool `koanf:"ratings"`
}

// DefaultModel resolves the model used before any selection is made.
func (m ModelConfig) DefaultModel() string {
	if m.Default != "" {
		return m.Default
	}
	if len(m.Models) > 0 {
		return m.Models[0]
	}
	return ""
}

// Default configuration values.
const (
	DefaultPort           = 8787
	DefaultDBHost         = "localhost"
	DefaultDBPort         = 5432
	DefaultSSLMode        = "disable"
	DefaultMaxConns       = 10
	DefaultMaxRows        = 1000
	DefaultAcquireTimeout = 5 * time.Second
)
