package config

import (
	"time"

	"github.com/vietddude/papersift/internal/infra/llm"
	redisclient "github.com/vietddude/papersift/internal/infra/redis"
	"github.com/vietddude/papersift/internal/infra/source"
	"github.com/vietddude/papersift/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Logging     LoggingConfig      `yaml:"logging"`
	Server      ServerConfig       `yaml:"server"`
	Credentials CredentialsConfig  `yaml:"credentials"`
	Classifier  ClassifierConfig   `yaml:"classifier"`
	Input       InputConfig        `yaml:"input"`
	Checkpoint  CheckpointConfig   `yaml:"checkpoint"`
	Output      OutputConfig       `yaml:"output"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings. Port 0 disables the server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// CredentialsConfig holds the API keys and their per-key throughput.
type CredentialsConfig struct {
	Keys                 []string `yaml:"keys"`
	CallsPerMinute       int      `yaml:"calls_per_minute"`
	WorkersPerCredential int      `yaml:"workers_per_credential"`
}

// ClassifierConfig selects the backend and the retry regime.
type ClassifierConfig struct {
	llm.Config     `yaml:",inline"`
	PromptTemplate string      `yaml:"prompt_template"`
	Retry          RetryConfig `yaml:"retry"`
}

// RetryConfig tunes the retry regime. Zero values keep the preset's values.
type RetryConfig struct {
	Mode        string        `yaml:"mode"` // unbounded, bounded
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// InputConfig locates the input CSV. Path wins; otherwise the newest file
// in Dir matching Pattern is used.
type InputConfig struct {
	Path          string `yaml:"path"`
	Dir           string `yaml:"dir"`
	Pattern       string `yaml:"pattern"`
	source.Config `yaml:",inline"`
}

// CheckpointConfig locates checkpoint files.
type CheckpointConfig struct {
	Dir    string `yaml:"dir"`
	Prefix string `yaml:"prefix"`
	Path   string `yaml:"path"`
}

// OutputConfig controls the positive-only export.
type OutputConfig struct {
	PositivePath string `yaml:"positive_path"`
	Disabled     bool   `yaml:"disabled"`
}
