package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/papersift/internal/infra/llm"
	"github.com/vietddude/papersift/internal/infra/source"
	"github.com/vietddude/papersift/internal/pipeline/classifier"
)

// EnvAPIKeys holds extra comma-separated API keys appended to credentials.keys.
const EnvAPIKeys = "PAPERSIFT_API_KEYS"

// Load reads configuration from a YAML file. An empty path yields the
// defaults plus environment overrides.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if extra := os.Getenv(EnvAPIKeys); extra != "" {
		for _, k := range strings.Split(extra, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Credentials.Keys = append(cfg.Credentials.Keys, k)
			}
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills unset values.
func applyDefaults(cfg *AppConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Credentials.CallsPerMinute == 0 {
		cfg.Credentials.CallsPerMinute = 15
	}
	if cfg.Credentials.WorkersPerCredential == 0 {
		cfg.Credentials.WorkersPerCredential = 3
	}

	if cfg.Classifier.Backend == "" {
		cfg.Classifier.Backend = llm.BackendGemini
	}
	if cfg.Classifier.Timeout == 0 {
		cfg.Classifier.Timeout = 60 * time.Second
	}
	if cfg.Classifier.Retry.Mode == "" {
		cfg.Classifier.Retry.Mode = classifier.ModeUnbounded
	}

	if cfg.Input.Dir == "" {
		cfg.Input.Dir = "."
	}
	if cfg.Input.Pattern == "" {
		cfg.Input.Pattern = "*publications*.csv"
	}
	if cfg.Input.IDColumn == "" {
		cfg.Input.IDColumn = source.DefaultIDColumn
	}
	if cfg.Input.TitleColumn == "" {
		cfg.Input.TitleColumn = source.DefaultTitleColumn
	}
	if cfg.Input.AbstractColumn == "" {
		cfg.Input.AbstractColumn = source.DefaultAbstractColumn
	}

	if cfg.Checkpoint.Dir == "" {
		cfg.Checkpoint.Dir = "."
	}
	if cfg.Checkpoint.Prefix == "" {
		cfg.Checkpoint.Prefix = "papersift"
	}
}

// Validate reports configuration errors that would make a run impossible.
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Credentials.WorkersPerCredential < 1 {
		errs = append(errs, fmt.Errorf("credentials.workers_per_credential must be positive"))
	}
	if c.Credentials.CallsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("credentials.calls_per_minute must not be negative"))
	}

	switch c.Classifier.Backend {
	case llm.BackendGemini:
	case llm.BackendGRPC:
		if c.Classifier.Endpoint == "" {
			errs = append(errs, fmt.Errorf("classifier.endpoint is required for the grpc backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.backend %q", c.Classifier.Backend))
	}

	if _, err := c.RetryPolicy(); err != nil {
		errs = append(errs, err)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// RetryPolicy builds the classifier retry policy from the retry section.
func (c *AppConfig) RetryPolicy() (classifier.RetryPolicy, error) {
	r := c.Classifier.Retry
	return classifier.PolicyFor(r.Mode, r.MaxAttempts, r.BaseDelay, r.MaxDelay)
}
