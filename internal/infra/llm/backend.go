// Package llm implements the external classification call.
//
// This package contains:
//   - Backend interface: one call under one API key, returning raw JSON text
//   - GeminiBackend: Gemini generateContent over HTTP
//   - GRPCBackend: unary gRPC call carrying google.protobuf.Struct messages
//   - ParseVerdict: response decoding and schema validation
package llm

import (
	"context"
	"fmt"
	"time"
)

// Backend performs a single classification request under apiKey.
// Implementations must not retry; retrying is the caller's job.
type Backend interface {
	Name() string
	Classify(ctx context.Context, apiKey, prompt string) (string, error)
	Close() error
}

// Config holds backend connection settings.
type Config struct {
	Backend    string        `yaml:"backend"` // gemini, grpc
	Endpoint   string        `yaml:"endpoint"`
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"`
	GRPCMethod string        `yaml:"grpc_method"`
}

const (
	BackendGemini = "gemini"
	BackendGRPC   = "grpc"
)

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendGemini:
		return NewGeminiBackend(cfg.Endpoint, cfg.Model, cfg.Timeout), nil
	case BackendGRPC:
		return NewGRPCBackend(ctx, cfg.Endpoint, cfg.GRPCMethod, cfg.Timeout)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}
