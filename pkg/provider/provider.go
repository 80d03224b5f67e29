package provider

import (
	"context"
	"errors"
	"fmt"
)

// ErrConfiguration marks a genuine capability outage while building the
// generation configuration, as opposed to a merely unset value.
var ErrConfiguration = errors.New("configuration unavailable")

// Provider is the pluggable backend capability. Generate classifies every
// expected failure mode into a Result variant instead of returning an
// error, so callers always receive a value for domain-level outcomes.
type Provider interface {
	Identifier() ModelIdentifier
	Generate(ctx context.Context, prompt string) Result
}

// CredentialSource hands out the API secret a backend authenticates with.
type CredentialSource interface {
	// APIKey fails when no credential has been configured; absence is a
	// distinct state, never an empty string.
	APIKey(ctx context.Context) (string, error)
}

// BoundSource reads the persisted output-length bound. ok is false when no
// bound has been configured, which is not an error.
type BoundSource interface {
	OutputTokenBound(ctx context.Context) (bound int, ok bool, err error)
}

// ConfigBuilder produces one GenerationConfig per call. Each backend fixes
// its static fields at construction and sources only the output bound
// dynamically.
type ConfigBuilder struct {
	static       GenerationConfig
	defaultBound int
	bounds       BoundSource
}

// NewConfigBuilder fixes the backend's static tuning and compiled-in bound
// default. The MaxOutputTokens field of static is ignored.
func NewConfigBuilder(static GenerationConfig, defaultBound int, bounds BoundSource) *ConfigBuilder {
	return &ConfigBuilder{
		static:       static,
		defaultBound: defaultBound,
		bounds:       bounds,
	}
}

// Build queries the bound source and assembles the per-call config. An
// unset bound falls back to the compiled-in default; only a bound-source
// outage fails, wrapped as ErrConfiguration.
func (b *ConfigBuilder) Build(ctx context.Context) (GenerationConfig, error) {
	cfg := b.static
	cfg.MaxOutputTokens = b.defaultBound

	if b.bounds == nil {
		return cfg, nil
	}

	bound, ok, err := b.bounds.OutputTokenBound(ctx)
	if err != nil {
		return GenerationConfig{}, fmt.Errorf("%w: read output token bound: %v", ErrConfiguration, err)
	}
	if ok {
		cfg.MaxOutputTokens = bound
	}

	return cfg, nil
}
