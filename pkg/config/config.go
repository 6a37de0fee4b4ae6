package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/specforge/specforge/pkg/fsstore"
	"github.com/specforge/specforge/pkg/session"
	"github.com/specforge/specforge/pkg/telemetry"
	"github.com/specforge/specforge/pkg/workspace"
)

// ModelConfig selects the concrete model per provider.
type ModelConfig struct {
	// Anthropic is the Claude model identifier.
	Anthropic string `yaml:"anthropic" validate:"required"`

	// OpenAI is the chat model identifier.
	OpenAI string `yaml:"openai" validate:"required"`

	// MaxTokens caps completion length for generation steps.
	MaxTokens int `yaml:"max_tokens" validate:"min=1"`
}

// Config is the workspace configuration, loaded from config.yaml at the
// workspace root.
type Config struct {
	// ProviderOrder is the provider priority order. The first entry is
	// tried first; later entries are fallbacks.
	ProviderOrder []string `yaml:"provider_order" validate:"required,min=1,dive,oneof=anthropic openai"`

	// TimeoutMinutes is the wall-clock budget for a whole pipeline run.
	TimeoutMinutes int `yaml:"timeout_minutes" validate:"min=1"`

	// MaxRetries is the per-provider transient retry cap.
	MaxRetries int `yaml:"max_retries" validate:"min=0"`

	// MaxFallbacks caps automatic provider substitutions per request.
	MaxFallbacks int `yaml:"max_fallbacks" validate:"min=0"`

	// Models selects the concrete model per provider.
	Models ModelConfig `yaml:"models"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns the configuration used when no config.yaml exists.
func Default() *Config {
	return &Config{
		ProviderOrder:  []string{"anthropic", "openai"},
		TimeoutMinutes: 30,
		MaxRetries:     3,
		MaxFallbacks:   2,
		Models: ModelConfig{
			Anthropic: "claude-sonnet-4-5",
			OpenAI:    "gpt-4o",
			MaxTokens: 4096,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load reads config.yaml from the workspace. A missing file yields the
// defaults; a present but invalid file is an error, never silently
// repaired.
func Load(layout *workspace.Layout) (*Config, error) {
	path := layout.ConfigPath()

	cfg := Default()
	if err := fsstore.NewCodec().Load(path, cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// RunConfig converts the run-relevant settings into the immutable snapshot
// embedded in a session at creation.
func (c *Config) RunConfig() session.RunConfig {
	order := make([]string, len(c.ProviderOrder))
	copy(order, c.ProviderOrder)
	return session.RunConfig{
		ProviderOrder:  order,
		TimeoutMinutes: c.TimeoutMinutes,
		MaxRetries:     c.MaxRetries,
		MaxFallbacks:   c.MaxFallbacks,
	}
}
