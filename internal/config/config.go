// Package config loads the Cara project configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a Cara workspace.
type Config struct {
	Version   int       `yaml:"version"`
	Owner     string    `yaml:"owner"`   // owner id the sync engine is scoped to
	DBPath    string    `yaml:"db_path"` // sqlite database location
	Inference Inference `yaml:"inference"`
	Engine    Engine    `yaml:"engine"`
}

// Inference describes the text-completion provider and how to call it.
type Inference struct {
	Provider   string     `yaml:"provider"`              // openai, anthropic, google
	Model      string     `yaml:"model,omitempty"`       // model name
	APIKeyEnv  string     `yaml:"api_key_env"`           // env var holding the API key
	TimeoutSec int        `yaml:"timeout_sec,omitempty"` // per-call HTTP timeout (0 = default 60)
	Generation Generation `yaml:"generation"`
	Retry      Retry      `yaml:"retry"`
}

// Generation holds sampling/length controls passed through to the provider.
type Generation struct {
	Temperature     float64 `yaml:"temperature"`
	TopP            float64 `yaml:"top_p"`
	TopK            int     `yaml:"top_k"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
}

// Retry bounds the inference retry loop.
type Retry struct {
	MaxAttempts int `yaml:"max_attempts"`
	DelayMS     int `yaml:"delay_ms"`
}

// Engine holds sync-engine tunables.
type Engine struct {
	DebounceMS  int `yaml:"debounce_ms"`  // quiet period for debounced edits
	MaxBackfill int `yaml:"max_backfill"` // concurrent priority back-fill estimations
}

// DefaultTimeout returns the effective HTTP timeout in seconds.
func (i Inference) DefaultTimeout() int {
	if i.TimeoutSec > 0 {
		return i.TimeoutSec
	}
	return 60
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Default returns a starter config with the standard tunables filled in.
func Default() *Config {
	return &Config{
		Version: 1,
		DBPath:  ".cara/cara.db",
		Inference: Inference{
			Provider:  "google",
			Model:     "gemini-pro",
			APIKeyEnv: "GEMINI_API_KEY",
			Generation: Generation{
				Temperature:     0.7,
				TopP:            0.8,
				TopK:            40,
				MaxOutputTokens: 250,
			},
			Retry: Retry{MaxAttempts: 3, DelayMS: 2000},
		},
		Engine: Engine{DebounceMS: 1000, MaxBackfill: 4},
	}
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.Inference.Retry.MaxAttempts == 0 {
		c.Inference.Retry = d.Inference.Retry
	}
	if c.Inference.Generation.MaxOutputTokens == 0 {
		c.Inference.Generation = d.Inference.Generation
	}
	if c.Engine.DebounceMS == 0 {
		c.Engine.DebounceMS = d.Engine.DebounceMS
	}
	if c.Engine.MaxBackfill == 0 {
		c.Engine.MaxBackfill = d.Engine.MaxBackfill
	}
}

func (c *Config) validate() error {
	if c.Owner == "" {
		return fmt.Errorf("config: owner is required")
	}
	switch c.Inference.Provider {
	case "openai", "anthropic", "google":
	case "":
		return fmt.Errorf("config: inference provider is required")
	default:
		return fmt.Errorf("config: unsupported provider %q (openai, anthropic, google)", c.Inference.Provider)
	}
	if c.Inference.APIKeyEnv == "" {
		return fmt.Errorf("config: inference api_key_env is required")
	}
	if c.Inference.Retry.MaxAttempts < 1 {
		return fmt.Errorf("config: retry max_attempts must be >= 1")
	}
	if c.Inference.Retry.DelayMS < 0 {
		return fmt.Errorf("config: retry delay_ms must be >= 0")
	}
	return nil
}
