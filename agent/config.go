package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentflow-go/agentflow/providers/registry"
)

// Config is the declarative shape LoadConfig reads, adapted from the
// teacher's AgentConfig/config_loader.go onto this module's
// provider-registry + typestate Builder, trimmed to the fields this spec's
// Builder actually exposes (no memory/retry/rate-limit sections — those are
// explicit Non-goals here).
type Config struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Preamble        string  `yaml:"preamble"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	DefaultMaxTurns int     `yaml:"default_max_turns"`
}

// LoadConfig reads a YAML file and builds a Builder from it, grounded on the
// teacher's LoadAgentConfig (config_loader.go). Unlike the teacher's
// Validate-then-return-struct shape, this returns an already-configured
// Builder since Config's only purpose here is to construct one.
func LoadConfig(path string) (*Builder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent: read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("agent: parse config YAML: %w", err)
	}
	if cfg.Provider == "" {
		return nil, &ConfigError{Reason: "config file missing required \"provider\" field"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Reason: "config file missing required \"model\" field"}
	}

	envVar := cfg.APIKeyEnv
	if envVar == "" {
		var ok bool
		envVar, ok = registry.EnvVar(cfg.Provider)
		if !ok {
			return nil, &ConfigError{Reason: fmt.Sprintf("unknown provider %q and no api_key_env override given", cfg.Provider)}
		}
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, &ConfigError{Reason: fmt.Sprintf("missing required environment variable %s", envVar)}
	}

	b, err := FromVal(cfg.Provider, apiKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	if cfg.Preamble != "" {
		b.Preamble(cfg.Preamble)
	}
	if cfg.Temperature != 0 {
		b.Temperature(cfg.Temperature)
	}
	if cfg.MaxTokens != 0 {
		b.MaxTokens(cfg.MaxTokens)
	}
	if cfg.DefaultMaxTurns != 0 {
		b.DefaultMaxTurns(cfg.DefaultMaxTurns)
	}
	return b, nil
}
