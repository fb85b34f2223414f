package agent

import (
	"fmt"
	"os"

	"github.com/agentflow-go/agentflow/providers/registry"
)

// FromVal constructs a Builder for a named provider with an explicitly
// supplied API key, per spec §6.4.
func FromVal(provider, apiKey, model string) (*Builder, error) {
	m, err := registry.Build(provider, apiKey, model)
	if err != nil {
		return nil, err
	}
	return NewBuilder(m), nil
}

// FromEnv constructs a Builder for a named provider, reading its API key
// from the provider's registered environment variable. It panics with a
// descriptive message if the variable is unset, per spec §6.4 — a missing
// credential is a configuration error the caller is expected to fix before
// running, not a recoverable runtime condition.
func FromEnv(provider, model string) *Builder {
	envVar, ok := registry.EnvVar(provider)
	if !ok {
		panic(fmt.Sprintf("agent: unknown provider %q (registered providers: %v)", provider, registry.Names()))
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		panic(fmt.Sprintf("agent: missing required environment variable %s for provider %q", envVar, provider))
	}
	b, err := FromVal(provider, apiKey, model)
	if err != nil {
		panic(fmt.Sprintf("agent: failed to construct provider %q: %v", provider, err))
	}
	return b
}
