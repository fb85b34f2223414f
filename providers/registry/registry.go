// Package registry supplements the distilled spec with the provider-name
// lookup facade rig-core/src/client/mod.rs exposes as ProviderClient
// (original_source/), dropped by the distillation in favor of naming
// providers directly. It adds no new completion semantics: it is a small
// map from provider name to a constructor closure, consulted by
// agent.FromEnv, agent.FromVal and agent.LoadConfig (agent.NewBuilder takes
// an already-built completion.Model).
package registry

import (
	"fmt"
	"sync"

	"github.com/agentflow-go/agentflow/completion"
)

// Constructor builds a completion.Model for one provider given an API key
// and a model name.
type Constructor func(apiKey, model string) (completion.Model, error)

var (
	mu      sync.RWMutex
	ctors   = map[string]Constructor{}
	envVars = map[string]string{}
)

// Register adds a provider constructor under name, and the environment
// variable agent.FromEnv should read for its API key. Provider packages call
// this from an init func so importing providers/openai (etc.) is sufficient
// to make it available through the registry.
func Register(name string, envVar string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	ctors[name] = ctor
	envVars[name] = envVar
}

// Build looks up a registered provider by name and constructs a Model.
func Build(name, apiKey, model string) (completion.Model, error) {
	mu.RLock()
	ctor, ok := ctors[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("providers/registry: unknown provider %q", name)
	}
	return ctor(apiKey, model)
}

// EnvVar returns the environment variable name registered for provider, or
// "" if the provider is unknown.
func EnvVar(name string) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	v, ok := envVars[name]
	return v, ok
}

// Names returns every registered provider name, in no guaranteed order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(ctors))
	for name := range ctors {
		names = append(names, name)
	}
	return names
}
