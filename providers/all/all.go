// Package all blank-imports every providers/* adapter so that its init
// registers with providers/registry, mirroring the database/sql driver
// convention: a caller imports this package for side effects alone
// (`import _ "github.com/agentflow-go/agentflow/providers/all"`) to make
// every built-in provider available to agent.FromEnv/registry.Build without
// naming each adapter package individually. A caller that only needs one or
// two providers can still import those packages directly instead.
package all

import (
	_ "github.com/agentflow-go/agentflow/providers/anthropic"
	_ "github.com/agentflow-go/agentflow/providers/cohere"
	_ "github.com/agentflow-go/agentflow/providers/compat"
	_ "github.com/agentflow-go/agentflow/providers/gemini"
	_ "github.com/agentflow-go/agentflow/providers/openai"
	_ "github.com/agentflow-go/agentflow/providers/openairesponses"
	_ "github.com/agentflow-go/agentflow/providers/openrouter"
)
