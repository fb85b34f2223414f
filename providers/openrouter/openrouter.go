// Package openrouter registers OpenRouter as a completion.Model provider.
// OpenRouter exposes an OpenAI-Chat-Completions-compatible endpoint in front
// of many upstream models, so this package needs no wire-format logic of its
// own: it is a thin constructor wrapping providers/openai.New with
// OpenRouter's base URL, grounded on the teacher's own
// NewOpenAIAdapter(apiKey, baseURL) doc comment, which names exactly this
// pattern ("OpenAI-compatible APIs via custom baseURL").
package openrouter

import (
	"github.com/agentflow-go/agentflow/completion"
	"github.com/agentflow-go/agentflow/providers/openai"
	"github.com/agentflow-go/agentflow/providers/registry"
)

// baseURL is OpenRouter's OpenAI-compatible Chat Completions endpoint.
const baseURL = "https://openrouter.ai/api/v1"

func init() {
	registry.Register("openrouter", "OPENROUTER_API_KEY", func(apiKey, model string) (completion.Model, error) {
		return New(apiKey, model), nil
	})
}

// New builds a Model targeting OpenRouter.
func New(apiKey, model string) completion.Model {
	return openai.New(apiKey, baseURL, model)
}
