package agent

import (
	"fmt"

	"github.com/agentflow-go/agentflow/message"
)

// ConfigError reports an invalid builder state, detected at Build time
// (§7 "Configuration errors").
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("agent: invalid configuration: %s", e.Reason)
}

// MaxTurnsExceededError is returned when the multi-turn driver exhausts its
// turn budget without a text-only response (§4.8, invariant 8).
type MaxTurnsExceededError struct {
	Max        int
	History    []message.Message
	LastPrompt message.Message
}

func (e *MaxTurnsExceededError) Error() string {
	return fmt.Sprintf("agent: exceeded max turns (%d) without a final text response", e.Max)
}

// PromptCancelledError is returned when a Hook terminates the loop early
// (§4.8, §5, invariant 9).
type PromptCancelledError struct {
	History []message.Message
	Reason  string
}

func (e *PromptCancelledError) Error() string {
	return fmt.Sprintf("agent: prompt cancelled: %s", e.Reason)
}
