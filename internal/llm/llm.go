// Package llm builds agent prompts and stubs the model backend. The stub is
// a pure function: no network, no side effects, deterministic output.
package llm

import (
	"fmt"
	"strings"

	"github.com/miniagent/agent-platform/internal/models"
)

// SupportedModels is the fixed set of model names a run may request.
var SupportedModels = []string{"gpt-4o", "gpt-4-turbo", "claude-3-opus"}

func IsSupported(model string) bool {
	for _, m := range SupportedModels {
		if m == model {
			return true
		}
	}
	return false
}

// BuildPrompt renders the deterministic run prompt from the agent's
// identity, its attached tools, and the task text.
func BuildPrompt(agent *models.Agent, task string) string {
	tools := "No tools available"
	if len(agent.Tools) > 0 {
		names := make([]string, len(agent.Tools))
		for i, tool := range agent.Tools {
			names[i] = tool.Name
		}
		tools = strings.Join(names, ", ")
	}

	return fmt.Sprintf(`You are %s, %s.
Description: %s
Available tools: %s
Task: %s
Please complete the task using the information and tools available to you.
`, agent.Name, agent.Role, agent.Description, tools, task)
}

// Caller is the model-call collaborator consumed by the service.
type Caller interface {
	Call(prompt, model string) string
}

// Mock echoes the first line of the prompt back, tagged with the model name.
type Mock struct{}

func (Mock) Call(prompt, model string) string {
	first, _, _ := strings.Cut(prompt, "\n")
	return fmt.Sprintf("[mock-response from %s]: %s", model, strings.TrimSpace(first))
}
