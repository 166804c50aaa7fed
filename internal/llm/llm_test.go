package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/miniagent/agent-platform/internal/models"
)

func TestIsSupported(t *testing.T) {
	assert.True(t, IsSupported("gpt-4o"))
	assert.True(t, IsSupported("claude-3-opus"))
	assert.False(t, IsSupported("gpt-3.5-turbo"))
	assert.False(t, IsSupported(""))
}

func TestBuildPrompt(t *testing.T) {
	agent := &models.Agent{
		Name:        "Scout",
		Role:        "a research assistant",
		Description: "Finds and summarizes sources.",
		Tools: []models.Tool{
			{Name: "web_search"},
			{Name: "summarize"},
		},
	}

	prompt := BuildPrompt(agent, "Find papers on fixed-window rate limiting")

	assert.Contains(t, prompt, "You are Scout, a research assistant.")
	assert.Contains(t, prompt, "Available tools: web_search, summarize")
	assert.Contains(t, prompt, "Task: Find papers on fixed-window rate limiting")

	// Same inputs, same prompt.
	assert.Equal(t, prompt, BuildPrompt(agent, "Find papers on fixed-window rate limiting"))
}

func TestBuildPromptNoTools(t *testing.T) {
	agent := &models.Agent{Name: "Solo", Role: "a generalist", Description: "Works alone."}
	assert.Contains(t, BuildPrompt(agent, "anything"), "Available tools: No tools available")
}

func TestMockCall(t *testing.T) {
	agent := &models.Agent{Name: "Scout", Role: "a research assistant", Description: "d"}
	prompt := BuildPrompt(agent, "task")

	resp := Mock{}.Call(prompt, "gpt-4o")
	assert.Equal(t, "[mock-response from gpt-4o]: You are Scout, a research assistant.", resp)
}
