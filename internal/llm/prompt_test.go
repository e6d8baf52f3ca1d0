package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProfilePrompt(t *testing.T) {
	prompt := ProfilePrompt("likes hiking", "User: I also cook\nAssistant: noted")

	assert.Contains(t, prompt, "Current summary:\nlikes hiking")
	assert.Contains(t, prompt, "New questions/answers:\nUser: I also cook\nAssistant: noted")
	assert.True(t, strings.HasPrefix(prompt, "Here is a running summary"),
		"instruction comes before the data")
}

func TestProfilePromptEmptySummary(t *testing.T) {
	prompt := ProfilePrompt("", "User: hello")

	// A first-time user gets an empty current-summary section, not a
	// missing one; the model extends from nothing.
	assert.Contains(t, prompt, "Current summary:\n\n")
	assert.Contains(t, prompt, "User: hello")
}
