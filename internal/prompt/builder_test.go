package prompt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentcore/core/internal/conversation"
	"github.com/agentcore/core/internal/prompt"
)

func TestBuildIsPure(t *testing.T) {
	settings := &conversation.CollectionSettings{Enabled: true, Mode: conversation.CollectionTechnicalSpec}
	a := prompt.Build(conversation.FormatMarkdown, settings)
	b := prompt.Build(conversation.FormatMarkdown, settings)
	assert.Equal(t, a, b)
}

func TestBuildCustomPromptReplacesPersona(t *testing.T) {
	settings := &conversation.CollectionSettings{CustomPrompt: "You are a pirate."}
	out := prompt.Build(conversation.FormatPlain, settings)
	assert.Contains(t, out, "You are a pirate.")
}

func TestBuildFormatClauses(t *testing.T) {
	assert.Contains(t, prompt.Build(conversation.FormatJSON, nil), "JSON")
	assert.Contains(t, prompt.Build(conversation.FormatMarkdown, nil), "Markdown")
	assert.Contains(t, prompt.Build(conversation.FormatPlain, nil), "plain prose")
}

func TestBuildCollectionClauseListsFields(t *testing.T) {
	settings := &conversation.CollectionSettings{Enabled: true, Mode: conversation.CollectionSolveStepByStep}
	out := prompt.Build(conversation.FormatPlain, settings)
	assert.Contains(t, out, "Steps")
	assert.Contains(t, out, "Final Answer")
}

func TestBuildCollectionDisabledOmitsClause(t *testing.T) {
	settings := &conversation.CollectionSettings{Enabled: false, Mode: conversation.CollectionSolveStepByStep}
	out := prompt.Build(conversation.FormatPlain, settings)
	assert.NotContains(t, out, "Final Answer")
}

func TestBuildCustomCollectionMode(t *testing.T) {
	settings := &conversation.CollectionSettings{Enabled: true, Mode: conversation.CollectionCustom, ResultTitle: "My Report"}
	out := prompt.Build(conversation.FormatPlain, settings)
	assert.Contains(t, out, "My Report")
}
