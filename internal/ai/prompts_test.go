package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertNoPlaceholders(t *testing.T, texts ...string) {
	t.Helper()
	for _, text := range texts {
		assert.NotContains(t, text, "{{", "unsubstituted placeholder in %q", text)
		assert.NotEmpty(t, strings.TrimSpace(text))
	}
}

func TestPromptsSubstituteAllPlaceholders(t *testing.T) {
	truth := "He survived a shipwreck."
	assertNoPlaceholders(t, CreateSoupPrompt("ru-RU"))
	assertNoPlaceholders(t, JudgeTryPrompt("en-US", truth))

	system, user := JudgeSolutionPrompts(truth, "A guess")
	assertNoPlaceholders(t, system, user)

	system, user = EvaluateSolutionPrompts("en-US", truth, "A guess", "1. Q: ...", "2")
	assertNoPlaceholders(t, system, user)

	system, user = GiveUpPrompts("en-US", "A man cries over soup.", truth)
	assertNoPlaceholders(t, system, user)

	system, user = HintPrompts("en-US", truth, "(no questions asked)", "(none)")
	assertNoPlaceholders(t, system, user)
}

func TestPromptsCarryTheirInputs(t *testing.T) {
	truth := "secret-truth-marker"

	assert.Contains(t, JudgeTryPrompt("en-US", truth), truth)

	system, user := JudgeSolutionPrompts(truth, "solution-marker")
	assert.Contains(t, system, truth)
	assert.Contains(t, user, "solution-marker")

	_, user = HintPrompts("en-US", truth, "tries-marker", "hints-marker")
	assert.Contains(t, user, "tries-marker")
	assert.Contains(t, user, "hints-marker")
}
