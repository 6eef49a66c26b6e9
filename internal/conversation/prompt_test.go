package conversation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClassifierPrompt(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 5, 0, 0, mustLoad("Europe/Paris"))
	prompt := buildClassifierPrompt(now, "Garage Martin", map[string]string{
		"prix":     "Vidange 80 EUR",
		"adresse":  "12 rue de la Paix",
		"horaires": "9-18",
	})

	assert.Contains(t, prompt, "2025-06-10 09:05 (Tuesday), timezone Europe/Paris")
	assert.Contains(t, prompt, "Business: Garage Martin.")
	assert.Contains(t, prompt, `"intent"`)
	// FAQ entries are listed in key order so the prompt is stable.
	assert.Less(t, strings.Index(prompt, "- adresse:"), strings.Index(prompt, "- horaires:"))
	assert.Less(t, strings.Index(prompt, "- horaires:"), strings.Index(prompt, "- prix:"))
}

func TestBuildClassifierPromptWithoutFAQ(t *testing.T) {
	prompt := buildClassifierPrompt(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), "", nil)
	assert.Contains(t, prompt, "(none)")
	assert.NotContains(t, prompt, "Business:")
}

func TestClassifierMessagesTrimsHistory(t *testing.T) {
	var history []ChatMessage
	for i := 0; i < 5; i++ {
		history = append(history,
			ChatMessage{Role: ChatRoleUser, Content: fmt.Sprintf("user %d", i)},
			ChatMessage{Role: ChatRoleAssistant, Content: fmt.Sprintf("bot %d", i)},
		)
	}
	history = append(history, ChatMessage{Role: ChatRoleSystem, Content: "ignored"})

	msgs := classifierMessages(history, "latest")
	require.Len(t, msgs, classifierHistoryTurns+1)
	assert.Equal(t, ChatRoleUser, msgs[0].Role)
	assert.Equal(t, "user 2", msgs[0].Content)
	assert.Equal(t, ChatMessage{Role: ChatRoleUser, Content: "latest"}, msgs[len(msgs)-1])
}

func TestClassifierMessagesDropsLeadingAssistantTurn(t *testing.T) {
	msgs := classifierMessages([]ChatMessage{
		{Role: ChatRoleAssistant, Content: "Hello! How can I help?"},
		{Role: ChatRoleUser, Content: ""},
	}, "hi")
	assert.Equal(t, []ChatMessage{{Role: ChatRoleUser, Content: "hi"}}, msgs)
}
