package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// classifierHistoryTurns bounds how much of the conversation the model sees.
const classifierHistoryTurns = 6

const classifierInstructions = `You are the booking assistant of a small business. Classify the customer's last message and extract booking details.

Reply with ONE JSON object and nothing else, with exactly these fields:
{"intent": "FAQ" | "BOOK_APPOINTMENT" | "CONFIRM" | "CANCEL" | "OTHER",
 "answer": string or null,
 "name": string or null,
 "date": "YYYY-MM-DD" or null,
 "time": "HH:MM" (24h) or null}

Rules:
- Never invent values. If you are not sure, use null.
- Resolve relative dates ("tomorrow", "demain", "next Monday") against the current date above.
- intent=FAQ: answer briefly in "answer" using only the FAQ below; use null if the FAQ does not cover it.
- intent=BOOK_APPOINTMENT: extract name, date and time when present.
- intent=CONFIRM: the customer agrees to the appointment that was just proposed.
- intent=CANCEL: the customer wants to stop or cancel the current request.
- The customer may write in English or French.`

// buildClassifierPrompt renders the system prompt with the current date and the tenant FAQ.
func buildClassifierPrompt(now time.Time, businessName string, faq map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date and time: %s (%s), timezone %s.\n",
		now.Format("2006-01-02 15:04"), now.Weekday(), now.Location())
	if businessName != "" {
		fmt.Fprintf(&b, "Business: %s.\n", businessName)
	}
	b.WriteString("\n")
	b.WriteString(classifierInstructions)
	b.WriteString("\n\nFAQ:\n")
	if len(faq) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	keys := make([]string, 0, len(faq))
	for k := range faq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, faq[k])
	}
	return b.String()
}

// classifierMessages keeps the last turns of history and appends the message.
func classifierMessages(history []ChatMessage, message string) []ChatMessage {
	var turns []ChatMessage
	for _, m := range history {
		if m.Role != ChatRoleUser && m.Role != ChatRoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) > classifierHistoryTurns {
		turns = turns[len(turns)-classifierHistoryTurns:]
	}
	// Providers expect the conversation to open with a user turn.
	for len(turns) > 0 && turns[0].Role != ChatRoleUser {
		turns = turns[1:]
	}
	out := make([]ChatMessage, 0, len(turns)+1)
	out = append(out, turns...)
	return append(out, ChatMessage{Role: ChatRoleUser, Content: message})
}
