package conversation

import (
	"regexp"
	"strings"
)

// guardPattern is a weighted signal for the input scan.
type guardPattern struct {
	re     *regexp.Regexp
	reason string
	weight float64
}

// Messages scoring at or above this never reach the model.
const injectionBlockScore = 0.7

var injectionPatterns = []guardPattern{
	// Attempts to override the classifier prompt.
	{regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above|earlier|your)\s+(instructions?|rules?|prompts?|guidelines?)`), "override_instructions", 0.9},
	{regexp.MustCompile(`(?i)(ignore|oublie)[sz]?\s+(toutes\s+)?(les\s+|tes\s+|vos\s+)?(instructions|consignes|règles)\s+(précédentes|ci-dessus)`), "override_instructions_fr", 0.9},
	{regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\s+`), "role_reassignment", 0.7},
	{regexp.MustCompile(`(?i)new\s+instructions?\s*:|system\s*prompt\s*:|<<\s*sys(tem)?\s*>>`), "new_instructions", 0.9},
	{regexp.MustCompile(`(?i)jailbreak|DAN\s*mode|developer\s*mode`), "jailbreak", 0.9},
	// Attempts to read the prompt or secrets back.
	{regexp.MustCompile(`(?i)(reveal|show|print|repeat|tell\s+me)\s+(your\s+)?(system\s+prompt|instructions?|initial\s+prompt|hidden\s+prompt)`), "prompt_exfiltration", 0.8},
	{regexp.MustCompile(`(?i)\b(api|secret|aws|database|db)\s*(key|token|secret|password)s?\b`), "credential_probe", 0.8},
	// Fake conversation boundaries and chat-template tokens.
	{regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`), "template_tokens", 0.9},
	{regexp.MustCompile(`(?i)###\s*(system|instruction|assistant|user)\s*:`), "role_markers", 0.7},
	{regexp.MustCompile(`<\s*(script|iframe|object|embed|svg)\b`), "html_injection", 0.6},
}

var (
	templateTokenRe = regexp.MustCompile(`(?i)\[/?INST\]|\[/?SYS\]|<\|im_start\|>|<\|im_end\|>|<\|system\|>|<\|user\|>|<\|assistant\|>`)
	roleMarkerRe    = regexp.MustCompile(`(?i)###\s*(system|instruction|assistant|user)\s*:`)
	htmlTagRe       = regexp.MustCompile(`<\s*(script|iframe|object|embed|svg|img)\b[^>]*>`)
)

// inputVerdict is the outcome of scanning a message before classification.
type inputVerdict struct {
	blocked bool
	score   float64
	reasons []string
	// cleaned is the message with template tokens and markup stripped.
	cleaned string
}

// scanInput scores a message for prompt injection. The highest signal sets
// the score and each extra signal adds 0.1.
func scanInput(message string) inputVerdict {
	v := inputVerdict{cleaned: message}
	if strings.TrimSpace(message) == "" {
		return v
	}

	for _, p := range injectionPatterns {
		if !p.re.MatchString(message) {
			continue
		}
		v.reasons = append(v.reasons, p.reason)
		if p.weight > v.score {
			v.score = p.weight
		}
	}
	if n := len(v.reasons); n > 1 {
		v.score += float64(n-1) * 0.1
		if v.score > 1 {
			v.score = 1
		}
	}
	v.blocked = v.score >= injectionBlockScore

	cleaned := templateTokenRe.ReplaceAllString(message, "")
	cleaned = roleMarkerRe.ReplaceAllString(cleaned, "")
	cleaned = htmlTagRe.ReplaceAllString(cleaned, "")
	v.cleaned = strings.TrimSpace(cleaned)
	return v
}

// answerLeakPatterns mark model answers that must not be shown to a visitor.
var answerLeakPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)my (system\s+)?prompt\s+(is|says|tells|instructs)`),
	regexp.MustCompile(`(?i)my instructions?\s+(are|say|tell|include|require)`),
	regexp.MustCompile(`(?i)i('m| am) (programmed|instructed|told|configured) to`),
	regexp.MustCompile(`(?i)(powered by|built on|running on)\s+(Gemini|Google|Claude|GPT|OpenAI|Anthropic|Bedrock|AWS)`),
	regexp.MustCompile(`(?i)(api[_\s]?key|secret[_\s]?key|access[_\s]?token|bearer\s+token)\s*[:=]\s*\S+`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)(postgres|redis)://\S+`),
	regexp.MustCompile(`(?i)/admin/|/internal/|/debug/`),
	regexp.MustCompile(`(?i)"?(intent|answer)"?\s*:\s*"?(FAQ|BOOK_APPOINTMENT|CONFIRM|CANCEL|OTHER)\b`),
}

var aiDisclosureRe = regexp.MustCompile(`(?i)[^.!?]*\bi('m| am) (a|an) (AI|artificial intelligence|language model|LLM|chatbot)\b[^.!?]*[.!?]?\s*`)

// guardAnswer returns the model's FAQ answer fit for display, or "" when it
// leaks prompt, infrastructure or classifier internals. The engine then falls
// back to the tenant's configured FAQ.
func guardAnswer(answer string) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	for _, re := range answerLeakPatterns {
		if re.MatchString(answer) {
			return ""
		}
	}
	return strings.TrimSpace(aiDisclosureRe.ReplaceAllString(answer, ""))
}
