package conversation

import (
	"encoding/json"
	"errors"
	"strings"
)

// wireClassification is the JSON the model is asked to return. Every field is
// nullable; nothing reaches the engine without going through sanitizeField.
type wireClassification struct {
	Intent *string `json:"intent"`
	Answer *string `json:"answer"`
	Name   *string `json:"name"`
	Date   *string `json:"date"`
	Time   *string `json:"time"`
}

// placeholderValues are strings models emit instead of null.
var placeholderValues = map[string]struct{}{
	"null":       {},
	"none":       {},
	"nil":        {},
	"string":     {},
	"n/a":        {},
	"na":         {},
	"unknown":    {},
	"undefined":  {},
	"yyyy-mm-dd": {},
	"hh:mm":      {},
}

// sanitizeField maps null, blanks and placeholder strings to absent ("").
func sanitizeField(v *string) string {
	if v == nil {
		return ""
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return ""
	}
	if _, ok := placeholderValues[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}

func parseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentFAQ:
		return IntentFAQ
	case IntentBook:
		return IntentBook
	case IntentConfirm:
		return IntentConfirm
	case IntentCancel:
		return IntentCancel
	default:
		return IntentOther
	}
}

// decodeClassification pulls the first JSON object out of a model reply
// (models sometimes wrap it in prose or code fences) and sanitizes it.
func decodeClassification(text string) (Classification, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Classification{}, errors.New("conversation: no JSON object in classifier output")
	}

	var wire wireClassification
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return Classification{}, err
	}

	return Classification{
		Intent: parseIntent(sanitizeField(wire.Intent)),
		Answer: sanitizeField(wire.Answer),
		Name:   sanitizeField(wire.Name),
		Date:   sanitizeField(wire.Date),
		Time:   sanitizeField(wire.Time),
		Source: SourceLLM,
	}, nil
}
