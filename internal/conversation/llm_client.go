package conversation

import "context"

// Roles used in ChatMessage. The widget sends user and assistant turns;
// system text travels in LLMRequest.System instead.
const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one conversation turn as sent to a model or kept in history.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage is reported by providers that expose it; zero otherwise.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMRequest is a single classification call. The last message is the
// visitor's new message; earlier ones are recent history.
type LLMRequest struct {
	// Model is the provider model id. Clients bound to one model ignore it.
	Model    string
	System   []string
	Messages []ChatMessage
	// MaxTokens caps the reply; zero leaves the provider default.
	MaxTokens int32
	// Temperature below zero leaves the provider default.
	Temperature float32
	// JSONResponse asks providers that support it for a bare JSON body.
	JSONResponse bool
}

// LLMResponse carries the raw model text; parsing is the classifier's job.
type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// LLMClient is a language model provider.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
