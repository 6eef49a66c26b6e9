package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// Intent is what the customer is trying to do with one message.
type Intent string

const (
	IntentFAQ     Intent = "FAQ"
	IntentBook    Intent = "BOOK_APPOINTMENT"
	IntentConfirm Intent = "CONFIRM"
	IntentCancel  Intent = "CANCEL"
	IntentOther   Intent = "OTHER"
)

// Classification sources, reported to metrics and logs.
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

const defaultClassifierTimeout = 8 * time.Second

// ClassifyRequest carries what the classifier may look at.
type ClassifyRequest struct {
	Message      string
	History      []ChatMessage
	FAQ          map[string]string
	BusinessName string
	Now          time.Time
}

// Classification always has the same shape, whichever path produced it.
// Empty strings mean absent.
type Classification struct {
	Intent Intent
	Answer string
	Name   string
	Date   string
	Time   string
	Source string
}

// Classifier never fails: internal errors degrade to the keyword fallback.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) Classification
}

// LLMClassifier asks a language model first and falls back to keywords.
type LLMClassifier struct {
	client  LLMClient
	model   string
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLMClassifier creates a classifier. A nil client means every message
// takes the fallback path.
func NewLLMClassifier(client LLMClient, model string, timeout time.Duration, logger *logging.Logger) *LLMClassifier {
	if timeout <= 0 {
		timeout = defaultClassifierTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMClassifier{client: client, model: model, timeout: timeout, logger: logger}
}

func (c *LLMClassifier) Classify(ctx context.Context, req ClassifyRequest) Classification {
	if c == nil || c.client == nil {
		return FallbackClassify(req.Message, req.Now)
	}

	// Suspected prompt injection never reaches the model; keywords still work.
	verdict := scanInput(req.Message)
	if verdict.blocked {
		c.logger.Warn("message held back from classifier model",
			"score", verdict.score,
			"reasons", verdict.reasons,
		)
		return FallbackClassify(req.Message, req.Now)
	}
	modelReq := req
	if verdict.cleaned != "" {
		modelReq.Message = verdict.cleaned
	}

	result, err := c.classify(ctx, modelReq)
	if err != nil {
		c.logger.Warn("intent classifier failed, using keyword fallback", "error", err)
		return FallbackClassify(req.Message, req.Now)
	}
	result.Answer = guardAnswer(result.Answer)
	return result
}

func (c *LLMClassifier) classify(ctx context.Context, req ClassifyRequest) (result Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("conversation: classifier panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:        c.model,
		System:       []string{buildClassifierPrompt(req.Now, req.BusinessName, req.FAQ)},
		Messages:     classifierMessages(req.History, req.Message),
		MaxTokens:    300,
		Temperature:  0,
		JSONResponse: true,
	})
	if err != nil {
		return Classification{}, err
	}
	if resp.Text == "" {
		return Classification{}, errors.New("conversation: empty classifier output")
	}
	return decodeClassification(resp.Text)
}

// FallbackClassify guesses the intent from keywords. Priority: cancel, book,
// FAQ, then a whole-message confirmation. Fields come from ExtractFields.
func FallbackClassify(message string, now time.Time) Classification {
	intent := IntentOther
	switch {
	case hasCancelKeyword(message):
		intent = IntentCancel
	case hasBookKeyword(message):
		intent = IntentBook
	case hasFAQKeyword(message):
		intent = IntentFAQ
	case isAffirmative(message):
		intent = IntentConfirm
	}

	f := ExtractFields(message, now)
	return Classification{
		Intent: intent,
		Name:   f.Name,
		Date:   f.Date,
		Time:   f.Time,
		Source: SourceFallback,
	}
}
