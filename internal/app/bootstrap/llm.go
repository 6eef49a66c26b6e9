package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/edgareichner01-sys/bot-rdv/internal/config"
	"github.com/edgareichner01-sys/bot-rdv/internal/conversation"
	"github.com/edgareichner01-sys/bot-rdv/pkg/logging"
)

// BuildLLMClient wires Gemini as the primary model and Bedrock as the
// fallback. Either may be missing. With neither configured it returns a nil
// client and the classifier runs on keywords alone. The returned close
// function is never nil.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (conversation.LLMClient, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		primary  conversation.LLMClient
		fallback conversation.LLMClient
		closeFn  = noop
	)

	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		gemini, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		primary = gemini
		closeFn = func() { _ = gemini.Close() }
		logger.Info("gemini classifier enabled", "model", cfg.GeminiModel)
	}

	if strings.TrimSpace(cfg.BedrockModelID) != "" && awsCfg != nil {
		fallback = conversation.NewBedrockLLMClient(bedrockruntime.NewFromConfig(*awsCfg))
		logger.Info("bedrock classifier enabled", "model", cfg.BedrockModelID)
	}

	switch {
	case primary != nil && fallback != nil:
		return conversation.NewFallbackLLMClient(primary, fallback, logger), closeFn, nil
	case primary != nil:
		return primary, closeFn, nil
	case fallback != nil:
		return fallback, closeFn, nil
	}
	logger.Warn("no language model configured; intent detection uses keywords only")
	return nil, closeFn, nil
}
