package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/barber-booking-bot/internal/catalog"
	appconfig "github.com/wolfman30/barber-booking-bot/internal/config"
	"github.com/wolfman30/barber-booking-bot/internal/nlu"
	"github.com/wolfman30/barber-booking-bot/pkg/logging"
)

// BuildExtractor wires the NLU tier named by NLU_PROVIDER. Gemini falls back
// to Bedrock when BEDROCK_MODEL_ID is also set. A provider without
// credentials degrades to nlu.Disabled so the keyword dialogue keeps working.
// The returned func releases provider clients.
func BuildExtractor(ctx context.Context, cfg *appconfig.Config, cat *catalog.Catalog, loader *AWSLoader, rec nlu.Recorder, logger *logging.Logger) (nlu.Extractor, func(), error) {
	noop := func() {}

	var (
		client  nlu.LLMClient
		closers []func()
	)
	bedrock := func() (nlu.LLMClient, error) {
		awsCfg, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return nlu.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	}

	switch cfg.NLUProvider {
	case "", "none", "disabled", "off":
		logger.Info("nlu disabled")
		return nlu.Disabled{}, noop, nil
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("NLU_PROVIDER=gemini but GEMINI_API_KEY is empty; nlu disabled")
			return nlu.Disabled{}, noop, nil
		}
		gemini, err := nlu.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		closers = append(closers, func() { _ = gemini.Close() })
		client = gemini
		if strings.TrimSpace(cfg.BedrockModelID) != "" {
			fallback, err := bedrock()
			if err != nil {
				logger.Warn("bedrock fallback unavailable", "error", err)
			} else {
				client = nlu.NewFallbackLLMClient(gemini, fallback, logger.Logger)
			}
		}
	case "bedrock":
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			logger.Warn("NLU_PROVIDER=bedrock but BEDROCK_MODEL_ID is empty; nlu disabled")
			return nlu.Disabled{}, noop, nil
		}
		br, err := bedrock()
		if err != nil {
			return nil, noop, err
		}
		client = br
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown NLU_PROVIDER %q", cfg.NLUProvider)
	}

	opts := []nlu.ExtractorOption{
		nlu.WithTimeout(cfg.NLUTimeout),
		nlu.WithLogger(logger.Logger),
		nlu.WithBusinessName(cfg.BusinessName),
	}
	if rec != nil {
		opts = append(opts, nlu.WithRecorder(rec))
	}
	logger.Info("nlu enabled", "provider", cfg.NLUProvider, "fallback", cfg.BedrockModelID != "" && cfg.NLUProvider == "gemini")
	return nlu.NewLLMExtractor(client, cat, opts...), func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// Gate builds the reliability gate from NLU_CONFIDENCE_THRESHOLD.
func Gate(cfg *appconfig.Config) nlu.Gate {
	g := nlu.DefaultGate()
	if cfg.NLUConfidenceThreshold > 0 && cfg.NLUConfidenceThreshold < 1 {
		g.Threshold = cfg.NLUConfidenceThreshold
	}
	return g
}
