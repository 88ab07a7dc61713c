package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lox/sms-ledger/internal/card"
	"github.com/lox/sms-ledger/internal/categorize"
	"github.com/lox/sms-ledger/internal/mlscore"
	"github.com/lox/sms-ledger/internal/pipeline"
	"github.com/lox/sms-ledger/internal/promo"
	"github.com/lox/sms-ledger/internal/schema"
	"github.com/lox/sms-ledger/internal/template"
	"github.com/lox/sms-ledger/internal/validate"
)

// SetupPipeline wires the processing stages from the common
// configuration. The categorizer is attached only when a rules file is
// configured; scorer and store are attached by the caller.
func SetupPipeline(cfg CommonConfig, logger *log.Logger) (*pipeline.Pipeline, error) {
	engine, err := template.NewEngine(cfg.TemplatesFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	engine.UseCardEnhancement = true

	var cards *card.Store
	if cfg.AccountsFile != "" {
		cards, err = card.NewStore(cfg.AccountsFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load accounts: %w", err)
		}
	} else {
		cards = card.NewEmptyStore(logger)
	}

	p := pipeline.New(
		engine,
		promo.NewClassifier(cfg.KeywordsFile, logger),
		validate.New(logger),
		schema.New(cards, logger),
		logger,
	)

	if cfg.RulesFile != "" {
		categorizer, err := categorize.New(cfg.RulesFile, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load category rules: %w", err)
		}
		p.WithCategorizer(categorizer)
	}

	return p, nil
}

// SetupScorer builds the configured category scorer, or returns nil
// when scoring is disabled.
func SetupScorer(ctx context.Context, cfg ScorerConfig, logger *log.Logger) (mlscore.CategoryScorer, error) {
	switch cfg.ScorerProvider {
	case "", "none":
		return nil, nil
	case "openai":
		return mlscore.NewOpenAIScorer(mlscore.NewOpenAIConfig().
			WithAPIKey(cfg.OpenAIKey).
			WithBaseURL(cfg.OpenAIBaseURL).
			WithModel(cfg.OpenAIModel).
			WithLogger(logger))
	case "gemini":
		return mlscore.NewGeminiScorer(ctx, mlscore.NewGeminiConfig().
			WithAPIKey(cfg.GeminiAPIKey).
			WithModelName(cfg.GeminiModel).
			WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown scorer provider: %s", cfg.ScorerProvider)
	}
}
