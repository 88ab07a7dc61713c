package mlscore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiConfig holds configuration for the Gemini category scorer.
type GeminiConfig struct {
	APIKey        string
	ModelName     string
	RetryAttempts uint
	Logger        *log.Logger
}

func NewGeminiConfig() GeminiConfig {
	return GeminiConfig{
		RetryAttempts: 3,
	}
}

func (c GeminiConfig) WithAPIKey(apiKey string) GeminiConfig {
	c.APIKey = apiKey
	return c
}
func (c GeminiConfig) WithModelName(modelName string) GeminiConfig {
	c.ModelName = modelName
	return c
}
func (c GeminiConfig) WithRetryAttempts(attempts uint) GeminiConfig {
	c.RetryAttempts = attempts
	return c
}
func (c GeminiConfig) WithLogger(logger *log.Logger) GeminiConfig {
	c.Logger = logger
	return c
}

func (c GeminiConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("gemini api key is required")
	}
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.RetryAttempts == 0 {
		return fmt.Errorf("retry attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// GeminiScorer predicts categories with a Gemini model constrained to a
// JSON response schema.
type GeminiScorer struct {
	config GeminiConfig
	client *genai.Client
	model  *genai.GenerativeModel
	logger *log.Logger
}

func NewGeminiScorer(ctx context.Context, config GeminiConfig) (*GeminiScorer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(config.ModelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"category": {Type: genai.TypeString},
			"score":    {Type: genai.TypeNumber},
		},
		Required: []string{"category", "score"},
	}

	return &GeminiScorer{
		config: config,
		client: client,
		model:  model,
		logger: config.Logger,
	}, nil
}

func (s *GeminiScorer) ScoreCategory(ctx context.Context, input Input) (*Result, error) {
	text := input.CombinedText()
	if text == "" {
		return &Result{Category: DefaultCategory, Score: 0, Confidence: ConfidenceFromScore(0)}, nil
	}

	prompt := fmt.Sprintf(
		"Categorize this bank transaction and estimate your confidence as a probability between 0 and 1.\n\nTransaction: %s",
		text)
	if len(input.Categories) > 0 {
		prompt += "\n\nAllowed categories:"
		for _, c := range input.Categories {
			prompt += "\n- " + c
		}
	}

	var result *Result
	start := time.Now()
	err := retry.Do(
		func() error {
			resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
			if err != nil {
				return fmt.Errorf("failed to generate prediction: %w", err)
			}
			parsed, err := parseGeminiResponse(resp, input.Categories)
			if err != nil {
				return err
			}
			result = parsed
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.config.RetryAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn("Retrying Gemini scoring request", "attempt", n+1, "max_attempts", s.config.RetryAttempts, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get Gemini prediction: %w", err)
	}

	s.logger.Debug("Scored transaction category",
		"category", result.Category, "score", result.Score,
		"model", s.config.ModelName, "duration", time.Since(start))
	return result, nil
}

func (s *GeminiScorer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func parseGeminiResponse(resp *genai.GenerateContentResponse, categories []string) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates returned from Gemini API")
	}
	var raw string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw += string(text)
		}
	}
	if raw == "" {
		return nil, fmt.Errorf("no text content in Gemini response")
	}

	var args scoreArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON in Gemini response: %w", err)
	}
	if args.Category == "" {
		return nil, fmt.Errorf("category is required")
	}
	if args.Score < 0 || args.Score > 1 {
		return nil, fmt.Errorf("score %v is outside [0, 1]", args.Score)
	}
	if len(categories) > 0 && !containsFold(categories, args.Category) {
		return nil, fmt.Errorf("category '%s' is not an allowed value", args.Category)
	}
	return &Result{
		Category:   args.Category,
		Score:      args.Score,
		Confidence: ConfidenceFromScore(args.Score),
	}, nil
}
