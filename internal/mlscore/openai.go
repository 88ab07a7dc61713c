package mlscore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/exp/slices"
)

// OpenAIConfig holds configuration for the OpenAI-compatible scorer.
// BaseURL lets it point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
	Logger      *log.Logger
}

func NewOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		MaxAttempts: 3,
	}
}

func (c OpenAIConfig) WithAPIKey(apiKey string) OpenAIConfig {
	c.APIKey = apiKey
	return c
}
func (c OpenAIConfig) WithBaseURL(baseURL string) OpenAIConfig {
	c.BaseURL = baseURL
	return c
}
func (c OpenAIConfig) WithModel(model string) OpenAIConfig {
	c.Model = model
	return c
}
func (c OpenAIConfig) WithMaxAttempts(attempts int) OpenAIConfig {
	c.MaxAttempts = attempts
	return c
}
func (c OpenAIConfig) WithLogger(logger *log.Logger) OpenAIConfig {
	c.Logger = logger
	return c
}

func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be greater than 0")
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	return nil
}

// OpenAIScorer predicts categories through a tool-calling loop: the
// model must call score_category, and invalid calls are fed back as
// correction messages until the attempt budget runs out.
type OpenAIScorer struct {
	config OpenAIConfig
	client *openai.Client
	logger *log.Logger
}

func NewOpenAIScorer(config OpenAIConfig) (*OpenAIScorer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	return &OpenAIScorer{
		config: config,
		client: openai.NewClientWithConfig(cfg),
		logger: config.Logger,
	}, nil
}

type scoreArgs struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

func (s *OpenAIScorer) ScoreCategory(ctx context.Context, input Input) (*Result, error) {
	text := input.CombinedText()
	if text == "" {
		return &Result{Category: DefaultCategory, Score: 0, Confidence: ConfidenceFromScore(0)}, nil
	}

	tool := scoreTool(input.Categories)
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: "You are a bank transaction categorizer. You must call the score_category function with the most likely spending category and your probability estimate. Do not explain your reasoning.",
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: fmt.Sprintf("Categorize this transaction text:\n\n%s", text),
		},
	}
	chatMessages := slices.Clone(messages)

	var lastError error
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		s.logger.Debug("Running scoring attempt", "attempt", attempt, "model", s.config.Model)

		resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:      s.config.Model,
			Messages:   chatMessages,
			Tools:      []openai.Tool{tool},
			ToolChoice: "auto",
		})
		if err != nil {
			lastError = err
			continue
		}
		if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
			lastError = fmt.Errorf("no tool call in response")
			continue
		}

		toolCall := resp.Choices[0].Message.ToolCalls[0]
		result, err := parseScoreCall(toolCall, input.Categories)
		if err == nil {
			s.logger.Debug("Scored transaction category",
				"category", result.Category, "score", result.Score)
			return result, nil
		}
		lastError = err

		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			Content: fmt.Sprintf(
				"Previous tool call arguments:\n%s\nError: %s\nPlease correct your response using only allowed values.",
				toolCall.Function.Arguments, err),
		})
	}

	return nil, fmt.Errorf("failed to get valid score after %d attempts: %w", s.config.MaxAttempts, lastError)
}

func (s *OpenAIScorer) Close() error { return nil }

func scoreTool(categories []string) openai.Tool {
	categoryParam := map[string]any{
		"type":        "string",
		"description": "The spending category of the transaction",
	}
	if len(categories) > 0 {
		categoryParam["enum"] = categories
	}
	f := openai.FunctionDefinition{
		Name:        "score_category",
		Description: "Report the predicted category and probability for a bank transaction",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"category": categoryParam,
				"score": map[string]any{
					"type":        "number",
					"description": "Probability of the prediction between 0 and 1",
				},
			},
			"required": []string{"category", "score"},
		},
		Strict: true,
	}
	return openai.Tool{Type: openai.ToolTypeFunction, Function: &f}
}

func parseScoreCall(toolCall openai.ToolCall, categories []string) (*Result, error) {
	if toolCall.Function.Name != "score_category" {
		return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
	}
	var args scoreArgs
	if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON in tool call arguments: %w", err)
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

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
