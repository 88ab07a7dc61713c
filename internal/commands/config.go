package commands

// CommonConfig contains configuration common to all commands
type CommonConfig struct {
	// DataDir is the path to the data directory holding the ledger
	DataDir string `help:"Path to data directory" default:"./data"`
	// TemplatesFile is the bank SMS template configuration
	TemplatesFile string `help:"Path to bank templates YAML" default:"./config/templates.yaml" env:"SMS_TEMPLATES_FILE"`
	// AccountsFile maps card suffixes to account metadata
	AccountsFile string `help:"Path to account metadata YAML" env:"SMS_ACCOUNTS_FILE"`
	// RulesFile holds categorization rules; empty disables categorization
	RulesFile string `help:"Path to category rules YAML" env:"SMS_RULES_FILE"`
	// KeywordsFile overrides the built-in promotional keyword sets
	KeywordsFile string `help:"Path to promo keywords YAML" env:"SMS_KEYWORDS_FILE"`
	// LogLevel is the logging level to use
	LogLevel string `help:"Log level (debug, info, warn, error)" default:"warn" enum:"debug,info,warn,error"`
}

// ScorerConfig contains common flag definitions for the optional ML
// category scorer
type ScorerConfig struct {
	// ScorerProvider selects the scoring backend; none disables scoring
	ScorerProvider string `help:"ML category scorer provider" default:"none" enum:"none,openai,gemini" env:"SCORER_PROVIDER"`
	// OpenAIKey is the API key for OpenAI or an OpenAI-compatible endpoint
	OpenAIKey string `help:"OpenAI API key" env:"OPENAI_API_KEY"`
	// OpenAIBaseURL points at an OpenAI-compatible endpoint such as OpenRouter
	OpenAIBaseURL string `help:"OpenAI-compatible base URL" env:"OPENAI_BASE_URL"`
	// OpenAIModel is the model used for category scoring
	OpenAIModel string `help:"OpenAI model for category scoring" default:"gpt-4o-mini" env:"OPENAI_MODEL"`
	// GeminiAPIKey is the API key for Gemini
	GeminiAPIKey string `help:"Google Gemini API key" env:"GEMINI_API_KEY"`
	// GeminiModel is the Gemini model used for category scoring
	GeminiModel string `help:"Gemini model for category scoring" default:"gemini-2.0-flash" env:"GEMINI_MODEL"`
}
