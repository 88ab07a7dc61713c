// Package mlscore assigns model-predicted categories to transactions.
// Scoring is advisory: results land in the ml_category fields next to
// the rule-based category and never overwrite it.
package mlscore

import (
	"context"
	"strings"

	"github.com/lox/sms-ledger/internal/types"
)

// Confidence thresholds on the model's probability score.
const (
	HighScoreThreshold   = 0.8
	MediumScoreThreshold = 0.6
)

// DefaultCategory is reported when there is nothing to score.
const DefaultCategory = "Uncategorized"

// Result is a single category prediction.
type Result struct {
	Category   string           `json:"ml_category"`
	Score      float64          `json:"ml_category_score"`
	Confidence types.Confidence `json:"ml_category_confidence"`
}

// Input carries the text features available for scoring.
type Input struct {
	SMSText            string
	Payee              string
	NormalizedMerchant string
	TxnType            string

	// Categories restricts predictions to this set when non-empty.
	Categories []string
}

// CombinedText joins the non-empty text features in a fixed order, the
// same representation used for every provider.
func (in Input) CombinedText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{in.SMSText, in.Payee, in.NormalizedMerchant, in.TxnType} {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// CategoryScorer predicts a transaction category with a probability
// score. A nil scorer in the pipeline disables ML scoring entirely.
type CategoryScorer interface {
	ScoreCategory(ctx context.Context, input Input) (*Result, error)
	Close() error
}

// ConfidenceFromScore buckets a probability into the confidence levels
// shared with the rest of the pipeline.
func ConfidenceFromScore(score float64) types.Confidence {
	switch {
	case score >= HighScoreThreshold:
		return types.ConfidenceHigh
	case score >= MediumScoreThreshold:
		return types.ConfidenceMedium
	}
	return types.ConfidenceLow
}
