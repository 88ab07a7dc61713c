// Package template extracts structured transaction fields from SMS text
// using per-bank ordered regex templates.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/lox/sms-ledger/internal/card"
	"github.com/lox/sms-ledger/internal/numerals"
	"github.com/lox/sms-ledger/internal/types"
)

// fieldPattern is one compiled field extractor. A pattern that failed to
// compile keeps re nil and never matches; the failure is reported at load
// time but does not reject the template (per-field degradation).
type fieldPattern struct {
	field string
	re    *regexp.Regexp
}

// Template is a named set of field extraction patterns for one bank.
type Template struct {
	Name           string
	RequiredFields []string
	patterns       []fieldPattern
}

type bankTemplates struct {
	id        string
	templates []Template
}

// config is an immutable snapshot of all loaded templates. Banks and
// templates keep file order so best-match iteration is stable.
type config struct {
	banks []bankTemplates
	index map[string]*bankTemplates
}

// Engine applies bank templates to SMS messages and selects the best
// extraction across all candidates.
type Engine struct {
	logger *log.Logger
	path   string

	// UseCardEnhancement controls the card-suffix fallback pass when a
	// template did not extract one itself.
	UseCardEnhancement bool

	cfg atomic.Pointer[config]
}

// NewEngine loads templates from a YAML file mapping bank IDs to ordered
// template lists. Malformed configuration is a hard load error.
func NewEngine(path string, logger *log.Logger) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	e, err := NewEngineFromData(data, logger)
	if err != nil {
		return nil, err
	}
	e.path = path
	return e, nil
}

// NewEngineFromData builds an engine from raw YAML template data.
func NewEngineFromData(data []byte, logger *log.Logger) (*Engine, error) {
	cfg, err := parseConfig(data, logger)
	if err != nil {
		return nil, err
	}
	e := &Engine{logger: logger, UseCardEnhancement: true}
	e.cfg.Store(cfg)
	logger.Info("Loaded SMS parsing templates", "banks", len(cfg.banks))
	return e, nil
}

// Reload replaces the active templates, optionally from a new path. On
// error the previous snapshot stays active.
func (e *Engine) Reload(path string) error {
	if path == "" {
		path = e.path
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read templates file: %w", err)
	}
	cfg, err := parseConfig(data, e.logger)
	if err != nil {
		return err
	}
	e.path = path
	e.cfg.Store(cfg)
	e.logger.Info("Reloaded SMS parsing templates", "banks", len(cfg.banks))
	return nil
}

// Banks returns the loaded bank IDs in file order.
func (e *Engine) Banks() []string {
	cfg := e.cfg.Load()
	ids := make([]string, len(cfg.banks))
	for i, b := range cfg.banks {
		ids[i] = b.id
	}
	return ids
}

// TemplateNames returns the template names for one bank, in file order.
func (e *Engine) TemplateNames(bankID string) ([]string, error) {
	cfg := e.cfg.Load()
	bank, ok := cfg.index[strings.ToLower(bankID)]
	if !ok {
		return nil, fmt.Errorf("bank %q not found in templates", bankID)
	}
	names := make([]string, len(bank.templates))
	for i, t := range bank.templates {
		names[i] = t.Name
	}
	return names, nil
}

// ParseSMS extracts transaction fields from one message. With a known
// bank hint only that bank's templates are tried, otherwise all banks.
// The call is total: any input yields a result, possibly empty at low
// confidence with the raw text preserved.
func (e *Engine) ParseSMS(sms, bankID string) types.ExtractedFields {
	trimmed := strings.TrimSpace(sms)
	if trimmed == "" {
		e.logger.Warn("Empty SMS message provided")
		return emptyResult(bankID, sms)
	}

	cfg := e.cfg.Load()
	candidates := cfg.banks
	if bankID != "" {
		// Hints are matched case-insensitively; the configured bank ID
		// is the canonical form from here on.
		bank, ok := cfg.index[strings.ToLower(bankID)]
		if !ok {
			e.logger.Warn("Bank not found in templates", "bank", bankID)
			return emptyResult(bankID, trimmed)
		}
		bankID = bank.id
		candidates = []bankTemplates{*bank}
	}

	// Templates match against the numeral-normalized message; extracted
	// values are normalized again individually (idempotent).
	normalized := numerals.Normalize(trimmed)

	var best *types.ExtractedFields
	bestScore := 0

	for _, bank := range candidates {
		for _, tmpl := range bank.templates {
			extracted := e.applyTemplate(normalized, tmpl)

			if e.UseCardEnhancement && extracted[types.FieldCardSuffix] == "" {
				if suffix, ok := card.ExtractSuffix(normalized); ok {
					extracted[types.FieldCardSuffix] = suffix
				}
			}

			confidence := calculateConfidence(extracted, tmpl.RequiredFields)
			score := 0
			for _, v := range extracted {
				if v != "" {
					score++
				}
			}

			// Higher score wins; on a tie a high-confidence challenger
			// replaces the running best. Remaining ties fall to file order.
			if score > bestScore || (score == bestScore && confidence == types.ConfidenceHigh) {
				bestScore = score
				best = &types.ExtractedFields{
					Fields:          extracted,
					Confidence:      confidence,
					MatchedBank:     bank.id,
					MatchedTemplate: tmpl.Name,
					SMSText:         trimmed,
				}
			}
		}
	}

	if best == nil {
		preview := trimmed
		if len(preview) > 50 {
			preview = preview[:50]
		}
		e.logger.Warn("No template matched SMS", "sms", preview)
		result := emptyResult(bankID, trimmed)
		if bankID == "" {
			result.MatchedBank = "unknown"
		}
		return result
	}
	if bankID != "" {
		best.MatchedBank = bankID
	}

	e.logger.Debug("Parsed SMS",
		"bank", best.MatchedBank,
		"template", best.MatchedTemplate,
		"confidence", best.Confidence)
	return *best
}

// ParseBatch applies ParseSMS across parallel message and bank-hint
// lists. A nil bankIDs slice means no hints; a length mismatch is a hard
// input error.
func (e *Engine) ParseBatch(messages []string, bankIDs []string) ([]types.ExtractedFields, error) {
	if bankIDs != nil && len(bankIDs) != len(messages) {
		return nil, fmt.Errorf("bank IDs length %d does not match messages length %d", len(bankIDs), len(messages))
	}
	results := make([]types.ExtractedFields, len(messages))
	for i, sms := range messages {
		hint := ""
		if bankIDs != nil {
			hint = bankIDs[i]
		}
		results[i] = e.ParseSMS(sms, hint)
	}
	e.logger.Info("Parsed SMS batch", "messages", len(messages))
	return results, nil
}

// applyTemplate runs every field pattern independently. The result map
// has a key per template field; empty value means the pattern missed.
func (e *Engine) applyTemplate(sms string, tmpl Template) map[string]string {
	extracted := make(map[string]string, len(tmpl.patterns)+1)
	for _, fp := range tmpl.patterns {
		extracted[fp.field] = extractField(sms, fp)
	}
	return extracted
}

// extractField applies one pattern and picks the captured value: a group
// named after the field wins, otherwise the first non-empty capture.
// Patterns without capture groups extract nothing.
func extractField(sms string, fp fieldPattern) string {
	if fp.re == nil {
		return ""
	}
	m := fp.re.FindStringSubmatch(sms)
	if m == nil {
		return ""
	}
	names := fp.re.SubexpNames()
	for i, name := range names {
		if i > 0 && name == fp.field && m[i] != "" {
			return numerals.Normalize(strings.TrimSpace(m[i]))
		}
	}
	for i := 1; i < len(m); i++ {
		if m[i] != "" {
			return numerals.Normalize(strings.TrimSpace(m[i]))
		}
	}
	return ""
}

// calculateConfidence scores one template's extraction: any missing
// required field is low; all-or-all-but-one extracted is high; at least
// half is medium; anything less is low.
func calculateConfidence(extracted map[string]string, required []string) types.Confidence {
	for _, field := range required {
		if extracted[field] == "" {
			return types.ConfidenceLow
		}
	}

	total := len(extracted)
	count := 0
	for _, v := range extracted {
		if v != "" {
			count++
		}
	}

	switch {
	case count >= total-1:
		return types.ConfidenceHigh
	case count >= total/2:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}

func emptyResult(bankID, smsText string) types.ExtractedFields {
	return types.ExtractedFields{
		Fields:      map[string]string{},
		Confidence:  types.ConfidenceLow,
		MatchedBank: bankID,
		SMSText:     smsText,
	}
}
