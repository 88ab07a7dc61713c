// Package promo classifies SMS messages as promotional/marketing noise so
// they can be tagged before entering the transaction pipeline. English
// keywords match whole words case-insensitively; Arabic keywords match as
// case-sensitive substrings.
package promo

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/lox/sms-ledger/internal/types"
)

// Result is the structured classification outcome for one message.
type Result struct {
	Skip            bool
	Reason          string
	MatchedKeywords []string
	Confidence      types.Confidence
}

// keywordFile is the YAML shape for custom keyword sets.
type keywordFile struct {
	English []string `yaml:"english"`
	Arabic  []string `yaml:"arabic"`
}

// snapshot is an immutable compiled keyword set. Classification reads one
// snapshot for its whole run; mutations build and swap a new one.
type snapshot struct {
	english  []string
	arabic   []string
	patterns []*regexp.Regexp
}

func newSnapshot(english, arabic map[string]struct{}) *snapshot {
	s := &snapshot{
		english: sortedKeys(english),
		arabic:  sortedKeys(arabic),
	}
	s.patterns = make([]*regexp.Regexp, len(s.english))
	for i, kw := range s.english {
		s.patterns[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(strings.ToLower(kw)) + `\b`)
	}
	return s
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Classifier detects promotional messages using late-bound keyword sets.
type Classifier struct {
	logger *log.Logger
	active atomic.Pointer[snapshot]
}

// NewClassifier builds a classifier from a keywords YAML file. A missing
// or empty file silently falls back to the built-in default keyword sets.
func NewClassifier(keywordsFile string, logger *log.Logger) *Classifier {
	c := &Classifier{logger: logger}

	english, arabic := defaultKeywords()
	if keywordsFile != "" {
		if fileEnglish, fileArabic, err := loadKeywords(keywordsFile); err != nil {
			logger.Warn("Failed to load promo keywords, using defaults", "path", keywordsFile, "error", err)
		} else {
			english, arabic = fileEnglish, fileArabic
		}
	}

	c.active.Store(newSnapshot(english, arabic))
	logger.Info("Initialized promo classifier",
		"english_keywords", len(english),
		"arabic_keywords", len(arabic))
	return c
}

func loadKeywords(path string) (map[string]struct{}, map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var kf keywordFile
	if err := yaml.Unmarshal(data, &kf); err != nil {
		return nil, nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if len(kf.English) == 0 && len(kf.Arabic) == 0 {
		return nil, nil, fmt.Errorf("keyword file defines no keywords")
	}
	return toSet(kf.English), toSet(kf.Arabic), nil
}

func toSet(keywords []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			set[kw] = struct{}{}
		}
	}
	return set
}

// Classify scores one SMS. Zero keyword matches means not promotional at
// high confidence; 1, 2, and 3+ matches map to low, medium, and high
// confidence promotional verdicts.
func (c *Classifier) Classify(sms string) Result {
	trimmed := strings.TrimSpace(sms)
	if trimmed == "" {
		return Result{Skip: false, Reason: "Invalid input", Confidence: types.ConfidenceLow}
	}

	matched := c.findMatches(trimmed)
	if len(matched) == 0 {
		return Result{
			Skip:       false,
			Reason:     "No promotional keywords detected",
			Confidence: types.ConfidenceHigh,
		}
	}

	confidence := types.ConfidenceLow
	switch {
	case len(matched) >= 3:
		confidence = types.ConfidenceHigh
	case len(matched) == 2:
		confidence = types.ConfidenceMedium
	}

	shown := matched
	if len(shown) > 3 {
		shown = shown[:3]
	}
	reason := fmt.Sprintf("Promotional message detected (keywords: %s", strings.Join(shown, ", "))
	if len(matched) > 3 {
		reason += fmt.Sprintf(" (and %d more)", len(matched)-3)
	}
	reason += ")"

	return Result{
		Skip:            true,
		Reason:          reason,
		MatchedKeywords: matched,
		Confidence:      confidence,
	}
}

// IsPromotional is the boolean shortcut used by the state classifier.
func (c *Classifier) IsPromotional(sms string) bool {
	return c.Classify(sms).Skip
}

func (c *Classifier) findMatches(text string) []string {
	snap := c.active.Load()
	lower := strings.ToLower(text)

	var matched []string
	for i, kw := range snap.english {
		if snap.patterns[i].MatchString(lower) {
			matched = append(matched, kw)
		}
	}
	for _, kw := range snap.arabic {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// AddKeywords extends the active keyword sets.
func (c *Classifier) AddKeywords(english, arabic []string) {
	c.mutate(func(en, ar map[string]struct{}) {
		for _, kw := range english {
			en[kw] = struct{}{}
		}
		for _, kw := range arabic {
			ar[kw] = struct{}{}
		}
	})
	c.logger.Info("Added promo keywords", "english", len(english), "arabic", len(arabic))
}

// RemoveKeywords drops keywords from the active sets.
func (c *Classifier) RemoveKeywords(english, arabic []string) {
	c.mutate(func(en, ar map[string]struct{}) {
		for _, kw := range english {
			delete(en, kw)
		}
		for _, kw := range arabic {
			delete(ar, kw)
		}
	})
	c.logger.Info("Removed promo keywords", "english", len(english), "arabic", len(arabic))
}

// ReplaceKeywords swaps in entirely new keyword sets.
func (c *Classifier) ReplaceKeywords(english, arabic []string) {
	c.active.Store(newSnapshot(toSet(english), toSet(arabic)))
	c.logger.Info("Replaced promo keywords", "english", len(english), "arabic", len(arabic))
}

// Keywords returns the active keyword sets, sorted.
func (c *Classifier) Keywords() (english, arabic []string) {
	snap := c.active.Load()
	return append([]string(nil), snap.english...), append([]string(nil), snap.arabic...)
}

func (c *Classifier) mutate(apply func(en, ar map[string]struct{})) {
	snap := c.active.Load()
	en := toSet(snap.english)
	ar := toSet(snap.arabic)
	apply(en, ar)
	c.active.Store(newSnapshot(en, ar))
}

// defaultKeywords is the built-in fallback set. Ambiguous Arabic terms
// that can also mean "debit" are deliberately absent.
func defaultKeywords() (map[string]struct{}, map[string]struct{}) {
	english := toSet([]string{
		"offer", "discount", "sale", "enjoy", "special offer",
		"limited time", "promotion", "promo", "deal", "deals",
		"save", "saving", "cashback", "reward", "rewards",
		"exclusive", "free", "gift", "bonus", "win", "winner",
		"congratulations", "congrats", "voucher", "coupon", "redeem",
	})
	arabic := toSet([]string{
		"عرض خاص", "لفترة محدودة", "عروض",
		"توفير", "مجاني", "هدية", "مكافأة",
		"مكافآت", "حصري", "خصومات", "استمتع", "تخفيض",
		"تخفيضات", "كاش باك", "قسيمة", "كوبون",
		"مبروك", "فائز", "اربح", "جائزة", "وفر الآن",
		"احصل على", "فرصة",
	})
	return english, arabic
}
