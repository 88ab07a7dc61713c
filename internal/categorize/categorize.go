// Package categorize assigns categories, subcategories and tags to
// transaction records from a reloadable YAML rule file.
//
// Rules come in two formats. Direct rules carry one of match (exact
// merchant), match_regex or match_tag, tried in that precedence across
// the whole file. Legacy category blocks carry merchant_exact,
// merchant_fuzzy and keyword lists and are consulted only when no
// direct rule fires. Everything else falls back to Uncategorized.
package categorize

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/log"
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"gopkg.in/yaml.v3"

	"github.com/lox/sms-ledger/internal/types"
)

// DefaultFuzzyThreshold is the minimum token-sort similarity (0-100)
// for a legacy fuzzy merchant match.
const DefaultFuzzyThreshold = 80

// substringScore is assigned when a fuzzy merchant name appears
// verbatim inside the transaction merchant.
const substringScore = 90

// Rule is a direct-format categorization rule.
type Rule struct {
	Match       string   `yaml:"match"`
	MatchRegex  string   `yaml:"match_regex"`
	MatchTag    string   `yaml:"match_tag"`
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory"`
	Tags        []string `yaml:"tags"`

	re *regexp.Regexp
}

// LegacyRule is a category block in the original rules format.
type LegacyRule struct {
	Category      string   `yaml:"category"`
	Subcategory   string   `yaml:"subcategory"`
	Tags          []string `yaml:"tags"`
	MerchantExact []string `yaml:"merchant_exact"`
	MerchantFuzzy []string `yaml:"merchant_fuzzy"`
	Keywords      struct {
		English []string `yaml:"english"`
		Arabic  []string `yaml:"arabic"`
	} `yaml:"keywords"`
}

// Fallback is applied when nothing matches.
type Fallback struct {
	Category    string   `yaml:"category"`
	Subcategory string   `yaml:"subcategory"`
	Tags        []string `yaml:"tags"`
}

type ruleSet struct {
	Rules      []Rule       `yaml:"rules"`
	Categories []LegacyRule `yaml:"categories"`
	Fallback   Fallback     `yaml:"fallback"`
}

// Categorizer matches transaction records against the active rule set.
// The rule set swaps atomically on reload; a failed reload keeps the
// previous rules.
type Categorizer struct {
	logger         *log.Logger
	path           string
	FuzzyThreshold int

	rules atomic.Pointer[ruleSet]
}

// New loads rules from a YAML file. A file with neither direct rules
// nor legacy categories is rejected.
func New(path string, logger *log.Logger) (*Categorizer, error) {
	c := &Categorizer{logger: logger, path: path, FuzzyThreshold: DefaultFuzzyThreshold}
	rs, err := loadRules(path, logger)
	if err != nil {
		return nil, err
	}
	c.rules.Store(rs)
	logger.Info("Loaded categorization rules",
		"rules", len(rs.Rules), "legacy_categories", len(rs.Categories), "path", path)
	return c, nil
}

// LoadRules replaces the active rules at runtime. On any error the
// previous rules stay in effect and the error is returned.
func (c *Categorizer) LoadRules(path string) error {
	if path == "" {
		path = c.path
	}
	rs, err := loadRules(path, c.logger)
	if err != nil {
		c.logger.Error("Keeping previous categorization rules", "error", err)
		return err
	}
	c.path = path
	c.rules.Store(rs)
	c.logger.Info("Reloaded categorization rules", "rules", len(rs.Rules))
	return nil
}

func loadRules(path string, logger *log.Logger) (*ruleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var rs ruleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("invalid YAML in rules file %s: %w", path, err)
	}
	if len(rs.Rules) == 0 && len(rs.Categories) == 0 {
		return nil, fmt.Errorf("rules file %s has no rules or categories", path)
	}

	// Compile regex rules up front; a bad pattern disables that rule
	// only.
	for i := range rs.Rules {
		if rs.Rules[i].MatchRegex == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + rs.Rules[i].MatchRegex)
		if err != nil {
			logger.Warn("Skipping rule with invalid regex",
				"pattern", rs.Rules[i].MatchRegex, "error", err)
			continue
		}
		rs.Rules[i].re = re
	}

	if rs.Fallback.Category == "" {
		rs.Fallback.Category = "Uncategorized"
	}
	if rs.Fallback.Subcategory == "" {
		rs.Fallback.Subcategory = "General"
	}
	return &rs, nil
}

// Categorize assigns a category to one record. The record's existing
// tags are preserved; rule tags are unioned in.
func (c *Categorizer) Categorize(record types.TransactionRecord) types.TransactionRecord {
	rs := c.rules.Load()
	merchant := record.NormalizedMerchant
	if merchant == "" {
		merchant = record.Payee
	}
	merchantLower := strings.ToLower(strings.TrimSpace(merchant))

	if cat, sub, tags, ok := matchDirect(rs, merchantLower, record.Tags); ok {
		return apply(record, cat, sub, tags)
	}
	if merchantLower != "" {
		if cat, sub, tags, ok := c.matchLegacy(rs, merchant, merchantLower); ok {
			return apply(record, cat, sub, tags)
		}
	}

	c.logger.Debug("Fallback categorization", "payee", record.Payee)
	return apply(record, rs.Fallback.Category, rs.Fallback.Subcategory, rs.Fallback.Tags)
}

// CategorizeBatch categorizes records in order.
func (c *Categorizer) CategorizeBatch(records []types.TransactionRecord) []types.TransactionRecord {
	out := make([]types.TransactionRecord, len(records))
	for i, r := range records {
		out[i] = c.Categorize(r)
	}
	c.logger.Info("Categorized batch", "count", len(out))
	return out
}

// KnownCategories returns the distinct category names in the active
// rule set, in file order, fallback last.
func (c *Categorizer) KnownCategories() []string {
	rs := c.rules.Load()
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, rule := range rs.Rules {
		add(rule.Category)
	}
	for _, rule := range rs.Categories {
		add(rule.Category)
	}
	add(rs.Fallback.Category)
	return names
}

// matchDirect tries direct rules in three passes so exact matches beat
// regex matches, which beat tag matches, regardless of file order.
func matchDirect(rs *ruleSet, merchantLower string, recordTags []string) (string, string, []string, bool) {
	if merchantLower != "" {
		for _, rule := range rs.Rules {
			if rule.Match != "" && strings.ToLower(strings.TrimSpace(rule.Match)) == merchantLower {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
		for _, rule := range rs.Rules {
			if rule.re != nil && rule.re.MatchString(merchantLower) {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
	}
	for _, rule := range rs.Rules {
		if rule.MatchTag == "" {
			continue
		}
		for _, tag := range recordTags {
			if strings.EqualFold(tag, rule.MatchTag) {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
	}
	return "", "", nil, false
}

func (c *Categorizer) matchLegacy(rs *ruleSet, merchant, merchantLower string) (string, string, []string, bool) {
	// Exact merchant names first.
	for _, rule := range rs.Categories {
		for _, exact := range rule.MerchantExact {
			if strings.ToLower(strings.TrimSpace(exact)) == merchantLower {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
	}

	// Fuzzy merchant names: best score wins, substring presence boosts.
	bestScore := 0
	var best *LegacyRule
	for i := range rs.Categories {
		rule := &rs.Categories[i]
		for _, name := range rule.MerchantFuzzy {
			nameLower := strings.ToLower(strings.TrimSpace(name))
			score := fuzzyScore(merchantLower, nameLower)
			if strings.Contains(merchantLower, nameLower) && score < substringScore {
				score = substringScore
			}
			if score >= c.FuzzyThreshold && score > bestScore {
				bestScore = score
				best = rule
			}
		}
	}
	if best != nil {
		c.logger.Debug("Fuzzy merchant match", "merchant", merchant, "score", bestScore)
		return best.Category, best.Subcategory, best.Tags, true
	}

	// Keywords: English case-insensitive, Arabic verbatim.
	for _, rule := range rs.Categories {
		for _, kw := range rule.Keywords.English {
			if strings.Contains(merchantLower, strings.ToLower(kw)) {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
		for _, kw := range rule.Keywords.Arabic {
			if strings.Contains(merchant, kw) {
				return rule.Category, rule.Subcategory, rule.Tags, true
			}
		}
	}
	return "", "", nil, false
}

// fuzzyScore takes the best of the three similarity measures so word
// reordering, extra branch words, and partial overlaps all count.
func fuzzyScore(a, b string) int {
	score := fuzzy.TokenSortRatio(a, b)
	if s := fuzzy.TokenSetRatio(a, b); s > score {
		score = s
	}
	if s := fuzzy.PartialRatio(a, b); s > score {
		score = s
	}
	return score
}

// apply sets the category and unions rule tags into the record's tags,
// keeping existing order and dropping duplicates.
func apply(record types.TransactionRecord, category, subcategory string, tags []string) types.TransactionRecord {
	record.Category = category
	record.Subcategory = subcategory

	seen := make(map[string]bool, len(record.Tags)+len(tags))
	merged := make([]string, 0, len(record.Tags)+len(tags))
	for _, t := range record.Tags {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	for _, t := range tags {
		if !seen[t] {
			seen[t] = true
			merged = append(merged, t)
		}
	}
	record.Tags = merged
	return record
}
