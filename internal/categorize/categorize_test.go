package categorize

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/sms-ledger/internal/types"
)

const testRules = `
rules:
  - match: "Uber"
    category: "Transport"
    subcategory: "Ride Hailing"
    tags: ["Mobility"]
  - match_regex: ".*Vodafone.*"
    category: "Utilities"
    subcategory: "Telecom"
    tags: ["Recharge"]
  - match_tag: "subscription"
    category: "Entertainment"
    subcategory: "Streaming"
    tags: ["Recurring"]

categories:
  - category: "Food & Dining"
    subcategory: "Restaurants"
    tags: ["food"]
    merchant_exact:
      - "McDonald's"
    merchant_fuzzy:
      - "KFC Egypt"
    keywords:
      english: ["restaurant"]
      arabic: ["مطعم"]

fallback:
  category: "Uncategorized"
  subcategory: "General"
  tags: ["needs-review"]
`

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCategorizer(t *testing.T) *Categorizer {
	t.Helper()
	c, err := New(writeRules(t, testRules), log.New(io.Discard))
	require.NoError(t, err)
	return c
}

func record(merchant string, tags ...string) types.TransactionRecord {
	return types.TransactionRecord{ID: "t1", Payee: merchant, NormalizedMerchant: merchant, Tags: tags}
}

func TestCategorizeExactMatch(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Uber"))
	assert.Equal(t, "Transport", out.Category)
	assert.Equal(t, "Ride Hailing", out.Subcategory)
	assert.Contains(t, out.Tags, "Mobility")
}

func TestCategorizeCaseInsensitive(t *testing.T) {
	c := newTestCategorizer(t)

	for _, merchant := range []string{"UBER", "uber", "UbEr"} {
		out := c.Categorize(record(merchant))
		assert.Equal(t, "Transport", out.Category, merchant)
	}
}

func TestCategorizeRegexMatch(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Vodafone Egypt"))
	assert.Equal(t, "Utilities", out.Category)
	assert.Contains(t, out.Tags, "Recharge")
}

func TestCategorizeTagMatch(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Netflix", "subscription"))
	assert.Equal(t, "Entertainment", out.Category)
	assert.Contains(t, out.Tags, "Recurring")
	assert.Contains(t, out.Tags, "subscription")
}

func TestCategorizeExactBeatsRegex(t *testing.T) {
	path := writeRules(t, `
rules:
  - match_regex: ".*Uber.*"
    category: "Transport"
    subcategory: "General Transport"
    tags: ["Regex Match"]
  - match: "Uber"
    category: "Transport"
    subcategory: "Ride Hailing"
    tags: ["Exact Match"]
`)
	c, err := New(path, log.New(io.Discard))
	require.NoError(t, err)

	out := c.Categorize(record("Uber"))
	assert.Equal(t, "Ride Hailing", out.Subcategory)
	assert.Contains(t, out.Tags, "Exact Match")
	assert.NotContains(t, out.Tags, "Regex Match")
}

func TestCategorizeRegexBeatsTag(t *testing.T) {
	c := newTestCategorizer(t)

	// Merchant matches the Vodafone regex while also carrying the
	// subscription tag; the regex rule wins.
	out := c.Categorize(record("Vodafone Cash", "subscription"))
	assert.Equal(t, "Utilities", out.Category)
}

func TestCategorizeLegacyExact(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("McDonald's"))
	assert.Equal(t, "Food & Dining", out.Category)
	assert.Equal(t, "Restaurants", out.Subcategory)
}

func TestCategorizeLegacyFuzzy(t *testing.T) {
	c := newTestCategorizer(t)

	// Token order differs but similarity is above threshold.
	out := c.Categorize(record("Egypt KFC"))
	assert.Equal(t, "Food & Dining", out.Category)
}

func TestCategorizeLegacySubstringBoost(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("KFC Egypt New Cairo Branch 042"))
	assert.Equal(t, "Food & Dining", out.Category)
}

func TestCategorizeLegacyFuzzyTokenSet(t *testing.T) {
	c := newTestCategorizer(t)

	// Branch words interleave the configured name, so neither the
	// substring boost nor token-sort similarity reaches the threshold;
	// only the token-set measure does.
	out := c.Categorize(record("KFC New Cairo Egypt Branch"))
	assert.Equal(t, "Food & Dining", out.Category)
}

func TestCategorizeLegacyKeywords(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Abou Shakra Restaurant"))
	assert.Equal(t, "Food & Dining", out.Category)

	out = c.Categorize(record("مطعم النيل"))
	assert.Equal(t, "Food & Dining", out.Category)
}

func TestCategorizeFallback(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Totally Unknown Merchant"))
	assert.Equal(t, "Uncategorized", out.Category)
	assert.Equal(t, "General", out.Subcategory)
	assert.Contains(t, out.Tags, "needs-review")
}

func TestCategorizeMergesTags(t *testing.T) {
	c := newTestCategorizer(t)

	out := c.Categorize(record("Uber", "POS", "hsbc"))
	assert.Contains(t, out.Tags, "POS")
	assert.Contains(t, out.Tags, "hsbc")
	assert.Contains(t, out.Tags, "Mobility")
}

func TestInvalidRegexRuleSkipped(t *testing.T) {
	path := writeRules(t, `
rules:
  - match_regex: "[invalid(regex"
    category: "Invalid"
    subcategory: "Invalid"
  - match: "ValidMerchant"
    category: "Valid"
    subcategory: "Valid"
`)
	c, err := New(path, log.New(io.Discard))
	require.NoError(t, err)

	out := c.Categorize(record("ValidMerchant"))
	assert.Equal(t, "Valid", out.Category)
}

func TestLoadRulesKeepsPreviousOnError(t *testing.T) {
	c := newTestCategorizer(t)

	assert.Error(t, c.LoadRules("/nonexistent/rules.yaml"))
	out := c.Categorize(record("Uber"))
	assert.Equal(t, "Transport", out.Category)

	// A structurally empty file is also rejected.
	empty := writeRules(t, "unrelated_key:\n  - data\n")
	assert.Error(t, c.LoadRules(empty))
	out = c.Categorize(record("Uber"))
	assert.Equal(t, "Transport", out.Category)
}

func TestLoadRulesSwapsAtRuntime(t *testing.T) {
	c := newTestCategorizer(t)

	path := writeRules(t, `
rules:
  - match: "Uber"
    category: "Mobility Services"
    subcategory: "Rides"
`)
	require.NoError(t, c.LoadRules(path))

	out := c.Categorize(record("Uber"))
	assert.Equal(t, "Mobility Services", out.Category)
}

func TestNewRejectsEmptyRules(t *testing.T) {
	_, err := New(writeRules(t, "fallback:\n  category: X\n"), log.New(io.Discard))
	assert.Error(t, err)
}

func TestKnownCategories(t *testing.T) {
	c := newTestCategorizer(t)

	assert.Equal(t, []string{
		"Transport",
		"Utilities",
		"Entertainment",
		"Food & Dining",
		"Uncategorized",
	}, c.KnownCategories())
}
