package promo

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

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	return NewClassifier("", log.New(io.Discard))
}

func TestClassifyTransactionalMessage(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("Debit of EGP 150.50 from card ending 1234 at Carrefour")
	assert.False(t, result.Skip)
	assert.Equal(t, types.ConfidenceHigh, result.Confidence)
	assert.Empty(t, result.MatchedKeywords)
}

func TestClassifySingleKeywordIsLowConfidence(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("Enjoy our new branch in Zamalek")
	assert.True(t, result.Skip)
	assert.Equal(t, types.ConfidenceLow, result.Confidence)
	assert.Equal(t, []string{"enjoy"}, result.MatchedKeywords)
}

func TestClassifyConfidenceScalesWithMatches(t *testing.T) {
	c := newTestClassifier(t)

	two := c.Classify("Get a discount on this deal today")
	assert.True(t, two.Skip)
	assert.Equal(t, types.ConfidenceMedium, two.Confidence)

	three := c.Classify("Exclusive offer: enjoy a free gift with every discount voucher")
	assert.True(t, three.Skip)
	assert.Equal(t, types.ConfidenceHigh, three.Confidence)
}

func TestClassifyArabicKeywords(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("عرض خاص لفترة محدودة احصل على هدية")
	assert.True(t, result.Skip)
	assert.Equal(t, types.ConfidenceHigh, result.Confidence)
}

func TestClassifyWordBoundaries(t *testing.T) {
	c := newTestClassifier(t)

	// "offers" inside another word must not match the "offer" keyword
	result := c.Classify("Transfer to Proffersky Ltd completed")
	assert.False(t, result.Skip)
}

func TestClassifyEmptyInput(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("   ")
	assert.False(t, result.Skip)
	assert.Equal(t, types.ConfidenceLow, result.Confidence)
	assert.Equal(t, "Invalid input", result.Reason)
}

func TestClassifyReasonTruncatesKeywordList(t *testing.T) {
	c := newTestClassifier(t)

	result := c.Classify("Win a free gift voucher and redeem your bonus reward")
	assert.True(t, result.Skip)
	assert.Greater(t, len(result.MatchedKeywords), 3)
	assert.Contains(t, result.Reason, "and")
	assert.Contains(t, result.Reason, "more")
}

func TestCustomKeywordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
english:
  - megadeal
arabic:
  - صفقة
`), 0644))

	c := NewClassifier(path, log.New(io.Discard))

	assert.True(t, c.IsPromotional("Grab this megadeal now"))
	assert.True(t, c.IsPromotional("صفقة اليوم فقط"))
	// Default keywords are replaced, not merged
	assert.False(t, c.IsPromotional("Special offer with discount"))
}

func TestInvalidKeywordFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0644))

	c := NewClassifier(path, log.New(io.Discard))
	assert.True(t, c.IsPromotional("Special offer with discount"))
}

func TestKeywordMutation(t *testing.T) {
	c := newTestClassifier(t)

	c.AddKeywords([]string{"flashsale"}, []string{"تصفية"})
	assert.True(t, c.IsPromotional("Huge flashsale this weekend"))
	assert.True(t, c.IsPromotional("تصفية نهاية الموسم"))

	c.RemoveKeywords([]string{"flashsale"}, []string{"تصفية"})
	assert.False(t, c.IsPromotional("Huge flashsale this weekend"))

	c.ReplaceKeywords([]string{"onlyword"}, nil)
	english, arabic := c.Keywords()
	assert.Equal(t, []string{"onlyword"}, english)
	assert.Empty(t, arabic)
	assert.False(t, c.IsPromotional("Special offer with discount"))
}
