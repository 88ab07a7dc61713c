package card

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

const testAccounts = `
"1234":
  account_id: acct_main_credit
  account_type: Credit
  interest_rate: 24.5
  label: Everyday credit card
"5678":
  account_id: acct_payroll_debit
  account_type: Debit
`

func writeAccountsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestExtractSuffix(t *testing.T) {
	tests := []struct {
		name   string
		sms    string
		suffix string
		found  bool
	}{
		{
			name:   "english ending marker",
			sms:    "Debit of EGP 150.50 from card ending 1234",
			suffix: "1234",
			found:  true,
		},
		{
			name:   "masked card number",
			sms:    "Purchase on card **** 5678 approved",
			suffix: "5678",
			found:  true,
		},
		{
			name:   "stars directly before digits",
			sms:    "Your card ****5678 was charged",
			suffix: "5678",
			found:  true,
		},
		{
			name:   "arabic card marker",
			sms:    "تم خصم ١٥٠ جنيه من بطاقة رقم ٥٦٧٨",
			suffix: "5678",
			found:  true,
		},
		{
			name:   "arabic masked card",
			sms:    "بطاقة **** ١٢٣٤ تم استخدامها",
			suffix: "1234",
			found:  true,
		},
		{
			name:  "digits embedded in longer run",
			sms:   "card 123456 used",
			found: false,
		},
		{
			name:  "no card mention",
			sms:   "Your OTP is 4921",
			found: false,
		},
		{
			name:  "empty input",
			sms:   "",
			found: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			suffix, found := ExtractSuffix(tt.sms)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.suffix, suffix)
		})
	}
}

func TestStoreLookup(t *testing.T) {
	path := writeAccountsFile(t, testAccounts)
	store, err := NewStore(path, log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	meta := store.Lookup("1234")
	assert.True(t, meta.IsKnown)
	assert.Equal(t, "acct_main_credit", meta.AccountID)
	assert.Equal(t, types.AccountCredit, meta.AccountType)
	require.NotNil(t, meta.InterestRate)
	assert.Equal(t, 24.5, *meta.InterestRate)
	assert.Equal(t, "1234", meta.CardSuffix)
}

func TestStoreLookupUnknownSuffix(t *testing.T) {
	path := writeAccountsFile(t, testAccounts)
	store, err := NewStore(path, log.New(io.Discard))
	require.NoError(t, err)

	meta := store.Lookup("9999")
	assert.False(t, meta.IsKnown)
	assert.Equal(t, "unknown_9999", meta.AccountID)
	assert.Equal(t, types.AccountUnknown, meta.AccountType)

	meta = store.Lookup("")
	assert.False(t, meta.IsKnown)
	assert.Equal(t, "unknown", meta.AccountID)
}

func TestStoreMissingFileStartsEmpty(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nope.yaml"), log.New(io.Discard))
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())

	meta := store.Lookup("1234")
	assert.False(t, meta.IsKnown)
}

func TestStoreRejectsIncompleteEntry(t *testing.T) {
	path := writeAccountsFile(t, `
"1234":
  account_type: Credit
`)
	_, err := NewStore(path, log.New(io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_id")
}

func TestStoreReloadKeepsPreviousOnError(t *testing.T) {
	path := writeAccountsFile(t, testAccounts)
	store, err := NewStore(path, log.New(io.Discard))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0644))
	assert.Error(t, store.Reload(""))

	// Previous snapshot still serves lookups
	assert.Equal(t, 2, store.Len())
	assert.True(t, store.Lookup("5678").IsKnown)
}

func TestClassify(t *testing.T) {
	path := writeAccountsFile(t, testAccounts)
	store, err := NewStore(path, log.New(io.Discard))
	require.NoError(t, err)

	meta := store.Classify("Debit of EGP 90 from card ending 5678")
	assert.True(t, meta.IsKnown)
	assert.Equal(t, "acct_payroll_debit", meta.AccountID)

	meta = store.Classify("Your balance is EGP 500")
	assert.False(t, meta.IsKnown)
	assert.Equal(t, "unknown", meta.AccountID)
}
