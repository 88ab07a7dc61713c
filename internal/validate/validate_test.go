package validate

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"

	"github.com/lox/sms-ledger/internal/types"
)

func newTestValidator() *Validator {
	return New(log.New(io.Discard))
}

func TestValidateCleanTransaction(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{
		Fields: map[string]string{
			"amount":      "1,500.75",
			"currency":    "EGP",
			"date":        "15/03/2024",
			"merchant":    "Carrefour",
			"card_suffix": "1234",
		},
		Confidence: types.ConfidenceMedium,
	})

	assert.Equal(t, "1500.75", txn.Amount)
	assert.Equal(t, "EGP", txn.Currency)
	assert.Equal(t, "Carrefour", txn.Payee)
	assert.Empty(t, txn.Warnings)
	assert.Equal(t, types.ConfidenceHigh, txn.Confidence)
}

func TestValidateAliases(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{
		"amount":           "100",
		"transaction_type": "POS",
		"matched_bank":     "hsbc",
	}})

	assert.Equal(t, "POS", txn.TxnType)
	assert.Equal(t, "hsbc", txn.BankID)
}

func TestValidateMissingAmountIsCritical(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{
		Fields:     map[string]string{"currency": "EGP", "date": "15/03/2024"},
		Confidence: types.ConfidenceHigh,
	})

	assert.Contains(t, txn.Warnings, "Missing required field: amount")
	assert.Equal(t, types.ConfidenceLow, txn.Confidence)
}

func TestValidateUnparsableAmountKeptVerbatim(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{
		"amount":   "abc",
		"currency": "EGP",
		"date":     "15/03/2024",
	}})

	assert.Equal(t, "abc", txn.Amount)
	assert.Contains(t, txn.Warnings, "Invalid numeric format for amount: abc")
	assert.Equal(t, types.ConfidenceLow, txn.Confidence)
}

func TestValidateSingleWarningIsMedium(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{
		"amount":   "100.00",
		"currency": "XXX",
		"date":     "15/03/2024",
	}})

	assert.Len(t, txn.Warnings, 1)
	assert.Equal(t, types.ConfidenceMedium, txn.Confidence)
}

func TestValidateTwoWarningsIsLow(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{
		"amount":      "100.00",
		"currency":    "XXX",
		"date":        "15/03/2024",
		"card_suffix": "12",
	}})

	assert.Len(t, txn.Warnings, 2)
	assert.Equal(t, types.ConfidenceLow, txn.Confidence)
}

func TestValidateArabicCurrency(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{
		"amount":   "150.50",
		"currency": "جنيه",
		"date":     "2024-03-15",
	}})

	assert.Empty(t, txn.Warnings)
	assert.Equal(t, types.ConfidenceHigh, txn.Confidence)
}

func TestValidateNegativeAmountWarns(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{Fields: map[string]string{"amount": "-50"}})

	assert.Contains(t, txn.Warnings, "Amount must be positive")
	// Missing currency makes it two warnings in total.
	assert.Equal(t, types.ConfidenceLow, txn.Confidence)
}

func TestValidateMissingDateKeepsIncomingConfidence(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{
		Fields:     map[string]string{"amount": "100", "currency": "EGP"},
		Confidence: types.ConfidenceMedium,
	})

	assert.Empty(t, txn.Warnings)
	assert.Equal(t, types.ConfidenceMedium, txn.Confidence)
}

func TestValidateUnknownStateNormalized(t *testing.T) {
	v := newTestValidator()

	txn := v.Validate(Input{
		Fields:           map[string]string{"amount": "100"},
		TransactionState: types.TransactionState("WEIRD"),
	})
	assert.Equal(t, types.StateUnknown, txn.TransactionState)

	txn = v.Validate(Input{
		Fields:           map[string]string{"amount": "100"},
		TransactionState: types.StateDeclined,
	})
	assert.Equal(t, types.StateDeclined, txn.TransactionState)
}

func TestValidateBatch(t *testing.T) {
	v := newTestValidator()

	results := v.ValidateBatch([]Input{
		{Fields: map[string]string{"amount": "100", "currency": "EGP", "date": "15/03/2024"}},
		{Fields: map[string]string{}},
	})

	assert.Len(t, results, 2)
	assert.Equal(t, types.ConfidenceHigh, results[0].Confidence)
	assert.Equal(t, types.ConfidenceLow, results[1].Confidence)
}
