// Package schema transforms validated transactions into the unified
// TransactionRecord shape: ISO dates, numeric amounts, NFC-normalized
// text, attached account metadata and derived urgency.
package schema

import (
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/lox/sms-ledger/internal/card"
	"github.com/lox/sms-ledger/internal/types"
)

const (
	defaultCategory    = "Uncategorized"
	defaultSubcategory = "General"

	highUrgencyAmount         = 10000
	creditMediumUrgencyAmount = 5000
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"2006.01.02",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
}

// Normalizer builds TransactionRecords from validated transactions,
// enriching them with account metadata looked up by card suffix.
type Normalizer struct {
	logger *log.Logger
	cards  *card.Store
}

func New(cards *card.Store, logger *log.Logger) *Normalizer {
	return &Normalizer{logger: logger, cards: cards}
}

// Normalize converts one validated transaction. The conversion is total:
// unparseable values become nil/empty fields, never errors.
func (n *Normalizer) Normalize(txn types.ValidatedTransaction) types.TransactionRecord {
	payee := normalizeText(txn.Payee)

	record := types.TransactionRecord{
		ID:                 uuid.NewString(),
		Amount:             safeFloat(txn.Amount, n.logger),
		Currency:           normalizeText(txn.Currency),
		Payee:              payee,
		NormalizedMerchant: payee,
		Category:           defaultCategory,
		Subcategory:        defaultSubcategory,
		Tags:               extractTags(txn),
		Confidence:         txn.Confidence,
		TransactionState:   txn.TransactionState,
		TextRepaired:       txn.TextRepaired,
		ExtractedDateRaw:   txn.ExtractedDateRaw,
	}

	date := txn.ResolvedDate
	if date == "" {
		date = txn.Date
	}
	record.Date = n.normalizeDate(date)
	record.ResolvedDate = record.Date

	if record.Confidence == "" {
		record.Confidence = types.ConfidenceLow
	}
	if record.TransactionState == "" {
		record.TransactionState = types.StateUnknown
	}

	var accountType types.AccountType
	if txn.CardSuffix != "" {
		account := n.cards.Lookup(txn.CardSuffix)
		record.AccountID = account.AccountID
		record.AccountType = account.AccountType
		record.InterestRate = account.InterestRate
		accountType = account.AccountType
	}

	record.Urgency = determineUrgency(record.Amount, accountType)

	n.logger.Debug("Normalized transaction", "id", record.ID)
	return record
}

// NormalizeBatch converts validated transactions in order.
func (n *Normalizer) NormalizeBatch(txns []types.ValidatedTransaction) []types.TransactionRecord {
	records := make([]types.TransactionRecord, len(txns))
	for i, txn := range txns {
		records[i] = n.Normalize(txn)
	}
	n.logger.Info("Normalized transaction batch", "count", len(records))
	return records
}

func (n *Normalizer) normalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	n.logger.Warn("Could not parse date", "date", raw)
	return ""
}

// safeFloat converts an amount string through decimal to avoid binary
// rounding surprises on the parse itself.
func safeFloat(value string, logger *log.Logger) *float64 {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		logger.Warn("Could not cast amount to number", "amount", value)
		return nil
	}
	f, _ := d.Float64()
	return &f
}

// normalizeText NFC-normalizes and collapses internal whitespace.
func normalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = norm.NFC.String(text)
	return strings.Join(strings.Fields(text), " ")
}

// determineUrgency flags large transactions: anything at or above the
// high threshold, and credit-card spends at or above the medium one.
func determineUrgency(amount *float64, accountType types.AccountType) types.Urgency {
	if amount == nil {
		return types.UrgencyNormal
	}
	switch {
	case *amount >= highUrgencyAmount:
		return types.UrgencyHigh
	case accountType == types.AccountCredit && *amount >= creditMediumUrgencyAmount:
		return types.UrgencyMedium
	}
	return types.UrgencyNormal
}

func extractTags(txn types.ValidatedTransaction) []string {
	var tags []string
	if txn.TxnType != "" {
		tags = append(tags, txn.TxnType)
	}
	if txn.BankID != "" {
		tags = append(tags, txn.BankID)
	}
	if len(txn.Warnings) > 0 {
		tags = append(tags, "has-warnings")
	}
	return tags
}
