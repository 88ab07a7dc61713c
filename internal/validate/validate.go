// Package validate enforces typing and field-level rules on parsed SMS
// transaction data. Validation is total: bad input produces warnings and
// a downgraded confidence, never an error.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	"github.com/lox/sms-ledger/internal/types"
)

// validCurrencies covers the ISO 4217 codes seen in regional bank SMS
// plus the Arabic currency names templates extract verbatim.
var validCurrencies = map[string]bool{
	"EGP": true, "USD": true, "EUR": true, "GBP": true, "SAR": true,
	"AED": true, "KWD": true, "QAR": true, "BHD": true, "OMR": true,
	"JOD": true, "LBP": true, "IQD": true, "SYP": true, "YER": true,
	"TND": true, "MAD": true, "DZD": true, "SDG": true, "LYD": true,
	"جنيه": true, "دولار": true, "يورو": true, "ريال": true, "درهم": true, "دينار": true,
}

var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
	"2006/01/02",
	"02.01.2006",
	"2006.01.02",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Input is the raw material for validation: the extracted field map plus
// the context the parsing stage attached to it. Fields accepts the alias
// keys transaction_type (for txn_type), matched_bank (for bank_id) and
// merchant (for payee).
type Input struct {
	Fields           map[string]string
	Confidence       types.Confidence
	TransactionState types.TransactionState
	ResolvedDate     string
	ExtractedDateRaw string
	TextRepaired     bool
}

// Validator checks parsed transaction fields and recomputes confidence
// from what it finds.
type Validator struct {
	logger *log.Logger
}

func New(logger *log.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate applies per-field rules and cross-field confidence demotion.
// Invalid values are kept verbatim with a warning attached so nothing
// extracted is silently lost.
func (v *Validator) Validate(in Input) types.ValidatedTransaction {
	get := func(keys ...string) string {
		for _, k := range keys {
			if val := strings.TrimSpace(in.Fields[k]); val != "" {
				return val
			}
		}
		return ""
	}

	txn := types.ValidatedTransaction{
		Payee:            get("payee", "merchant"),
		TxnType:          get("txn_type", "transaction_type"),
		CardSuffix:       get("card_suffix"),
		BankID:           get("bank_id", "matched_bank"),
		Confidence:       in.Confidence,
		TransactionState: normalizeState(in.TransactionState),
		ResolvedDate:     in.ResolvedDate,
		ExtractedDateRaw: in.ExtractedDateRaw,
		TextRepaired:     in.TextRepaired,
	}

	var warnings []string

	// Amount: strip grouping, must parse as a positive decimal.
	if raw := get("amount"); raw != "" {
		cleaned := strings.NewReplacer(",", "", " ", "").Replace(raw)
		if amount, err := decimal.NewFromString(cleaned); err != nil {
			txn.Amount = raw
			warnings = append(warnings, fmt.Sprintf("Invalid numeric format for amount: %s", raw))
		} else {
			txn.Amount = cleaned
			if amount.Sign() <= 0 {
				warnings = append(warnings, "Amount must be positive")
			}
		}
	} else {
		warnings = append(warnings, "Missing required field: amount")
	}

	if raw := get("currency"); raw != "" {
		upper := strings.ToUpper(raw)
		txn.Currency = upper
		if !validCurrencies[upper] && !validCurrencies[raw] {
			warnings = append(warnings, fmt.Sprintf("Invalid currency code: %s", raw))
		}
	} else {
		warnings = append(warnings, "Missing currency field")
	}

	if raw := get("date"); raw != "" {
		txn.Date = raw
		if !parseableDate(raw) {
			warnings = append(warnings, fmt.Sprintf("Malformed date: %s", raw))
		}
	}

	if txn.CardSuffix != "" && !isFourDigits(txn.CardSuffix) {
		warnings = append(warnings, fmt.Sprintf("Invalid card suffix (must be 4 digits): %s", txn.CardSuffix))
	}

	txn.Warnings = warnings
	txn.Confidence = recomputeConfidence(txn, warnings)

	if len(warnings) > 0 {
		v.logger.Warn("Transaction validated with warnings", "warnings", warnings)
	} else {
		v.logger.Debug("Transaction validated")
	}
	return txn
}

// ValidateBatch validates each entry independently; one bad entry never
// affects its neighbors.
func (v *Validator) ValidateBatch(inputs []Input) []types.ValidatedTransaction {
	results := make([]types.ValidatedTransaction, len(inputs))
	for i, in := range inputs {
		results[i] = v.Validate(in)
	}
	v.logger.Info("Validated transaction batch", "count", len(inputs))
	return results
}

// recomputeConfidence downgrades on warnings and upgrades only when the
// key monetary fields all validated cleanly. A missing or unparseable
// amount is critical and forces low regardless of the incoming level.
//
// A transaction with zero warnings but no date keeps its incoming
// confidence, so a high-confidence extraction stays high even without
// all three monetary fields. Inherited edge; pinned by tests.
func recomputeConfidence(txn types.ValidatedTransaction, warnings []string) types.Confidence {
	critical := false
	for _, w := range warnings {
		if strings.Contains(w, "Missing required field") || strings.Contains(w, "Invalid numeric format") {
			critical = true
			break
		}
	}

	switch {
	case critical || len(warnings) >= 2:
		return types.ConfidenceLow
	case len(warnings) > 0:
		return types.ConfidenceMedium
	case txn.Amount != "" && txn.Currency != "" && txn.Date != "":
		return types.ConfidenceHigh
	}
	return txn.Confidence
}

func normalizeState(state types.TransactionState) types.TransactionState {
	switch state {
	case types.StateMonetary, types.StatePromo, types.StateOTP, types.StateDeclined, types.StateUnknown:
		return state
	case "":
		return ""
	}
	return types.StateUnknown
}

func parseableDate(raw string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, raw); err == nil {
			return true
		}
	}
	return false
}

func isFourDigits(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
