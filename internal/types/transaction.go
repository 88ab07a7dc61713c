package types

import "time"

// Confidence summarises extraction/validation completeness for a record.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TransactionState is the priority-classified semantic tag for a message.
type TransactionState string

const (
	StateOTP      TransactionState = "OTP"
	StateDeclined TransactionState = "DECLINED"
	StatePromo    TransactionState = "PROMO"
	StateMonetary TransactionState = "MONETARY"
	StateUnknown  TransactionState = "UNKNOWN"
)

// Urgency is the derived attention-priority tag for a transaction.
type Urgency string

const (
	UrgencyNormal Urgency = "normal"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// AccountType classifies the card account behind a suffix.
type AccountType string

const (
	AccountCredit  AccountType = "Credit"
	AccountDebit   AccountType = "Debit"
	AccountPrepaid AccountType = "Prepaid"
	AccountUnknown AccountType = "Unknown"
)

// RawMessage is the immutable pipeline input: the SMS text plus optional
// context used for bank template selection and timestamp inference.
type RawMessage struct {
	Text           string
	BankID         string
	IngestedAt     time.Time
	FileModifiedAt *time.Time
}

// Field names produced by templates and consumed by the validator.
const (
	FieldAmount          = "amount"
	FieldCurrency        = "currency"
	FieldDate            = "date"
	FieldPayee           = "payee"
	FieldMerchant        = "merchant"
	FieldTransactionType = "transaction_type"
	FieldCardSuffix      = "card_suffix"
)

// ExtractedFields is one template's extraction output. Fields maps field
// name to extracted value; an absent key means the pattern did not match.
// Results are never merged across templates.
type ExtractedFields struct {
	Fields          map[string]string
	Confidence      Confidence
	MatchedBank     string
	MatchedTemplate string
	SMSText         string
}

// Get returns the extracted value for a field, or "" when absent.
func (e ExtractedFields) Get(name string) string {
	return e.Fields[name]
}

// Has reports whether a field was extracted with a non-empty value.
func (e ExtractedFields) Has(name string) bool {
	return e.Fields[name] != ""
}

// Score counts the non-empty extracted fields.
func (e ExtractedFields) Score() int {
	n := 0
	for _, v := range e.Fields {
		if v != "" {
			n++
		}
	}
	return n
}

// ValidatedTransaction is ExtractedFields promoted through field
// validation, with warnings accumulated and confidence recomputed.
type ValidatedTransaction struct {
	Amount           string
	Currency         string
	Date             string
	Payee            string
	TxnType          string
	CardSuffix       string
	BankID           string
	Confidence       Confidence
	Warnings         []string
	TransactionState TransactionState
	ResolvedDate     string
	ExtractedDateRaw string
	TextRepaired     bool
}

// AccountMetadata associates a 4-digit card suffix with account identity
// and terms. Unknown suffixes get a synthesized record with IsKnown=false.
type AccountMetadata struct {
	AccountID    string      `yaml:"account_id" json:"account_id"`
	AccountType  AccountType `yaml:"account_type" json:"account_type"`
	InterestRate *float64    `yaml:"interest_rate" json:"interest_rate,omitempty"`
	CreditLimit  *float64    `yaml:"credit_limit" json:"credit_limit,omitempty"`
	BillingCycle *int        `yaml:"billing_cycle" json:"billing_cycle,omitempty"`
	Label        string      `yaml:"label" json:"label,omitempty"`
	CardSuffix   string      `yaml:"-" json:"card_suffix,omitempty"`
	IsKnown      bool        `yaml:"-" json:"is_known"`
}

// TransactionRecord is the canonical pipeline output. Created once per
// message by the schema normalizer; only the category fields may be set
// afterwards, by the categorizer.
type TransactionRecord struct {
	ID                   string           `json:"id"`
	Date                 string           `json:"date,omitempty"`
	Amount               *float64         `json:"amount"`
	Currency             string           `json:"currency,omitempty"`
	Payee                string           `json:"payee,omitempty"`
	NormalizedMerchant   string           `json:"normalized_merchant,omitempty"`
	Category             string           `json:"category"`
	Subcategory          string           `json:"subcategory"`
	Tags                 []string         `json:"tags"`
	AccountID            string           `json:"account_id,omitempty"`
	AccountType          AccountType      `json:"account_type,omitempty"`
	InterestRate         *float64         `json:"interest_rate,omitempty"`
	Urgency              Urgency          `json:"urgency"`
	Confidence           Confidence       `json:"confidence"`
	ResolvedDate         string           `json:"resolved_date,omitempty"`
	TransactionState     TransactionState `json:"transaction_state"`
	TextRepaired         bool             `json:"text_repaired"`
	ExtractedDateRaw     string           `json:"extracted_date_raw,omitempty"`
	MLCategory           string           `json:"ml_category,omitempty"`
	MLCategoryScore      *float64         `json:"ml_category_score,omitempty"`
	MLCategoryConfidence string           `json:"ml_category_confidence,omitempty"`
}
