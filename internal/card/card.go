// Package card extracts 4-digit card suffixes from SMS text and resolves
// them to account metadata loaded from a YAML source.
package card

import (
	"fmt"
	"os"
	"regexp"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/lox/sms-ledger/internal/numerals"
	"github.com/lox/sms-ledger/internal/types"
)

// Suffix patterns, tried in priority order. RE2 has no lookahead, so the
// trailing digit-boundary check is expressed as (?:[^0-9]|$) after the
// capture group; markers before the group provide the leading boundary.
var suffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:ending|card ending|ends with)\s+(\d{4})(?:[^0-9]|$)`),
	regexp.MustCompile(`(?i)card\s+(?:number\s+)?(?:\*+\s*)?(\d{4})(?:[^0-9]|$)`),
	regexp.MustCompile(`\*+(\d{4})(?:[^0-9]|$)`),
	regexp.MustCompile(`(?:بطاقة رقم|رقم|ينتهي)\s+(\d{4})(?:[^0-9]|$)`),
	regexp.MustCompile(`بطاقة\s+(?:\*+\s*)?(\d{4})(?:[^0-9]|$)`),
}

var allDigits = regexp.MustCompile(`^\d{4}$`)

// ExtractSuffix returns the 4-digit card suffix from an SMS, trying
// English then Arabic marker patterns in order. The first pattern yielding
// an exact 4-digit group wins. Digits embedded in longer runs never match.
func ExtractSuffix(sms string) (string, bool) {
	if sms == "" {
		return "", false
	}
	normalized := numerals.NormalizeDigits(sms)
	for _, pattern := range suffixPatterns {
		m := pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if allDigits.MatchString(m[1]) {
			return m[1], true
		}
	}
	return "", false
}

// Store holds account metadata keyed by card suffix. Lookups read an
// immutable snapshot; Reload swaps the snapshot atomically.
type Store struct {
	logger   *log.Logger
	path     string
	accounts atomic.Pointer[map[string]types.AccountMetadata]
}

// NewStore loads account metadata from a YAML file mapping 4-digit card
// suffixes to account entries. A missing file is tolerated (empty store);
// a malformed file or an entry without account_id/account_type rejects the
// whole load.
func NewStore(path string, logger *log.Logger) (*Store, error) {
	s := &Store{logger: logger, path: path}
	accounts, err := loadAccounts(path, logger)
	if err != nil {
		return nil, err
	}
	s.accounts.Store(&accounts)
	logger.Info("Loaded account metadata", "accounts", len(accounts), "path", path)
	return s, nil
}

// NewEmptyStore creates a store with no known accounts. Every lookup
// synthesizes an unknown record.
func NewEmptyStore(logger *log.Logger) *Store {
	s := &Store{logger: logger}
	accounts := map[string]types.AccountMetadata{}
	s.accounts.Store(&accounts)
	return s
}

func loadAccounts(path string, logger *log.Logger) (map[string]types.AccountMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Accounts file not found, starting empty", "path", path)
			return map[string]types.AccountMetadata{}, nil
		}
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var accounts map[string]types.AccountMetadata
	if err := yaml.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("invalid YAML in accounts file %s: %w", path, err)
	}
	if accounts == nil {
		logger.Warn("Accounts file is empty", "path", path)
		return map[string]types.AccountMetadata{}, nil
	}

	for suffix, meta := range accounts {
		if meta.AccountID == "" {
			return nil, fmt.Errorf("account %q missing required field: account_id", suffix)
		}
		if meta.AccountType == "" {
			return nil, fmt.Errorf("account %q missing required field: account_type", suffix)
		}
	}
	return accounts, nil
}

// Reload re-reads account metadata, optionally from a new path. On error
// the previous snapshot stays active.
func (s *Store) Reload(path string) error {
	if path == "" {
		path = s.path
	}
	accounts, err := loadAccounts(path, s.logger)
	if err != nil {
		return err
	}
	s.path = path
	s.accounts.Store(&accounts)
	s.logger.Info("Reloaded account metadata", "accounts", len(accounts))
	return nil
}

// Lookup resolves a card suffix to account metadata. Unknown or empty
// suffixes yield a synthesized record with IsKnown=false, never an error.
func (s *Store) Lookup(suffix string) types.AccountMetadata {
	if suffix == "" {
		return fallbackAccount("", "Invalid suffix")
	}
	accounts := *s.accounts.Load()
	if meta, ok := accounts[suffix]; ok {
		meta.CardSuffix = suffix
		meta.IsKnown = true
		return meta
	}
	s.logger.Debug("Unknown card suffix", "suffix", suffix)
	return fallbackAccount(suffix, "Unknown card")
}

// Classify extracts the suffix from an SMS and resolves it in one step.
func (s *Store) Classify(sms string) types.AccountMetadata {
	suffix, ok := ExtractSuffix(sms)
	if !ok {
		return fallbackAccount("", "No card suffix in SMS")
	}
	return s.Lookup(suffix)
}

// Len returns the number of known accounts in the active snapshot.
func (s *Store) Len() int {
	return len(*s.accounts.Load())
}

func fallbackAccount(suffix, label string) types.AccountMetadata {
	accountID := "unknown"
	if suffix != "" {
		accountID = "unknown_" + suffix
	}
	return types.AccountMetadata{
		AccountID:   accountID,
		AccountType: types.AccountUnknown,
		Label:       label,
		CardSuffix:  suffix,
		IsKnown:     false,
	}
}
