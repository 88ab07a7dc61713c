package pipeline

import (
	"regexp"

	"github.com/lox/sms-ledger/internal/promo"
	"github.com/lox/sms-ledger/internal/types"
)

// State keyword patterns match against the repaired text. Ordering below
// is load-bearing: a message with both a decline keyword and an amount is
// DECLINED, not MONETARY.
var (
	otpPattern      = regexp.MustCompile(`(?i)\b(otp|one\s*time\s*password|code)\b`)
	declinedPattern = regexp.MustCompile(`(?i)\b(declined|refused)\b`)
)

// ClassifyState tags a message with its transaction state. First match
// wins: OTP, then DECLINED, then promotional, then UNKNOWN when no amount
// was extracted, otherwise MONETARY.
func ClassifyState(text string, hasAmount bool, promos *promo.Classifier) types.TransactionState {
	switch {
	case otpPattern.MatchString(text):
		return types.StateOTP
	case declinedPattern.MatchString(text):
		return types.StateDeclined
	case promos != nil && promos.IsPromotional(text):
		return types.StatePromo
	case !hasAmount:
		return types.StateUnknown
	default:
		return types.StateMonetary
	}
}
