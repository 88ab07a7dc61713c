package numerals

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "arabic digits",
			input:    "١٢٣٤٥٦٧٨٩٠",
			expected: "1234567890",
		},
		{
			name:     "arabic decimal separator",
			input:    "١٥٠٫٥٠",
			expected: "150.50",
		},
		{
			name:     "arabic thousands separator",
			input:    "١٬٠٠٠",
			expected: "1,000",
		},
		{
			name:     "mixed digits in arabic prose",
			input:    "تم خصم ١٥٠٫٥٠ جنيه",
			expected: "تم خصم 150.50 جنيه",
		},
		{
			name:     "western text untouched",
			input:    "Debit of EGP 150.50 from card 1234",
			expected: "Debit of EGP 150.50 from card 1234",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	input := "رصيدك ٥٬٢٥٠٫٧٥ جنيه"
	once := Normalize(input)
	assert.Equal(t, once, Normalize(once))
}

func TestNormalizeDigitsKeepsSeparators(t *testing.T) {
	assert.Equal(t, "150٫50", NormalizeDigits("١٥٠٫٥٠"))
	assert.Equal(t, "بطاقة رقم 5678", NormalizeDigits("بطاقة رقم ٥٦٧٨"))
	assert.Equal(t, "", NormalizeDigits(""))
}
