// Package numerals converts Arabic-Indic numerals and separators to their
// Western equivalents. All functions are pure and idempotent.
package numerals

import "strings"

// U+0660..U+0669 are the Arabic-Indic digits; U+066B and U+066C are the
// Arabic decimal and thousands separators.
var replacements = map[rune]rune{
	'٠': '0',
	'١': '1',
	'٢': '2',
	'٣': '3',
	'٤': '4',
	'٥': '5',
	'٦': '6',
	'٧': '7',
	'٨': '8',
	'٩': '9',
	'٫': '.',
	'٬': ',',
}

// Normalize replaces Arabic-Indic digits with Western digits and the
// Arabic decimal/thousands separators with "." and ",". Everything else,
// including Latin letters and Arabic prose, passes through unchanged.
func Normalize(text string) string {
	if text == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if repl, ok := replacements[r]; ok {
			return repl
		}
		return r
	}, text)
}

// NormalizeDigits converts only the digits, leaving separators untouched.
// Used where separator rewriting would corrupt surrounding prose.
func NormalizeDigits(text string) string {
	if text == "" {
		return text
	}
	return strings.Map(func(r rune) rune {
		if r >= '٠' && r <= '٩' {
			return replacements[r]
		}
		return r
	}, text)
}
