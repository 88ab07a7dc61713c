// Package repair cleans up SMS text damaged in transit and resolves
// message timestamps from partial or missing date information.
package repair

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"
)

// mojibakeMarkers are lead bytes of UTF-8 sequences as they appear when
// a UTF-8 message is misread as Latin-1: Ã for accented Latin, Ø/Ù for
// the Arabic block.
const mojibakeMarkers = "ÃÂØÙÚÛ"

// RepairText normalizes an SMS message for parsing: double-encoded
// UTF-8 is re-decoded, the text is NFC-normalized, and surrounding
// whitespace is trimmed. The second return reports whether the text
// changed.
func RepairText(text string) (string, bool) {
	repaired := text
	if strings.ContainsAny(repaired, mojibakeMarkers) {
		if fixed, ok := reinterpretLatin1(repaired); ok {
			repaired = fixed
		}
	}
	repaired = norm.NFC.String(repaired)
	repaired = strings.TrimSpace(repaired)
	return repaired, repaired != text
}

// reinterpretLatin1 undoes one round of mis-decoding: each rune is
// mapped back to its Latin-1 byte (unmappable runes dropped) and the
// byte string is read again as UTF-8, dropping invalid sequences.
func reinterpretLatin1(text string) (string, bool) {
	buf := make([]byte, 0, len(text))
	for _, r := range text {
		if b, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			buf = append(buf, b)
		}
	}
	fixed := strings.ToValidUTF8(string(buf), "")
	if fixed == "" || !utf8.ValidString(fixed) {
		return "", false
	}
	return fixed, true
}
