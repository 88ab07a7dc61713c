package repair

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateSource records where a resolved transaction date came from.
type DateSource string

const (
	SourceNone    DateSource = ""
	SourceSMSText DateSource = "sms_text"
)

const isoDate = "2006-01-02"

// dateLayouts are tried in order; day-first formats take precedence
// over the US ordering for ambiguous dates.
var dateLayouts = []string{
	"02/01/2006",
	"2006-01-02",
	"01/02/2006",
	"02-01-2006",
}

var partialDate = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}$`)

// ResolveTimestamp turns a raw extracted date into an ISO date. Partial
// day/month dates borrow the year from the source file's modification
// time, falling back to the ingestion time. A raw value no layout can
// make sense of resolves to no date at all; dates are never invented
// from the message's surroundings.
func ResolveTimestamp(raw string, fileMtime *time.Time, ingestedAt time.Time) (string, DateSource) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", SourceNone
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(isoDate), SourceSMSText
		}
	}
	if partialDate.MatchString(raw) {
		if date, ok := resolvePartial(raw, fileMtime, ingestedAt); ok {
			return date, SourceSMSText
		}
	}
	return "", SourceNone
}

// resolvePartial completes a day/month date with a borrowed year.
func resolvePartial(raw string, fileMtime *time.Time, ingestedAt time.Time) (string, bool) {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '/' || r == '-' })
	if len(parts) != 2 {
		return "", false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", false
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return "", false
	}

	year := ingestedAt.Year()
	if fileMtime != nil {
		year = fileMtime.Year()
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != month || t.Day() != day {
		return "", false
	}
	return t.Format(isoDate), true
}
