package repair

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepairTextTrimsAndReportsChange(t *testing.T) {
	repaired, changed := RepairText("  debited 100 EGP  ")
	assert.Equal(t, "debited 100 EGP", repaired)
	assert.True(t, changed)

	repaired, changed = RepairText("debited 100 EGP")
	assert.Equal(t, "debited 100 EGP", repaired)
	assert.False(t, changed)
}

func TestRepairTextFixesDoubleEncodedUTF8(t *testing.T) {
	// "café" encoded as UTF-8 then misread as Latin-1.
	repaired, changed := RepairText("cafÃ©")
	assert.Equal(t, "café", repaired)
	assert.True(t, changed)
}

func TestRepairTextFixesMojibakeArabic(t *testing.T) {
	// "خصم" (debit) after a UTF-8/Latin-1 round trip.
	mangled := "Ø®ØµÙ"
	repaired, changed := RepairText(mangled)
	assert.Equal(t, "خصم", repaired)
	assert.True(t, changed)
}

func TestRepairTextLeavesCleanArabicAlone(t *testing.T) {
	clean := "تم خصم 150.50 جنيه"
	repaired, changed := RepairText(clean)
	assert.Equal(t, clean, repaired)
	assert.False(t, changed)
}

func TestResolveTimestampFullFormats(t *testing.T) {
	ingested := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for raw, want := range map[string]string{
		"15/03/2024": "2024-03-15",
		"2024-03-15": "2024-03-15",
		"15-03-2024": "2024-03-15",
	} {
		date, source := ResolveTimestamp(raw, nil, ingested)
		assert.Equal(t, want, date, raw)
		assert.Equal(t, SourceSMSText, source, raw)
	}
}

func TestResolveTimestampDayFirstPreference(t *testing.T) {
	ingested := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// 05/03 is ambiguous; day-first wins.
	date, _ := ResolveTimestamp("05/03/2024", nil, ingested)
	assert.Equal(t, "2024-03-05", date)

	// Month 15 is impossible day-first, so the US layout applies.
	date, _ = ResolveTimestamp("03/15/2024", nil, ingested)
	assert.Equal(t, "2024-03-15", date)
}

func TestResolveTimestampPartialDate(t *testing.T) {
	ingested := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mtime := time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC)

	date, source := ResolveTimestamp("15/03", &mtime, ingested)
	assert.Equal(t, "2023-03-15", date)
	assert.Equal(t, SourceSMSText, source)

	// Without a file mtime the ingestion year applies.
	date, _ = ResolveTimestamp("15/03", nil, ingested)
	assert.Equal(t, "2024-03-15", date)
}

func TestResolveTimestampAbsentWhenNothingMatches(t *testing.T) {
	ingested := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mtime := time.Date(2023, 11, 20, 8, 0, 0, 0, time.UTC)

	// No extracted date stays no date, even with context available.
	date, source := ResolveTimestamp("", &mtime, ingested)
	assert.Empty(t, date)
	assert.Equal(t, SourceNone, source)

	date, source = ResolveTimestamp("not a date", nil, ingested)
	assert.Empty(t, date)
	assert.Equal(t, SourceNone, source)

	// An impossible partial date is no date either.
	date, source = ResolveTimestamp("45/03", &mtime, ingested)
	assert.Empty(t, date)
	assert.Equal(t, SourceNone, source)
}
