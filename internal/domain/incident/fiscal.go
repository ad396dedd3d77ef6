package incident

import "time"

// FiscalYearStart is the calendar month in which a fiscal year begins.
const FiscalYearStart = time.October

// FiscalYear returns the fiscal year of t: October onwards belongs to the
// following calendar year.
func FiscalYear(t time.Time) int {
	if t.Month() >= FiscalYearStart {
		return t.Year() + 1
	}
	return t.Year()
}

// FiscalQuarter returns 1-4, with Q1 covering October to December.
func FiscalQuarter(t time.Time) int {
	offset := (int(t.Month()) - int(FiscalYearStart) + 12) % 12
	return offset/3 + 1
}
