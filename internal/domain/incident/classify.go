package incident

import (
	"strings"
	"time"
)

// impactLevels maps severity tokens (letter grades for clinical incidents,
// digits for general ones) to ordinal impact levels.
var impactLevels = map[string]string{
	"A": "1", "B": "1", "1": "1",
	"C": "2", "D": "2", "2": "2",
	"E": "3", "F": "3", "3": "3",
	"G": "4", "H": "4", "4": "4",
	"I": "5", "5": "5",
}

// ImpactLevel maps a raw severity token to "1".."5", or Unclassified.
func ImpactLevel(severity string) string {
	if lvl, ok := impactLevels[strings.ToUpper(strings.TrimSpace(severity))]; ok {
		return lvl
	}
	return Unclassified
}

// Frequency thresholds in tenths of an occurrence per month.
var frequencyThresholds = []struct {
	below int
	level string
}{
	{20, "1"},
	{39, "2"},
	{69, "3"},
	{299, "4"},
}

// FrequencyLevel maps a monthly rate expressed in tenths (rate*10) to an
// ordinal frequency level. Integer tenths keep the boundaries exact: 20 is
// level 2, 39 is level 3, 299 is level 5.
func FrequencyLevel(tenths int) string {
	for _, th := range frequencyThresholds {
		if tenths < th.below {
			return th.level
		}
	}
	return "5"
}

// RateTenths returns count/spanMonths rounded half-up to one decimal, scaled
// by ten.
func RateTenths(count, spanMonths int) int {
	if spanMonths < 1 {
		spanMonths = 1
	}
	return (count*20 + spanMonths) / (2 * spanMonths)
}

// SpanMonths counts the calendar months touched between start and end,
// inclusive. It is never less than one.
func SpanMonths(start, end time.Time) int {
	if start.IsZero() || end.IsZero() {
		return 1
	}
	if end.Before(start) {
		start, end = end, start
	}
	n := (end.Year()-start.Year())*12 + int(end.Month()) - int(start.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// frequencyTable is the result of the aggregate pass: one level per code.
type frequencyTable struct {
	span   int
	start  time.Time
	end    time.Time
	counts map[string]int
}

// aggregate is the first of the two frequency passes. It only reads records.
func aggregate(records []Record) frequencyTable {
	ft := frequencyTable{span: 1, counts: make(map[string]int)}
	for i := range records {
		t := records[i].OccurredAt
		if ft.start.IsZero() || t.Before(ft.start) {
			ft.start = t
		}
		if ft.end.IsZero() || t.After(ft.end) {
			ft.end = t
		}
		ft.counts[records[i].Code]++
	}
	if len(records) > 0 {
		ft.span = SpanMonths(ft.start, ft.end)
	}
	return ft
}

// level returns the monthly rate and frequency level for a code.
func (ft frequencyTable) level(code string) (float64, string) {
	tenths := RateTenths(ft.counts[code], ft.span)
	return float64(tenths) / 10, FrequencyLevel(tenths)
}
