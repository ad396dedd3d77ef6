package incident

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// BuddhistEraOffset is the year difference between the Buddhist and
// Gregorian calendars. Any resolved year at or above BuddhistEraThreshold is
// treated as a Buddhist-era year.
const (
	BuddhistEraOffset    = 543
	BuddhistEraThreshold = 2400
)

// serialEpoch is day 0 of spreadsheet date serials.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// maxSerial is 9999-12-31.
const maxSerial = 2958465

var monthNames = map[string]time.Month{
	"มค": time.January, "มกราคม": time.January,
	"กพ": time.February, "กุมภาพันธ์": time.February,
	"มีค": time.March, "มีนาคม": time.March,
	"เมย": time.April, "เมษายน": time.April,
	"พค": time.May, "พฤษภาคม": time.May,
	"มิย": time.June, "มิถุนายน": time.June,
	"กค": time.July, "กรกฎาคม": time.July,
	"สค": time.August, "สิงหาคม": time.August,
	"กย": time.September, "กันยายน": time.September,
	"ตค": time.October, "ตุลาคม": time.October,
	"พย": time.November, "พฤศจิกายน": time.November,
	"ธค": time.December, "ธันวาคม": time.December,

	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// LookupMonth resolves an abbreviated or full month name (Thai or English,
// with or without dots) to its number.
func LookupMonth(token string) (time.Month, bool) {
	key := strings.ToLower(token)
	key = strings.NewReplacer(".", "", ",", "", " ", "").Replace(key)
	m, ok := monthNames[key]
	return m, ok
}

// clock matches an optional time of day with an optional 12-hour suffix.
const clock = `(?:[\sT,]+(\d{1,2})[:.](\d{2})(?:[:.](\d{2}))?(?:\s*([AaPp])\.?[Mm]\.?)?)?`

var (
	numericPattern    = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	monthNamePattern  = regexp.MustCompile(`^(\d{1,2})[\s\-/]*([^\d\s\-/]+?)[\s\-/]*(\d{4})` + clock + `$`)
	monthFirstPattern = regexp.MustCompile(`^([^\d\s\-/,]+)[\s\-/]*(\d{1,2})(?:st|nd|rd|th)?,?[\s\-/]*(\d{4})` + clock + `$`)
	separatorPattern  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})` + clock + `$`)
	isoPattern        = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})(?:[\sT]+(\d{1,2}):(\d{2})(?::(\d{2})(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?$`)
	dottedPattern     = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})` + clock + `$`)
)

// ParseTimestamp converts a raw occurrence cell into a timestamp. The second
// return value is false when the value cannot be interpreted; such records are
// dropped by the pipeline.
//
// Precedence: native time values, then spreadsheet day serials (numbers or
// numeric strings), then text patterns (day + month name + year, D/M/YYYY,
// then month name + day + year, ISO and dotted day-first forms). Clock times
// may carry an AM/PM suffix.
func ParseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return fromNative(x)
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return fromNative(*x)
	case float64:
		return fromSerial(x)
	case float32:
		return fromSerial(float64(x))
	case int:
		return fromSerial(float64(x))
	case int64:
		return fromSerial(float64(x))
	case string:
		return parseText(x)
	default:
		return parseText(CellString(x))
	}
}

func fromNative(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return build(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Location())
}

func fromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || serial < 1 || serial > maxSerial {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	secs := int(math.Round((serial - days) * 86400))
	t := serialEpoch.AddDate(0, 0, int(days)).Add(time.Duration(secs) * time.Second)
	return build(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second(), time.UTC)
}

func parseText(raw string) (time.Time, bool) {
	s := normalizeDateText(raw)
	if s == "" {
		return time.Time{}, false
	}

	if numericPattern.MatchString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromSerial(f)
	}

	if m := monthNamePattern.FindStringSubmatch(s); m != nil {
		if month, ok := LookupMonth(m[2]); ok {
			return buildParts(m[1], strconv.Itoa(int(month)), m[3], m[4], m[5], m[6], m[7])
		}
	}
	if m := separatorPattern.FindStringSubmatch(s); m != nil {
		return buildParts(m[1], m[2], m[3], m[4], m[5], m[6], m[7])
	}
	if m := monthFirstPattern.FindStringSubmatch(s); m != nil {
		if month, ok := LookupMonth(m[1]); ok {
			return buildParts(m[2], strconv.Itoa(int(month)), m[3], m[4], m[5], m[6], m[7])
		}
	}
	if m := isoPattern.FindStringSubmatch(s); m != nil {
		return buildParts(m[3], m[2], m[1], m[4], m[5], m[6], "")
	}
	if m := dottedPattern.FindStringSubmatch(s); m != nil {
		return buildParts(m[1], m[2], m[3], m[4], m[5], m[6], m[7])
	}
	return time.Time{}, false
}

// buildParts converts matched digits. meridiem is "", "a" or "p" in either
// case; with a meridiem the hour must be 1-12.
func buildParts(day, month, year, hour, minute, second, meridiem string) (time.Time, bool) {
	atoi := func(s string) int {
		if s == "" {
			return 0
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return -1
		}
		return n
	}
	h := atoi(hour)
	if meridiem != "" {
		h = to24Hour(h, strings.EqualFold(meridiem, "p"))
	}
	return build(atoi(year), atoi(month), atoi(day), h, atoi(minute), atoi(second), time.UTC)
}

func to24Hour(h int, pm bool) int {
	switch {
	case h < 1 || h > 12:
		return -1
	case h == 12 && !pm:
		return 0
	case h == 12 && pm:
		return 12
	case pm:
		return h + 12
	default:
		return h
	}
}

// build is the single constructor for every branch, so the Buddhist-era
// conversion is applied exactly once.
func build(year, month, day, hour, minute, second int, loc *time.Location) (time.Time, bool) {
	if year >= BuddhistEraThreshold {
		year -= BuddhistEraOffset
	}
	if year < 1 || month < 1 || month > 12 || day < 1 || day > daysIn(year, time.Month(month)) {
		return time.Time{}, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, hour, minute, second, 0, loc), true
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
