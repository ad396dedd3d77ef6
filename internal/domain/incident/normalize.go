package incident

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// digitBlocks lists the zero code point of each non-ASCII decimal digit
// script seen in hospital exports.
var digitBlocks = []rune{
	0x0E50, // Thai
	0x0660, // Arabic-Indic
	0x06F0, // Extended Arabic-Indic
	0xFF10, // Fullwidth
}

func asciiDigit(r rune) rune {
	for _, zero := range digitBlocks {
		if r >= zero && r <= zero+9 {
			return '0' + (r - zero)
		}
	}
	return r
}

// CleanText removes invisible format characters (zero-width spaces, BOMs,
// soft hyphens), converts native-script digits to ASCII and collapses runs of
// whitespace to a single space.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(runes.Remove(runes.In(unicode.Cf)), runes.Map(asciiDigit))
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}

var (
	// Thai "o'clock" abbreviation, only ever trailing a time.
	thaiHourMarker = regexp.MustCompile(`\s*น\.`)
	englishHours   = regexp.MustCompile(`(?i)(\d)\s*(hrs?|hours?)\.?(\s|$)`)
)

// Order matters: "วินาที" contains "นาที".
var timeWords = []string{"นาฬิกา", "วินาที", "นาที", "เวลา"}

// normalizeDateText prepares a date/time cell for pattern matching.
func normalizeDateText(s string) string {
	s = CleanText(s)
	if s == "" {
		return ""
	}
	for _, w := range timeWords {
		s = strings.ReplaceAll(s, w, " ")
	}
	s = thaiHourMarker.ReplaceAllString(s, " ")
	s = englishHours.ReplaceAllString(s, "$1$3")
	return strings.Join(strings.Fields(s), " ")
}

// CellString renders a raw cell as trimmed, cleaned text. Whole floats are
// printed without a fractional part so numeric severities read as "3", not
// "3.0".
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return CleanText(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return CellString(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return CleanText(x.String())
	default:
		return CleanText(fmt.Sprint(x))
	}
}

// placeholders are corrective-action values that mean nothing was done.
var placeholders = map[string]bool{
	"":        true,
	"-":       true,
	"--":      true,
	".":       true,
	"none":    true,
	"null":    true,
	"nan":     true,
	"n/a":     true,
	"na":      true,
	"ไม่มี":   true,
	"ไม่ระบุ": true,
}

// IsPlaceholder reports whether a free-text cell is empty or a known
// "nothing here" marker.
func IsPlaceholder(s string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(s))]
}

// truncateRunes returns the first n code points of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
