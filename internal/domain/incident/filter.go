package incident

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidFilter is returned by ParseFilter for malformed query values.
var ErrInvalidFilter = errors.New("invalid filter")

// Filter narrows a batch to a view. Zero-value fields match everything.
type Filter struct {
	Group         string `json:"group,omitempty"`
	Unit          string `json:"unit,omitempty"`
	FiscalYear    int    `json:"fiscal_year,omitempty"`
	FiscalQuarter int    `json:"fiscal_quarter,omitempty"`
	Month         int    `json:"month,omitempty"`
	RiskBand      string `json:"risk_band,omitempty"`
	SentinelOnly  bool   `json:"sentinel_only,omitempty"`
	CodePrefix    string `json:"code_prefix,omitempty"`
}

// IsZero reports whether the filter matches every record.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Match reports whether r satisfies every set criterion.
func (f Filter) Match(r *Record) bool {
	switch {
	case f.Group != "" && r.UnitGroup != f.Group:
		return false
	case f.Unit != "" && r.Unit != f.Unit:
		return false
	case f.FiscalYear != 0 && r.FiscalYear != f.FiscalYear:
		return false
	case f.FiscalQuarter != 0 && r.FiscalQuarter != f.FiscalQuarter:
		return false
	case f.Month != 0 && r.Month != f.Month:
		return false
	case f.RiskBand != "" && r.RiskBand != f.RiskBand:
		return false
	case f.SentinelOnly && !r.Sentinel:
		return false
	case f.CodePrefix != "" && !strings.HasPrefix(r.Code, f.CodePrefix):
		return false
	}
	return true
}

// Apply returns the matching records in their original order. The returned
// slice shares no backing array with records unless the filter is zero.
func (f Filter) Apply(records []Record) []Record {
	if f.IsZero() {
		return records
	}
	out := make([]Record, 0, len(records))
	for i := range records {
		if f.Match(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}

// ParseFilter reads a Filter from query parameters: group, unit,
// fiscal_year, quarter, month, risk_band, sentinel, code_prefix.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Group:      strings.TrimSpace(q.Get("group")),
		Unit:       strings.TrimSpace(q.Get("unit")),
		CodePrefix: strings.TrimSpace(q.Get("code_prefix")),
	}

	var err error
	if f.FiscalYear, err = intParam(q, "fiscal_year", 1, 9999); err != nil {
		return Filter{}, err
	}
	if f.FiscalQuarter, err = intParam(q, "quarter", 1, 4); err != nil {
		return Filter{}, err
	}
	if f.Month, err = intParam(q, "month", 1, 12); err != nil {
		return Filter{}, err
	}

	if band := strings.TrimSpace(q.Get("risk_band")); band != "" {
		f.RiskBand = canonicalBand(band)
		if f.RiskBand == "" {
			return Filter{}, fmt.Errorf("%w: risk_band %q", ErrInvalidFilter, band)
		}
	}

	if s := strings.TrimSpace(q.Get("sentinel")); s != "" {
		b, perr := strconv.ParseBool(s)
		if perr != nil {
			return Filter{}, fmt.Errorf("%w: sentinel %q", ErrInvalidFilter, s)
		}
		f.SentinelOnly = b
	}
	return f, nil
}

func intParam(q url.Values, name string, lo, hi int) (int, error) {
	s := strings.TrimSpace(q.Get(name))
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidFilter, name, lo, hi)
	}
	return n, nil
}

func canonicalBand(s string) string {
	for _, b := range Bands {
		if strings.EqualFold(s, b) {
			return b
		}
	}
	if strings.EqualFold(s, BandUndefined) {
		return BandUndefined
	}
	return ""
}
