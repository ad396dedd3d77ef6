package reference

import (
	"strings"
	"unicode/utf8"
)

// Category join outcomes other than a match. Each failure mode has its own
// value so aggregations never merge a broken reference with a genuine miss.
const (
	NotLoaded     = "reference not loaded"
	ColumnMissing = "category column missing"
	NoMatch       = "no category match"
)

// DefaultKeyLength is the number of leading code characters used as the
// category join key.
const DefaultKeyLength = 6

// CategoryRow is one row of the category reference table.
type CategoryRow struct {
	Code     string `json:"code"`
	Standard string `json:"standard_category,omitempty"`
	Clinical string `json:"clinical_category,omitempty"`
}

// CategoryColumns records which category columns the source carried.
type CategoryColumns struct {
	Standard bool
	Clinical bool
}

type categoryField struct {
	present bool
	values  map[string]string
}

func (f categoryField) lookup(key string) string {
	if !f.present {
		return ColumnMissing
	}
	if v, ok := f.values[key]; ok && v != "" {
		return v
	}
	return NoMatch
}

// CategoryTable resolves incident codes to their critical-standard and
// clinical categories. A nil table is the "not loaded" state.
type CategoryTable struct {
	keyLen   int
	codes    map[string]bool
	standard categoryField
	clinical categoryField
}

// NewCategoryTable builds a table keyed by the first keyLen characters of
// each code. The first row wins for duplicate keys. keyLen <= 0 selects
// DefaultKeyLength.
func NewCategoryTable(rows []CategoryRow, cols CategoryColumns, keyLen int) *CategoryTable {
	if keyLen <= 0 {
		keyLen = DefaultKeyLength
	}
	t := &CategoryTable{
		keyLen:   keyLen,
		codes:    make(map[string]bool, len(rows)),
		standard: categoryField{present: cols.Standard, values: make(map[string]string)},
		clinical: categoryField{present: cols.Clinical, values: make(map[string]string)},
	}
	for _, r := range rows {
		key := t.key(r.Code)
		if key == "" || t.codes[key] {
			continue
		}
		t.codes[key] = true
		t.standard.values[key] = strings.TrimSpace(r.Standard)
		t.clinical.values[key] = strings.TrimSpace(r.Clinical)
	}
	return t
}

func (t *CategoryTable) key(code string) string {
	code = strings.TrimSpace(code)
	if utf8.RuneCountInString(code) <= t.keyLen {
		return code
	}
	n := 0
	for i := range code {
		if n == t.keyLen {
			return code[:i]
		}
		n++
	}
	return code
}

// Lookup returns the standard and clinical category for code, or the
// fallback value describing why the join failed.
func (t *CategoryTable) Lookup(code string) (standard, clinical string) {
	if t == nil {
		return NotLoaded, NotLoaded
	}
	key := t.key(code)
	return t.standard.lookup(key), t.clinical.lookup(key)
}

// Contains reports whether code belongs to the critical-standard code set.
func (t *CategoryTable) Contains(code string) bool {
	if t == nil {
		return false
	}
	return t.codes[t.key(code)]
}

// Columns reports which category columns were present in the source.
func (t *CategoryTable) Columns() CategoryColumns {
	if t == nil {
		return CategoryColumns{}
	}
	return CategoryColumns{Standard: t.standard.present, Clinical: t.clinical.present}
}

// Len returns the number of distinct codes.
func (t *CategoryTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.codes)
}

func (t *CategoryTable) rows() [][]any {
	out := make([][]any, 0, len(t.codes))
	for code := range t.codes {
		out = append(out, []any{code, nullable(t.standard.values[code]), nullable(t.clinical.values[code])})
	}
	return out
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
