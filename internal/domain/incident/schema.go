package incident

import (
	"errors"
	"strings"

	"github.com/hoiarr/hoiarr/internal/platform/tabular"
)

// ErrMissingColumns is matched (via errors.Is) by every *MissingColumnsError.
var ErrMissingColumns = errors.New("missing required columns")

// Column is a logical input column.
type Column int

const (
	ColCode Column = iota
	ColLabel
	ColDate
	ColSeverity
	ColUnit
	ColAction
	ColSummary
)

var columnNames = [...]string{"code", "label", "date", "severity", "unit", "action", "summary"}

func (c Column) String() string {
	if int(c) < len(columnNames) {
		return columnNames[c]
	}
	return "unknown"
}

// columnAliases lists accepted header labels per logical column, Thai export
// labels first.
var columnAliases = map[Column][]string{
	ColCode:     {"รหัสหัวข้อ", "Incident", "code"},
	ColLabel:    {"หัวข้อ", "ชื่ออุบัติการณ์ความเสี่ยง", "label"},
	ColDate:     {"วัน-เวลา ที่เกิดเหตุ", "Occurrence Date", "date"},
	ColSeverity: {"ระดับความรุนแรง", "Impact", "severity"},
	ColUnit:     {"หน่วยงาน", "หน่วยงานที่เกิดเหตุ", "unit"},
	ColAction:   {"การดำเนินการ/การแก้ไขที่ได้ดำเนินการไปแล้ว", "Resulting Actions", "action"},
	ColSummary:  {"สรุปปัญหา/เหตุการณ์โดยย่อ", "Description", "summary"},
}

var requiredColumns = []Column{ColCode, ColLabel, ColDate, ColSeverity, ColUnit}

// MissingColumnsError lists the logical columns absent from an input table.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return ErrMissingColumns.Error() + ": " + strings.Join(e.Columns, ", ")
}

func (e *MissingColumnsError) Is(target error) bool {
	return target == ErrMissingColumns
}

// Schema maps logical columns to the header labels found in the input.
type Schema map[Column]string

// ResolveSchema matches headers against the known aliases. Optional columns
// may be absent; any missing required column yields a *MissingColumnsError.
func ResolveSchema(headers []string) (Schema, error) {
	s := make(Schema, len(columnAliases))
	var missing []string
	for c := ColCode; c <= ColSummary; c++ {
		if h, ok := tabular.FindColumn(headers, columnAliases[c]...); ok {
			s[c] = h
		}
	}
	for _, c := range requiredColumns {
		if _, ok := s[c]; !ok {
			missing = append(missing, c.String())
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}
	return s, nil
}

// Has reports whether the input carries column c.
func (s Schema) Has(c Column) bool {
	_, ok := s[c]
	return ok
}

func (s Schema) value(row RawRow, c Column) any {
	h, ok := s[c]
	if !ok {
		return nil
	}
	return row[h]
}

func (s Schema) text(row RawRow, c Column) string {
	return CellString(s.value(row, c))
}
