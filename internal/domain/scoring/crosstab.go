// Package scoring derives summary tables and heuristic scores from a view of
// canonical incident records. Every function here is a pure function of its
// input records.
package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

// ErrUnknownDimension is returned by ParseDimension.
var ErrUnknownDimension = errors.New("unknown dimension")

// Dimension is a record attribute that can label the rows or columns of a
// cross-tabulation.
type Dimension string

const (
	DimStandardCategory Dimension = "standard_category"
	DimClinicalCategory Dimension = "clinical_category"
	DimSeverity         Dimension = "severity"
	DimCode             Dimension = "code"
	DimMonth            Dimension = "month"
	DimImpact           Dimension = "impact"
	DimFrequency        Dimension = "frequency"
	DimRiskBand         Dimension = "risk_band"
	DimGroup            Dimension = "group"
	DimUnit             Dimension = "unit"
	DimFiscalYear       Dimension = "fiscal_year"
	DimFiscalQuarter    Dimension = "fiscal_quarter"
)

var dimensions = map[Dimension]func(r *incident.Record) string{
	DimStandardCategory: func(r *incident.Record) string { return r.StandardCategory },
	DimClinicalCategory: func(r *incident.Record) string { return r.ClinicalCategory },
	DimSeverity:         func(r *incident.Record) string { return r.RawSeverity },
	DimCode:             func(r *incident.Record) string { return r.Code },
	DimMonth:            func(r *incident.Record) string { return r.MonthKey() },
	DimImpact:           func(r *incident.Record) string { return r.ImpactLevel },
	DimFrequency:        func(r *incident.Record) string { return r.FrequencyLevel },
	DimRiskBand:         func(r *incident.Record) string { return r.RiskBand },
	DimGroup:            func(r *incident.Record) string { return r.UnitGroup },
	DimUnit:             func(r *incident.Record) string { return r.Unit },
	DimFiscalYear:       func(r *incident.Record) string { return strconv.Itoa(r.FiscalYear) },
	DimFiscalQuarter:    func(r *incident.Record) string { return "Q" + strconv.Itoa(r.FiscalQuarter) },
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(s)
	if _, ok := dimensions[d]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownDimension, s)
	}
	return d, nil
}

// Value returns the label of r along d.
func (d Dimension) Value(r *incident.Record) string {
	if fn, ok := dimensions[d]; ok {
		return fn(r)
	}
	return ""
}

// CrossTab is a two-way frequency table with row and column totals.
// Cells[i][j] counts records labelled Rows[i] x Cols[j].
type CrossTab struct {
	RowDimension Dimension `json:"row_dimension"`
	ColDimension Dimension `json:"col_dimension"`
	Rows         []string  `json:"rows"`
	Cols         []string  `json:"cols"`
	Cells        [][]int   `json:"cells"`
	RowTotals    []int     `json:"row_totals"`
	ColTotals    []int     `json:"col_totals"`
	Total        int       `json:"total"`
}

// Count returns the cell for the given labels, or zero.
func (t *CrossTab) Count(row, col string) int {
	i, j := indexOf(t.Rows, row), indexOf(t.Cols, col)
	if i < 0 || j < 0 {
		return 0
	}
	return t.Cells[i][j]
}

// CrossTabulate counts records along two dimensions. Labels are sorted; an
// empty input yields a table with no rows or columns.
func CrossTabulate(records []incident.Record, rows, cols Dimension) *CrossTab {
	t := &CrossTab{
		RowDimension: rows,
		ColDimension: cols,
		Rows:         labels(records, rows),
		Cols:         labels(records, cols),
	}
	ri := positions(t.Rows)
	ci := positions(t.Cols)

	t.Cells = make([][]int, len(t.Rows))
	for i := range t.Cells {
		t.Cells[i] = make([]int, len(t.Cols))
	}
	t.RowTotals = make([]int, len(t.Rows))
	t.ColTotals = make([]int, len(t.Cols))

	for i := range records {
		r, c := ri[rows.Value(&records[i])], ci[cols.Value(&records[i])]
		t.Cells[r][c]++
		t.RowTotals[r]++
		t.ColTotals[c]++
		t.Total++
	}
	return t
}

func labels(records []incident.Record, d Dimension) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range records {
		v := d.Value(&records[i])
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func positions(labels []string) map[string]int {
	m := make(map[string]int, len(labels))
	for i, l := range labels {
		m[l] = i
	}
	return m
}

func indexOf(labels []string, v string) int {
	for i, l := range labels {
		if l == v {
			return i
		}
	}
	return -1
}
