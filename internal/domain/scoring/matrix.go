package scoring

import (
	"sort"
	"time"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

// RiskMatrix counts records by impact (rows, 1-5) and frequency (columns,
// 1-5). Unclassified records are excluded and reported separately.
type RiskMatrix struct {
	Cells    [5][5]int    `json:"cells"`
	Bands    [5][5]string `json:"bands"`
	Total    int          `json:"total"`
	Excluded int          `json:"excluded"`
}

// Count returns the number of records at the given levels.
func (m *RiskMatrix) Count(impact, frequency int) int {
	if impact < 1 || impact > 5 || frequency < 1 || frequency > 5 {
		return 0
	}
	return m.Cells[impact-1][frequency-1]
}

func BuildRiskMatrix(records []incident.Record) *RiskMatrix {
	m := &RiskMatrix{}
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			m.Bands[i][j] = incident.RiskBand(string(rune('1'+i)) + string(rune('1'+j)))
		}
	}
	for i := range records {
		rank, ok := records[i].RiskRank()
		if !ok {
			m.Excluded++
			continue
		}
		m.Cells[(rank-1)/5][(rank-1)%5]++
		m.Total++
	}
	return m
}

// Heatmap counts records per code per calendar month. Months run
// contiguously from the earliest to the latest occurrence, so empty months
// appear as zero columns.
type Heatmap struct {
	Codes  []string `json:"codes"`
	Months []string `json:"months"`
	Cells  [][]int  `json:"cells"`
}

func BuildHeatmap(records []incident.Record) *Heatmap {
	h := &Heatmap{Codes: []string{}, Months: []string{}, Cells: [][]int{}}
	if len(records) == 0 {
		return h
	}

	first, last := monthIndex(records[0].OccurredAt), monthIndex(records[0].OccurredAt)
	codes := make(map[string]int)
	for i := range records {
		idx := monthIndex(records[i].OccurredAt)
		first = min(first, idx)
		last = max(last, idx)
		codes[records[i].Code] = 0
	}

	for c := range codes {
		h.Codes = append(h.Codes, c)
	}
	sort.Strings(h.Codes)
	for i, c := range h.Codes {
		codes[c] = i
	}
	for idx := first; idx <= last; idx++ {
		h.Months = append(h.Months, monthLabel(idx))
	}

	h.Cells = make([][]int, len(h.Codes))
	for i := range h.Cells {
		h.Cells[i] = make([]int, len(h.Months))
	}
	for i := range records {
		h.Cells[codes[records[i].Code]][monthIndex(records[i].OccurredAt)-first]++
	}
	return h
}

// monthIndex numbers calendar months consecutively.
func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func monthLabel(idx int) string {
	return time.Date(idx/12, time.Month(idx%12+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}
