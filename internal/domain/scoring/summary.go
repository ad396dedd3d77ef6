package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

// severeTokens are the raw severity grades counted as "E-up".
var severeTokens = map[string]bool{
	"E": true, "F": true, "G": true, "H": true, "I": true,
	"3": true, "4": true, "5": true,
}

var severeLetters = map[string]bool{"E": true, "F": true, "G": true, "H": true, "I": true}

// GroupCount is the number of records in one unit group.
type GroupCount struct {
	Group string `json:"group"`
	Count int    `json:"count"`
}

// Overview is the headline summary of a view.
type Overview struct {
	Total        int            `json:"total"`
	Sentinel     int            `json:"sentinel"`
	StandardSet  int            `json:"standard_set"`
	Severe       int            `json:"severe"`
	Unclassified int            `json:"unclassified"`
	Unresolved   int            `json:"unresolved"`
	Dropped      int            `json:"dropped"`
	ByRiskBand   map[string]int `json:"by_risk_band"`
	ByGroup      []GroupCount   `json:"by_group"`
}

// BuildOverview summarizes records. dropped is carried through from the
// batch, since dropped rows never become records.
func BuildOverview(records []incident.Record, dropped int) Overview {
	o := Overview{Total: len(records), Dropped: dropped, ByRiskBand: make(map[string]int), ByGroup: []GroupCount{}}
	groups := make(map[string]int)
	for i := range records {
		r := &records[i]
		if r.Sentinel {
			o.Sentinel++
		}
		if r.InStandardSet {
			o.StandardSet++
		}
		if r.Severe() {
			o.Severe++
		}
		if r.ImpactLevel == incident.Unclassified {
			o.Unclassified++
		}
		if r.ResolutionStatus == incident.Unresolved {
			o.Unresolved++
		}
		o.ByRiskBand[r.RiskBand]++
		groups[r.UnitGroup]++
	}
	for g, n := range groups {
		o.ByGroup = append(o.ByGroup, GroupCount{Group: g, Count: n})
	}
	sort.Slice(o.ByGroup, func(i, j int) bool {
		if o.ByGroup[i].Count != o.ByGroup[j].Count {
			return o.ByGroup[i].Count > o.ByGroup[j].Count
		}
		return o.ByGroup[i].Group < o.ByGroup[j].Group
	})
	return o
}

// CodeSummaryRow counts one "code | name" label by raw severity grade.
type CodeSummaryRow struct {
	Label      string         `json:"label"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	BySeverity map[string]int `json:"by_severity"`
	Total      int            `json:"total"`
	SevereUp   int            `json:"severe_up"`
}

// CodeSummary cross-tabulates "code | name" against raw severity and keeps
// only rows with at least one E-up (E-I or 3-5) record, sorted by E-up count.
func CodeSummary(records []incident.Record) []CodeSummaryRow {
	byLabel := make(map[string]*CodeSummaryRow)
	for i := range records {
		r := &records[i]
		label := r.Code + " | " + r.Name
		row, ok := byLabel[label]
		if !ok {
			row = &CodeSummaryRow{Label: label, Code: r.Code, Name: r.Name, BySeverity: make(map[string]int)}
			byLabel[label] = row
		}
		sev := strings.ToUpper(r.RawSeverity)
		row.BySeverity[sev]++
		row.Total++
		if severeTokens[sev] {
			row.SevereUp++
		}
	}

	out := []CodeSummaryRow{}
	for _, row := range byLabel {
		if row.SevereUp > 0 {
			out = append(out, *row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SevereUp != out[j].SevereUp {
			return out[i].SevereUp > out[j].SevereUp
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Goal is a safety-goal grouping of clinical categories.
type Goal struct {
	Name string `json:"name" yaml:"name"`
	// Label is matched as a prefix of the record's clinical category.
	Label string `json:"label" yaml:"label"`
	// ImpactSeverity counts impact levels 3-5 as severe instead of the
	// letter grades E-I.
	ImpactSeverity bool `json:"impact_severity" yaml:"impact_severity"`
}

// DefaultGoals are the safety goals reported by the goal summary.
var DefaultGoals = []Goal{
	{Name: "Patient Safety/ Common Clinical Risk", Label: "P:Patient Safety Goals"},
	{Name: "Specific Clinical Risk", Label: "S:Specific Clinical Risk"},
	{Name: "Personnel Safety", Label: "P:Personnel Safety Goals"},
	{Name: "Organization Safety", Label: "O:Organization Safety Goals", ImpactSeverity: true},
}

// GoalRow is one code within a goal.
type GoalRow struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Total         int     `json:"total"`
	Severe        int     `json:"severe"`
	PercentSevere float64 `json:"percent_severe"`
}

// GoalSummary is the per-code breakdown for one goal.
type GoalSummary struct {
	Goal Goal      `json:"goal"`
	Rows []GoalRow `json:"rows"`
}

func (g Goal) matches(r *incident.Record) bool {
	return g.Label != "" && strings.HasPrefix(strings.ToLower(r.ClinicalCategory), strings.ToLower(g.Label))
}

func (g Goal) severe(r *incident.Record) bool {
	if g.ImpactSeverity {
		return r.Severe()
	}
	return severeLetters[strings.ToUpper(r.RawSeverity)]
}

// GoalSummaries builds one summary per goal, in goal order. Rows are sorted
// by severe count, highest first.
func GoalSummaries(records []incident.Record, goals []Goal) []GoalSummary {
	out := make([]GoalSummary, 0, len(goals))
	for _, g := range goals {
		type key struct{ code, name string }
		rows := make(map[key]*GoalRow)
		for i := range records {
			r := &records[i]
			if !g.matches(r) {
				continue
			}
			k := key{r.Code, r.Name}
			row, ok := rows[k]
			if !ok {
				row = &GoalRow{Code: r.Code, Name: r.Name}
				rows[k] = row
			}
			row.Total++
			if g.severe(r) {
				row.Severe++
			}
		}

		s := GoalSummary{Goal: g, Rows: make([]GoalRow, 0, len(rows))}
		for _, row := range rows {
			row.PercentSevere = round2(float64(row.Severe) / float64(row.Total) * 100)
			s.Rows = append(s.Rows, *row)
		}
		sort.Slice(s.Rows, func(i, j int) bool {
			a, b := s.Rows[i], s.Rows[j]
			if a.Severe != b.Severe {
				return a.Severe > b.Severe
			}
			if a.Code != b.Code {
				return a.Code < b.Code
			}
			return a.Name < b.Name
		})
		out = append(out, s)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CodeCount is the number of records for one code.
type CodeCount struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DefaultTopN is the size of the top-codes list.
const DefaultTopN = 10

// TopCodes returns the n most frequent codes, ties broken by code.
func TopCodes(records []incident.Record, n int) []CodeCount {
	if n <= 0 {
		n = DefaultTopN
	}
	counts := make(map[string]*CodeCount)
	for i := range records {
		c, ok := counts[records[i].Code]
		if !ok {
			c = &CodeCount{Code: records[i].Code, Name: records[i].Name}
			counts[records[i].Code] = c
		}
		c.Count++
	}
	out := make([]CodeCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Unresolved returns the records with no corrective action, in input order.
func Unresolved(records []incident.Record) []incident.Record {
	out := []incident.Record{}
	for i := range records {
		if records[i].ResolutionStatus == incident.Unresolved {
			out = append(out, records[i])
		}
	}
	return out
}
