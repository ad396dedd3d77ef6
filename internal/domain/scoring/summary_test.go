package scoring

import (
	"testing"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

func TestBuildOverview(t *testing.T) {
	records := []incident.Record{
		rec("A", "E", "1", month(2024, 1)),
		rec("A", "B", "1", month(2024, 1)),
		rec("B", "Z", "1", month(2024, 1)),
	}
	records[0].Sentinel = true
	records[0].InStandardSet = true
	records[1].UnitGroup = "Emergency"
	records[2].ResolutionStatus = incident.Unresolved

	o := BuildOverview(records, 4)
	if o.Total != 3 || o.Sentinel != 1 || o.StandardSet != 1 || o.Severe != 1 || o.Unclassified != 1 || o.Unresolved != 1 || o.Dropped != 4 {
		t.Errorf("unexpected overview %+v", o)
	}
	if len(o.ByGroup) != 2 || o.ByGroup[0].Group != "Inpatient" || o.ByGroup[0].Count != 2 {
		t.Errorf("by group %+v", o.ByGroup)
	}
	if o.ByRiskBand[incident.BandUndefined] != 1 || o.ByRiskBand[incident.BandMedium] != 1 || o.ByRiskBand[incident.BandLow] != 1 {
		t.Errorf("by band %v", o.ByRiskBand)
	}

	empty := BuildOverview(nil, 0)
	if empty.ByGroup == nil || empty.ByRiskBand == nil || empty.Total != 0 {
		t.Errorf("unexpected empty overview %+v", empty)
	}
}

func TestCodeSummary(t *testing.T) {
	records := []incident.Record{
		rec("A", "E", "1", month(2024, 1)),
		rec("A", "F", "1", month(2024, 1)),
		rec("A", "B", "1", month(2024, 1)),
		rec("B", "A", "1", month(2024, 1)),
		rec("C", "4", "1", month(2024, 1)),
	}
	rows := CodeSummary(records)
	if len(rows) != 2 {
		t.Fatalf("expected rows for A and C only, got %+v", rows)
	}
	if rows[0].Label != "A | name A" || rows[0].SevereUp != 2 || rows[0].Total != 3 || rows[0].BySeverity["B"] != 1 {
		t.Errorf("A row %+v", rows[0])
	}
	if rows[1].Code != "C" || rows[1].SevereUp != 1 {
		t.Errorf("C row %+v", rows[1])
	}
}

func TestGoalSummaries(t *testing.T) {
	patient := rec("CPM001", "E", "1", month(2024, 1))
	patient.ClinicalCategory = "P:Patient Safety Goals หรือ Common Clinical Risk Incident"
	patientMild := rec("CPM001", "B", "1", month(2024, 1))
	patientMild.ClinicalCategory = patient.ClinicalCategory
	personnel := rec("PPS001", "E", "1", month(2024, 1))
	personnel.ClinicalCategory = "P:Personnel Safety Goals"
	org := rec("GOS001", "4", "1", month(2024, 1))
	org.ClinicalCategory = "O:Organization Safety Goals"
	orgLetter := rec("GOS001", "E", "1", month(2024, 1))
	orgLetter.ClinicalCategory = "O:Organization Safety Goals"
	other := rec("XXX001", "I", "1", month(2024, 1))
	other.ClinicalCategory = "no category match"

	out := GoalSummaries([]incident.Record{patient, patientMild, personnel, org, orgLetter, other}, DefaultGoals)
	if len(out) != len(DefaultGoals) {
		t.Fatalf("expected %d summaries, got %d", len(DefaultGoals), len(out))
	}

	p := out[0]
	if len(p.Rows) != 1 || p.Rows[0].Total != 2 || p.Rows[0].Severe != 1 || p.Rows[0].PercentSevere != 50 {
		t.Errorf("patient goal %+v", p.Rows)
	}
	if len(out[1].Rows) != 0 {
		t.Errorf("specific clinical goal should be empty, got %+v", out[1].Rows)
	}
	if len(out[2].Rows) != 1 || out[2].Rows[0].Code != "PPS001" {
		t.Errorf("personnel goal must not absorb patient codes: %+v", out[2].Rows)
	}
	// Organization safety grades by impact level: "4" and "E" both map to
	// impact 3 or above.
	o := out[3]
	if len(o.Rows) != 1 || o.Rows[0].Total != 2 || o.Rows[0].Severe != 2 || o.Rows[0].PercentSevere != 100 {
		t.Errorf("organization goal %+v", o.Rows)
	}
}

func TestGoalSummaries_PercentRounding(t *testing.T) {
	var records []incident.Record
	for _, sev := range []string{"E", "A", "A"} {
		r := rec("CPM001", sev, "1", month(2024, 1))
		r.ClinicalCategory = "S:Specific Clinical Risk Incident"
		records = append(records, r)
	}
	out := GoalSummaries(records, DefaultGoals)
	if got := out[1].Rows[0].PercentSevere; got != 33.33 {
		t.Errorf("percent severe = %v, want 33.33", got)
	}
}

func TestTopCodes(t *testing.T) {
	var records []incident.Record
	for code, n := range map[string]int{"A": 3, "B": 5, "C": 3, "D": 1} {
		for i := 0; i < n; i++ {
			records = append(records, rec(code, "A", "1", month(2024, 1)))
		}
	}
	top := TopCodes(records, 3)
	want := []string{"B", "A", "C"}
	if len(top) != 3 {
		t.Fatalf("got %+v", top)
	}
	for i, c := range want {
		if top[i].Code != c {
			t.Errorf("top[%d] = %q, want %q", i, top[i].Code, c)
		}
	}
	if top[0].Count != 5 {
		t.Errorf("B count = %d", top[0].Count)
	}
	if len(TopCodes(records, 0)) != 4 {
		t.Error("default n should include all four codes")
	}
}

func TestUnresolved(t *testing.T) {
	records := []incident.Record{
		rec("A", "E", "1", month(2024, 1)),
		rec("B", "E", "1", month(2024, 1)),
		rec("C", "E", "1", month(2024, 1)),
	}
	records[0].ResolutionStatus = incident.Unresolved
	records[2].ResolutionStatus = incident.Unresolved
	out := Unresolved(records)
	if len(out) != 2 || out[0].Code != "A" || out[1].Code != "C" {
		t.Errorf("unexpected %+v", out)
	}
	if Unresolved(nil) == nil {
		t.Error("expected empty, non-nil slice")
	}
}
