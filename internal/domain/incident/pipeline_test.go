package incident

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoiarr/hoiarr/internal/domain/reference"
)

var testHeaders = []string{"รหัสหัวข้อ", "หัวข้อ", "วัน-เวลา ที่เกิดเหตุ", "ระดับความรุนแรง", "หน่วยงาน", "การดำเนินการ/การแก้ไขที่ได้ดำเนินการไปแล้ว"}

func rawRow(code, label string, date any, severity, unit, action string) RawRow {
	return RawRow{
		"รหัสหัวข้อ":          code,
		"หัวข้อ":              label,
		"วัน-เวลา ที่เกิดเหตุ": date,
		"ระดับความรุนแรง":     severity,
		"หน่วยงาน":            unit,
		"การดำเนินการ/การแก้ไขที่ได้ดำเนินการไปแล้ว": action,
	}
}

func testTables() *reference.Tables {
	return &reference.Tables{
		Units: reference.NewUnitHierarchy([]reference.Unit{
			{Name: "ER", Group: "Emergency"},
			{Name: "Ward 1", Group: "Inpatient"},
		}, map[string]string{"ห้องฉุกเฉิน": "ER"}),
		Categories: reference.NewCategoryTable([]reference.CategoryRow{
			{Code: "CPM001", Standard: "Medication", Clinical: "P:Patient Safety Goals"},
		}, reference.CategoryColumns{Standard: true, Clinical: true}, 6),
		Sentinels: reference.NewSentinelSet([]reference.SentinelKey{{Code: "CPM001", Impact: "I"}}),
	}
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func newTestPipeline(ref *reference.Tables) *Pipeline {
	return NewPipeline(ref, Options{Now: fixedNow}, zerolog.Nop())
}

func TestPipeline_TopicPrefixAndUnitAlias(t *testing.T) {
	p := newTestPipeline(testTables())
	b, err := p.Process("test.csv", testHeaders, []RawRow{
		rawRow("CPM001xyz", "ให้ยาผิดขนาด", "15/01/2567 09:30", "E", "ห้องฉุกเฉิน", "ทบทวนขั้นตอน"),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	r := b.Records[0]
	if r.Code != "CPM001" || r.RawTopic != "CPM001xyz" {
		t.Errorf("code/topic = %q/%q, want CPM001/CPM001xyz", r.Code, r.RawTopic)
	}
	if r.Unit != "ER" || r.UnitGroup != "Emergency" {
		t.Errorf("unit = %q/%q, want ER/Emergency", r.Unit, r.UnitGroup)
	}
	if r.StandardCategory != "Medication" {
		t.Errorf("standard category = %q", r.StandardCategory)
	}
}

func TestPipeline_Scenario(t *testing.T) {
	p := newTestPipeline(testTables())
	b, err := p.Process("test.csv", testHeaders, []RawRow{
		rawRow("CPM001", "Wrong-dose", "15 ม.ค. 2567 09:30", "E", "ER", "ทบทวนขั้นตอน"),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", b.Len())
	}
	r := b.Records[0]

	if want := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC); !r.OccurredAt.Equal(want) {
		t.Errorf("OccurredAt = %v, want %v", r.OccurredAt, want)
	}
	checks := []struct {
		field, got, want string
	}{
		{"Code", r.Code, "CPM001"},
		{"Name", r.Name, "Wrong-dose"},
		{"ImpactLevel", r.ImpactLevel, "3"},
		{"FrequencyLevel", r.FrequencyLevel, "1"},
		{"RiskCode", r.RiskCode, "31"},
		{"RiskBand", r.RiskBand, BandMedium},
		{"Unit", r.Unit, "ER"},
		{"UnitGroup", r.UnitGroup, "Emergency"},
		{"StandardCategory", r.StandardCategory, "Medication"},
		{"ClinicalCategory", r.ClinicalCategory, "P:Patient Safety Goals"},
		{"ResolutionStatus", r.ResolutionStatus, Resolved},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if r.FiscalYear != 2024 || r.FiscalQuarter != 2 || r.Month != 1 {
		t.Errorf("fiscal fields = %d Q%d month %d", r.FiscalYear, r.FiscalQuarter, r.Month)
	}
	if !r.InStandardSet || r.Sentinel {
		t.Errorf("InStandardSet=%v Sentinel=%v", r.InStandardSet, r.Sentinel)
	}
	if r.SourceRow != 1 {
		t.Errorf("SourceRow = %d", r.SourceRow)
	}
	if !b.LoadedAt.Equal(fixedNow()) || b.Source != "test.csv" {
		t.Errorf("batch metadata %v %q", b.LoadedAt, b.Source)
	}
}

func TestPipeline_UnclassifiedSeverity(t *testing.T) {
	b, err := newTestPipeline(nil).Process("x", testHeaders, []RawRow{
		rawRow("CPM001", "x", "2024-01-15", "Z", "ER", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := b.Records[0]
	if r.ImpactLevel != Unclassified || r.RiskCode != UndefinedRisk || r.RiskBand != BandUndefined {
		t.Errorf("got %q / %q / %q", r.ImpactLevel, r.RiskCode, r.RiskBand)
	}
	if r.FrequencyLevel != "1" {
		t.Errorf("frequency still defined, got %q", r.FrequencyLevel)
	}
	if b.Unclassified != 1 {
		t.Errorf("Unclassified = %d", b.Unclassified)
	}
	if r.ResolutionStatus != Unresolved {
		t.Errorf("blank action should be unresolved, got %q", r.ResolutionStatus)
	}
}

func TestPipeline_ThirtyInOneMonthIsFrequent(t *testing.T) {
	rows := make([]RawRow, 30)
	for i := range rows {
		rows[i] = rawRow("GEN001", "fall", "2024-03-01 08:00", "2", "Ward 1", "-")
	}
	b, err := newTestPipeline(testTables()).Process("x", testHeaders, rows)
	if err != nil {
		t.Fatal(err)
	}
	if b.SpanMonths != 1 {
		t.Fatalf("SpanMonths = %d", b.SpanMonths)
	}
	for _, r := range b.Records {
		if r.FrequencyLevel != "5" || r.IncidentRate != 30 {
			t.Fatalf("got rate %v freq %q, want 30 / 5", r.IncidentRate, r.FrequencyLevel)
		}
		if r.RiskCode != "25" || r.RiskBand != BandMedium {
			t.Fatalf("got %q %q", r.RiskCode, r.RiskBand)
		}
	}
}

func TestPipeline_DropsCounted(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPipeline(nil)
	p.SetRecorder(rec)

	b, err := p.Process("x", testHeaders, []RawRow{
		rawRow("A00001", "a", "", "1", "ER", ""),
		rawRow("A00001", "a", "garbage", "1", "ER", ""),
		rawRow("A00001", "a", "2024-02-01", "1", "ER", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.RowsRead != 3 || b.Dropped != 2 || b.Len() != 1 {
		t.Errorf("rows=%d dropped=%d records=%d", b.RowsRead, b.Dropped, b.Len())
	}
	want := map[string]int{DropMissingTimestamp: 1, DropUnparseableTimestamp: 1}
	if !reflect.DeepEqual(rec.drops, want) {
		t.Errorf("drops = %v, want %v", rec.drops, want)
	}
	if b.Records[0].SourceRow != 3 {
		t.Errorf("SourceRow = %d, want 3", b.Records[0].SourceRow)
	}
}

func TestPipeline_MissingColumns(t *testing.T) {
	rec := &fakeRecorder{}
	p := newTestPipeline(nil)
	p.SetRecorder(rec)

	_, err := p.Process("x", []string{"Incident", "Occurrence Date"}, nil)
	if !errors.Is(err, ErrMissingColumns) {
		t.Fatalf("expected ErrMissingColumns, got %v", err)
	}
	var mc *MissingColumnsError
	if !errors.As(err, &mc) {
		t.Fatalf("expected *MissingColumnsError, got %T", err)
	}
	if !reflect.DeepEqual(mc.Columns, []string{"label", "severity", "unit"}) {
		t.Errorf("missing = %v", mc.Columns)
	}
	if rec.failures[FailureMissingColumns] != 1 {
		t.Errorf("failure not recorded: %v", rec.failures)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	rows := []RawRow{
		rawRow("CPM001", "a", "15/01/2567 09:30", "E", "ER", "done"),
		rawRow("CPM001", "a", "2024-03-02", "3.0", "unknown ward", ""),
		rawRow("GEN002", "b", 45306.5, "I", "Ward 1", "ไม่มี"),
	}
	p := newTestPipeline(testTables())
	first, err := p.Process("x", testHeaders, rows)
	if err != nil {
		t.Fatal(err)
	}
	second, err := p.Process("x", testHeaders, rows)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Error("processing the same rows twice gave different records")
	}
	if r := first.Records[1]; r.RawSeverity != "3" || r.ImpactLevel != "3" {
		t.Errorf("whole-number severity not normalized: %q %q", r.RawSeverity, r.ImpactLevel)
	}
	if r := first.Records[1]; r.Unit != "unknown ward" || r.UnitGroup != reference.Unspecified {
		t.Errorf("unit miss = %q / %q", r.Unit, r.UnitGroup)
	}
	if r := first.Records[2]; r.ResolutionStatus != Unresolved {
		t.Errorf("placeholder action should be unresolved, got %q", r.ResolutionStatus)
	}
}

func TestPipeline_EmptyHierarchyIsolatesJoin(t *testing.T) {
	b, err := newTestPipeline(reference.Empty()).Process("x", testHeaders, []RawRow{
		rawRow("CPM001", "a", "2024-01-15", "E", "ER", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	r := b.Records[0]
	if r.UnitGroup != reference.Unspecified || r.Unit != "ER" {
		t.Errorf("unit = %q / %q", r.Unit, r.UnitGroup)
	}
	if r.StandardCategory != reference.NotLoaded || r.ClinicalCategory != reference.NotLoaded {
		t.Errorf("category = %q / %q", r.StandardCategory, r.ClinicalCategory)
	}
	if r.ImpactLevel != "3" || r.RiskCode != "31" {
		t.Errorf("classification changed by reference state: %q %q", r.ImpactLevel, r.RiskCode)
	}
}

func TestPipeline_Sentinel(t *testing.T) {
	b, err := newTestPipeline(testTables()).Process("x", testHeaders, []RawRow{
		rawRow("CPM001", "a", "2024-01-15", "I", "ER", ""),
		rawRow("CPM001", "a", "2024-01-16", "E", "ER", ""),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !b.Records[0].Sentinel || b.Records[1].Sentinel {
		t.Errorf("sentinel flags = %v %v", b.Records[0].Sentinel, b.Records[1].Sentinel)
	}
}

type fakeRecorder struct {
	drops    map[string]int
	failures map[string]int
}

func (f *fakeRecorder) ObserveBatch(_ *Batch, drops map[string]int, _ time.Duration) {
	f.drops = drops
}

func (f *fakeRecorder) ObserveFailure(reason string) {
	if f.failures == nil {
		f.failures = make(map[string]int)
	}
	f.failures[reason]++
}
