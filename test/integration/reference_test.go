package integration

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
	"github.com/hoiarr/hoiarr/internal/domain/reference"
	"github.com/hoiarr/hoiarr/internal/platform/db"
	"github.com/hoiarr/hoiarr/migrations"
)

func fileTables(t *testing.T) *reference.Tables {
	t.Helper()
	dir := t.TempDir()
	src := reference.FileSource{
		CategoryFile: writeFile(t, dir, "categories.csv",
			"รหัส,หมวดหมู่PSG,หมวด\nCPM001,Medication,P:Patient Safety Goals\nGOS101,,O:Organization Safety Goals\n"),
		SentinelFile: writeFile(t, dir, "sentinel.csv", "รหัส,Impact\nCPM001,I\nGOS101,5\n"),
		UnitFile: writeFile(t, dir, "units.yaml", `groups:
  กลุ่มงานการพยาบาล: [งานอุบัติเหตุฉุกเฉิน, หอผู้ป่วยใน]
aliases:
  ER: งานอุบัติเหตุฉุกเฉิน
`),
		KeyLength: 6,
	}
	tables, err := reference.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load files: %v", err)
	}
	return tables
}

func TestMigrations_AllApplied(t *testing.T) {
	pool := testPool(t)
	statuses, err := db.NewMigrator(pool, migrations.FS).Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %d %s not applied", s.Version, s.Name)
		}
	}
}

func TestReference_ImportRoundTrip(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	want := fileTables(t)

	pg := reference.NewPGSource(pool, 6)
	if err := pg.Import(ctx, want); err != nil {
		t.Fatalf("import: %v", err)
	}
	// A second import replaces rather than duplicates.
	if err := pg.Import(ctx, want); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	got, err := reference.Load(ctx, pg)
	if err != nil {
		t.Fatalf("load from postgres: %v", err)
	}
	if got.Status() != want.Status() {
		t.Errorf("status mismatch:\n got  %+v\n want %+v", got.Status(), want.Status())
	}
	if unit, group := got.Unit("ER"); unit != "งานอุบัติเหตุฉุกเฉิน" || group != "กลุ่มงานการพยาบาล" {
		t.Errorf("alias resolved to %q / %q", unit, group)
	}
	if std, clin := got.Category("CPM001"); std != "Medication" || clin != "P:Patient Safety Goals" {
		t.Errorf("CPM001 categories = %q / %q", std, clin)
	}
	if !got.Sentinel("GOS101", "5") || got.Sentinel("GOS101", "4") {
		t.Error("sentinel pairs not preserved")
	}
}

func TestReference_PipelineAgainstPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()

	pg := reference.NewPGSource(pool, 6)
	if err := pg.Import(ctx, fileTables(t)); err != nil {
		t.Fatalf("import: %v", err)
	}
	ref, err := reference.Load(ctx, pg)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	svc := incident.NewService(incident.NewPipeline(ref, incident.Options{}, zerolog.Nop()), nil)
	csv := "code,label,date,severity,unit,action\n" +
		"CPM001,wrong dose,15/01/2567 09:30,I,ER,reviewed\n"
	b, err := svc.Ingest(ctx, "pg.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	r := b.Records[0]
	if !r.Sentinel || r.UnitGroup != "กลุ่มงานการพยาบาล" || r.StandardCategory != "Medication" {
		t.Errorf("record not joined against stored tables: %+v", r)
	}
}
