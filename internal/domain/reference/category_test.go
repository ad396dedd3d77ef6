package reference

import "testing"

func TestCategoryTable_Lookup(t *testing.T) {
	tbl := NewCategoryTable([]CategoryRow{
		{Code: "CPM001", Standard: "Medication", Clinical: "P:Patient Safety Goals"},
		{Code: "CPM001", Standard: "Duplicate", Clinical: "Duplicate"},
		{Code: "GOS101", Standard: "", Clinical: "O:Organization Safety Goals"},
	}, CategoryColumns{Standard: true, Clinical: true}, 6)

	std, clin := tbl.Lookup("CPM001")
	if std != "Medication" || clin != "P:Patient Safety Goals" {
		t.Errorf("unexpected match: %q %q", std, clin)
	}
	std, clin = tbl.Lookup("CPM001-extra")
	if std != "Medication" {
		t.Errorf("expected prefix join, got %q %q", std, clin)
	}
	std, clin = tbl.Lookup("GOS101")
	if std != NoMatch || clin != "O:Organization Safety Goals" {
		t.Errorf("expected blank cell to be no match, got %q %q", std, clin)
	}
	std, clin = tbl.Lookup("XXX999")
	if std != NoMatch || clin != NoMatch {
		t.Errorf("expected no match, got %q %q", std, clin)
	}
	if !tbl.Contains("CPM001") || tbl.Contains("XXX999") {
		t.Error("unexpected standard-set membership")
	}
	if tbl.Len() != 2 {
		t.Errorf("expected 2 codes, got %d", tbl.Len())
	}
}

func TestCategoryTable_FailureModesAreDistinct(t *testing.T) {
	var notLoaded *CategoryTable
	missing := NewCategoryTable([]CategoryRow{{Code: "CPM001"}}, CategoryColumns{}, 0)
	loaded := NewCategoryTable([]CategoryRow{{Code: "CPM001", Standard: "x", Clinical: "y"}}, CategoryColumns{Standard: true, Clinical: true}, 0)

	a, _ := notLoaded.Lookup("CPM001")
	b, _ := missing.Lookup("CPM001")
	c, _ := loaded.Lookup("ZZZ000")
	if a != NotLoaded || b != ColumnMissing || c != NoMatch {
		t.Errorf("unexpected failure values: %q %q %q", a, b, c)
	}
	if a == b || b == c || a == c {
		t.Error("failure values must be distinct")
	}
}

func TestCategoryTable_KeyLength(t *testing.T) {
	tbl := NewCategoryTable([]CategoryRow{{Code: "ยาผิด01", Standard: "Medication"}}, CategoryColumns{Standard: true}, 3)
	std, clin := tbl.Lookup("ยาผxxx")
	if std != "Medication" {
		t.Errorf("expected rune-based 3-character key match, got %q", std)
	}
	if clin != ColumnMissing {
		t.Errorf("expected clinical column missing, got %q", clin)
	}
}

func TestSentinelSet(t *testing.T) {
	s := NewSentinelSet([]SentinelKey{
		{Code: " CPM001 ", Impact: "I"},
		{Code: "GOS101", Impact: "5"},
		{Code: "", Impact: "5"},
	})
	if !s.Contains("CPM001", "I") {
		t.Error("expected CPM001-I to be sentinel")
	}
	if s.Contains("CPM001", "E") {
		t.Error("CPM001-E is not a sentinel")
	}
	if s.Len() != 2 {
		t.Errorf("expected 2 keys, got %d", s.Len())
	}
	var empty *SentinelSet
	if empty.Contains("CPM001", "I") {
		t.Error("nil set must be empty")
	}
	if CompositeKey(" GOS101", "5 ") != "GOS101-5" {
		t.Errorf("unexpected composite key %q", CompositeKey(" GOS101", "5 "))
	}
}
