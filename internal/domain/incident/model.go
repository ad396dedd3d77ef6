package incident

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Fallback values for derived fields that could not be classified.
const (
	Unclassified  = "unclassified"
	UndefinedRisk = "undefined"
	BandUndefined = "Undefined"

	Resolved   = "resolved"
	Unresolved = "unresolved"
)

// RawRow is one row of an uploaded table keyed by its header label. Cells are
// untyped: strings from CSV, raw cell text from XLSX, or native values when the
// caller builds rows programmatically.
type RawRow = map[string]any

// Record is a canonical incident record. Records are built once per ingestion
// pass and never mutated afterwards.
type Record struct {
	Code             string    `json:"code"`
	RawTopic         string    `json:"raw_topic"`
	Name             string    `json:"name"`
	OccurredAt       time.Time `json:"occurred_at"`
	RawSeverity      string    `json:"raw_severity"`
	ImpactLevel      string    `json:"impact_level"`
	IncidentRate     float64   `json:"incident_rate"`
	FrequencyLevel   string    `json:"frequency_level"`
	RiskCode         string    `json:"risk_code"`
	RiskBand         string    `json:"risk_band"`
	Unit             string    `json:"unit"`
	UnitGroup        string    `json:"unit_group"`
	StandardCategory string    `json:"standard_category"`
	ClinicalCategory string    `json:"clinical_category"`
	InStandardSet    bool      `json:"in_standard_set"`
	Sentinel         bool      `json:"sentinel"`
	FiscalYear       int       `json:"fiscal_year"`
	FiscalQuarter    int       `json:"fiscal_quarter"`
	Month            int       `json:"month"`
	ResolutionStatus string    `json:"resolution_status"`
	CorrectiveAction string    `json:"corrective_action,omitempty"`
	Description      string    `json:"description,omitempty"`
	SourceRow        int       `json:"source_row"`
}

// Impact returns the numeric impact level, or false when unclassified.
func (r *Record) Impact() (int, bool) {
	n, err := strconv.Atoi(r.ImpactLevel)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RiskRank returns the ordinal 1-25 rank of the record's risk code.
func (r *Record) RiskRank() (int, bool) {
	return RiskRank(r.RiskCode)
}

// Severe reports whether the impact level is 3 or above.
func (r *Record) Severe() bool {
	n, ok := r.Impact()
	return ok && n >= 3
}

// MonthKey returns the calendar month of the occurrence as YYYY-MM.
func (r *Record) MonthKey() string {
	return r.OccurredAt.Format("2006-01")
}

// Batch is the canonical record set produced from one uploaded table.
type Batch struct {
	ID           uuid.UUID `json:"id"`
	Source       string    `json:"source"`
	LoadedAt     time.Time `json:"loaded_at"`
	RowsRead     int       `json:"rows_read"`
	Dropped      int       `json:"dropped"`
	Unclassified int       `json:"unclassified"`
	SpanMonths   int       `json:"span_months"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Records      []Record  `json:"-"`
}

// Len returns the number of canonical records in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}
