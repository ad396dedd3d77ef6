package incident

import (
	"strconv"
	"time"
)

// ExportHeaders are the column labels of an exported view, one per Record
// field in ExportRow order.
var ExportHeaders = []string{
	"code", "raw_topic", "name", "occurred_at", "raw_severity",
	"impact_level", "incident_rate", "frequency_level", "risk_code", "risk_band",
	"unit", "unit_group", "standard_category", "clinical_category",
	"in_standard_set", "sentinel", "fiscal_year", "fiscal_quarter", "month",
	"resolution_status", "corrective_action", "description", "source_row",
}

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportRow renders the record as text cells aligned with ExportHeaders.
func (r *Record) ExportRow() []string {
	return []string{
		r.Code,
		r.RawTopic,
		r.Name,
		formatTime(r.OccurredAt),
		r.RawSeverity,
		r.ImpactLevel,
		strconv.FormatFloat(r.IncidentRate, 'f', 1, 64),
		r.FrequencyLevel,
		r.RiskCode,
		r.RiskBand,
		r.Unit,
		r.UnitGroup,
		r.StandardCategory,
		r.ClinicalCategory,
		strconv.FormatBool(r.InStandardSet),
		strconv.FormatBool(r.Sentinel),
		strconv.Itoa(r.FiscalYear),
		strconv.Itoa(r.FiscalQuarter),
		strconv.Itoa(r.Month),
		r.ResolutionStatus,
		r.CorrectiveAction,
		r.Description,
		strconv.Itoa(r.SourceRow),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(exportTimeLayout)
}
