package incident

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hoiarr/hoiarr/internal/domain/reference"
)

// DefaultCodePrefixLength is the number of leading topic-code characters
// that form the incident code.
const DefaultCodePrefixLength = 6

// Drop reasons.
const (
	DropMissingTimestamp     = "missing_timestamp"
	DropUnparseableTimestamp = "unparseable_timestamp"
)

// Batch failure reasons reported to the Recorder.
const (
	FailureMissingColumns  = "missing_columns"
	FailureUnreadableTable = "unreadable_table"
)

// Options tune the pipeline.
type Options struct {
	CodePrefixLength int
	// Now stamps Batch.LoadedAt; defaults to time.Now.
	Now func() time.Time
}

// Recorder receives ingestion outcomes, typically for metrics.
type Recorder interface {
	ObserveBatch(b *Batch, drops map[string]int, elapsed time.Duration)
	ObserveFailure(reason string)
}

// Pipeline turns raw rows into a canonical Batch. It holds only immutable
// configuration and is safe for concurrent use.
type Pipeline struct {
	ref      *reference.Tables
	opts     Options
	logger   zerolog.Logger
	recorder Recorder
}

func NewPipeline(ref *reference.Tables, opts Options, logger zerolog.Logger) *Pipeline {
	if ref == nil {
		ref = reference.Empty()
	}
	if opts.CodePrefixLength <= 0 {
		opts.CodePrefixLength = DefaultCodePrefixLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{ref: ref, opts: opts, logger: logger}
}

// SetRecorder attaches an optional Recorder.
func (p *Pipeline) SetRecorder(r Recorder) {
	p.recorder = r
}

func (p *Pipeline) observeFailure(reason string) {
	if p.recorder != nil {
		p.recorder.ObserveFailure(reason)
	}
}

// Reference returns the tables records are joined against.
func (p *Pipeline) Reference() *reference.Tables {
	return p.ref
}

// Process runs the full pipeline over one table: parse and join each row,
// aggregate per-code counts over the surviving records, then annotate
// frequency and risk. Missing required columns abort the batch.
func (p *Pipeline) Process(source string, headers []string, rows []RawRow) (*Batch, error) {
	start := time.Now()
	schema, err := ResolveSchema(headers)
	if err != nil {
		p.observeFailure(FailureMissingColumns)
		p.logger.Warn().Err(err).Str("source", source).Msg("batch rejected")
		return nil, err
	}

	records, drops := p.parse(schema, rows)
	ft := aggregate(records)
	unclassified := annotate(records, ft)

	b := &Batch{
		ID:           uuid.New(),
		Source:       source,
		LoadedAt:     p.opts.Now().UTC(),
		RowsRead:     len(rows),
		Dropped:      len(rows) - len(records),
		Unclassified: unclassified,
		SpanMonths:   ft.span,
		Start:        ft.start,
		End:          ft.end,
		Records:      records,
	}

	p.logger.Info().
		Str("batch_id", b.ID.String()).
		Str("source", source).
		Int("rows_read", b.RowsRead).
		Int("records", b.Len()).
		Int("dropped", b.Dropped).
		Int("unclassified", b.Unclassified).
		Int("span_months", b.SpanMonths).
		Msg("batch processed")
	if b.Dropped > 0 {
		evt := p.logger.Debug().Str("batch_id", b.ID.String())
		for reason, n := range drops {
			evt = evt.Int(reason, n)
		}
		evt.Msg("rows dropped")
	}
	if p.recorder != nil {
		p.recorder.ObserveBatch(b, drops, time.Since(start))
	}
	return b, nil
}

// parse builds one record per row with a usable timestamp. Everything except
// frequency and risk is derived here.
func (p *Pipeline) parse(schema Schema, rows []RawRow) ([]Record, map[string]int) {
	records := make([]Record, 0, len(rows))
	drops := make(map[string]int)
	for i, row := range rows {
		rawDate := schema.value(row, ColDate)
		if CellString(rawDate) == "" {
			drops[DropMissingTimestamp]++
			continue
		}
		ts, ok := ParseTimestamp(rawDate)
		if !ok {
			drops[DropUnparseableTimestamp]++
			continue
		}
		records = append(records, p.build(schema, row, ts, i+1))
	}
	return records, drops
}

var wholeNumber = regexp.MustCompile(`^(\d+)\.0+$`)

func (p *Pipeline) build(schema Schema, row RawRow, ts time.Time, sourceRow int) Record {
	topic := schema.text(row, ColCode)
	code := truncateRunes(topic, p.opts.CodePrefixLength)
	severity := wholeNumber.ReplaceAllString(schema.text(row, ColSeverity), "$1")
	unit, group := p.ref.Unit(schema.text(row, ColUnit))
	standard, clinical := p.ref.Category(code)
	action := schema.text(row, ColAction)

	status := Resolved
	if IsPlaceholder(action) {
		status = Unresolved
	}

	return Record{
		Code:             code,
		RawTopic:         topic,
		Name:             schema.text(row, ColLabel),
		OccurredAt:       ts,
		RawSeverity:      severity,
		ImpactLevel:      ImpactLevel(severity),
		Unit:             unit,
		UnitGroup:        group,
		StandardCategory: standard,
		ClinicalCategory: clinical,
		InStandardSet:    p.ref.InStandardSet(code),
		Sentinel:         p.ref.Sentinel(code, severity),
		FiscalYear:       FiscalYear(ts),
		FiscalQuarter:    FiscalQuarter(ts),
		Month:            int(ts.Month()),
		ResolutionStatus: status,
		CorrectiveAction: action,
		Description:      schema.text(row, ColSummary),
		SourceRow:        sourceRow,
	}
}

// annotate is the second frequency pass: a pure per-record lookup into the
// aggregate table. It returns the number of unclassified records.
func annotate(records []Record, ft frequencyTable) int {
	unclassified := 0
	for i := range records {
		r := &records[i]
		r.IncidentRate, r.FrequencyLevel = ft.level(r.Code)
		r.RiskCode = RiskCode(r.ImpactLevel, r.FrequencyLevel)
		r.RiskBand = RiskBand(r.RiskCode)
		if r.ImpactLevel == Unclassified {
			unclassified++
		}
	}
	return unclassified
}
