package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

// ErrInvalidWeights is returned when priority weights are negative or do not
// sum to one.
var ErrInvalidWeights = errors.New("invalid priority weights")

const weightTolerance = 1e-6

// DefaultTrendWindow is the length, in months, of the recent and prior
// periods compared by the trend component.
const DefaultTrendWindow = 3

// Weights combine the early-warning components.
type Weights struct {
	Frequency float64 `json:"frequency"`
	Severity  float64 `json:"severity"`
	Trend     float64 `json:"trend"`
}

var DefaultWeights = Weights{Frequency: 0.4, Severity: 0.4, Trend: 0.2}

func (w Weights) Validate() error {
	for _, v := range []float64{w.Frequency, w.Severity, w.Trend} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weights must be finite", ErrInvalidWeights)
		}
	}
	if w.Frequency < 0 || w.Severity < 0 || w.Trend < 0 {
		return fmt.Errorf("%w: weights must not be negative", ErrInvalidWeights)
	}
	if sum := w.Frequency + w.Severity + w.Trend; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: weights sum to %g, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// EarlyWarning is the priority of one code.
type EarlyWarning struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	AvgImpact    float64 `json:"avg_impact"`
	Recent       int     `json:"recent"`
	Prior        int     `json:"prior"`
	NormCount    float64 `json:"norm_count"`
	NormSeverity float64 `json:"norm_severity"`
	Trend        float64 `json:"trend"`
	Priority     float64 `json:"priority"`
}

// EarlyWarnings ranks codes by
//
//	w.Frequency*count/maxCount + w.Severity*avgImpact/5 + w.Trend*trend
//
// where trend maps the recent-vs-prior count delta, (recent-prior) /
// max(recent+prior, 1), onto [0, 1]. The recent period is the last window
// months up to the latest occurrence in records; the prior period is the
// window before it. Average impact ignores unclassified records. The result
// is deterministic: sorted by priority, then code.
func EarlyWarnings(records []incident.Record, w Weights, window int) ([]EarlyWarning, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if window < 1 {
		window = DefaultTrendWindow
	}
	if len(records) == 0 {
		return []EarlyWarning{}, nil
	}

	latest := monthIndex(records[0].OccurredAt)
	for i := range records {
		latest = max(latest, monthIndex(records[i].OccurredAt))
	}
	recentFrom := latest - window + 1
	priorFrom := recentFrom - window

	type acc struct {
		name                 string
		count, rated, recent int
		prior, impactSum     int
	}
	byCode := make(map[string]*acc)
	maxCount := 0
	for i := range records {
		r := &records[i]
		a, ok := byCode[r.Code]
		if !ok {
			a = &acc{name: r.Name}
			byCode[r.Code] = a
		}
		a.count++
		maxCount = max(maxCount, a.count)
		if impact, ok := r.Impact(); ok {
			a.rated++
			a.impactSum += impact
		}
		switch idx := monthIndex(r.OccurredAt); {
		case idx >= recentFrom:
			a.recent++
		case idx >= priorFrom:
			a.prior++
		}
	}

	out := make([]EarlyWarning, 0, len(byCode))
	for code, a := range byCode {
		ew := EarlyWarning{Code: code, Name: a.name, Count: a.count, Recent: a.recent, Prior: a.prior}
		if a.rated > 0 {
			ew.AvgImpact = float64(a.impactSum) / float64(a.rated)
		}
		ew.NormCount = float64(a.count) / float64(maxCount)
		ew.NormSeverity = ew.AvgImpact / 5
		ew.Trend = trendComponent(a.recent, a.prior)
		ew.Priority = w.Frequency*ew.NormCount + w.Severity*ew.NormSeverity + w.Trend*ew.Trend
		out = append(out, ew)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// trendComponent is 0 when every occurrence is prior, 1 when every
// occurrence is recent and 0.5 when the periods balance or both are empty.
func trendComponent(recent, prior int) float64 {
	raw := float64(recent-prior) / float64(max(recent+prior, 1))
	return (raw + 1) / 2
}
