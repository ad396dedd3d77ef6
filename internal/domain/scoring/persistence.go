package scoring

import (
	"sort"

	"github.com/hoiarr/hoiarr/internal/domain/incident"
)

// PersistenceScore rates how persistently a code carries risk:
// (count / span months) x mean ordinal risk rank.
type PersistenceScore struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Count    int     `json:"count"`
	Rate     float64 `json:"rate"`
	Ranked   int     `json:"ranked"`
	MeanRank float64 `json:"mean_rank"`
	Score    float64 `json:"score"`
}

// Persistence scores every code in records over spanMonths (floored at one).
// A code with no ranked records uses a mean rank of 1. Results are sorted by
// score, highest first, then by code.
func Persistence(records []incident.Record, spanMonths int) []PersistenceScore {
	if spanMonths < 1 {
		spanMonths = 1
	}

	type acc struct {
		name          string
		count, ranked int
		rankSum       int
	}
	byCode := make(map[string]*acc)
	for i := range records {
		r := &records[i]
		a, ok := byCode[r.Code]
		if !ok {
			a = &acc{name: r.Name}
			byCode[r.Code] = a
		}
		a.count++
		if rank, ok := r.RiskRank(); ok {
			a.ranked++
			a.rankSum += rank
		}
	}

	out := make([]PersistenceScore, 0, len(byCode))
	for code, a := range byCode {
		mean := 1.0
		if a.ranked > 0 {
			mean = float64(a.rankSum) / float64(a.ranked)
		}
		rate := float64(a.count) / float64(spanMonths)
		out = append(out, PersistenceScore{
			Code:     code,
			Name:     a.name,
			Count:    a.count,
			Rate:     rate,
			Ranked:   a.ranked,
			MeanRank: mean,
			Score:    rate * mean,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Code < out[j].Code
	})
	return out
}
