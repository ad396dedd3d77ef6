package reference

import "strings"

// SentinelKey is one code + impact pair from the sentinel-event definitions.
type SentinelKey struct {
	Code   string `json:"code"`
	Impact string `json:"impact"`
}

// CompositeKey joins a code and severity the way sentinel definitions are
// keyed: "CODE-SEVERITY".
func CompositeKey(code, severity string) string {
	return strings.TrimSpace(code) + "-" + strings.TrimSpace(severity)
}

// SentinelSet is the set of sentinel composite keys. A nil set is empty.
type SentinelSet struct {
	keys map[string]SentinelKey
}

func NewSentinelSet(pairs []SentinelKey) *SentinelSet {
	s := &SentinelSet{keys: make(map[string]SentinelKey, len(pairs))}
	for _, p := range pairs {
		if strings.TrimSpace(p.Code) == "" || strings.TrimSpace(p.Impact) == "" {
			continue
		}
		s.keys[CompositeKey(p.Code, p.Impact)] = SentinelKey{Code: strings.TrimSpace(p.Code), Impact: strings.TrimSpace(p.Impact)}
	}
	return s
}

// Contains reports whether (code, severity) is a sentinel event.
func (s *SentinelSet) Contains(code, severity string) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[CompositeKey(code, severity)]
	return ok
}

func (s *SentinelSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

func (s *SentinelSet) rows() [][]any {
	out := make([][]any, 0, len(s.keys))
	for _, k := range s.keys {
		out = append(out, []any{k.Code, k.Impact})
	}
	return out
}
