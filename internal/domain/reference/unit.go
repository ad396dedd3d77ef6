package reference

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unspecified is the unit and group value for records whose unit text does not
// resolve against the hierarchy.
const Unspecified = "unspecified"

// Unit is one row of the unit hierarchy.
type Unit struct {
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group" yaml:"group"`
}

var punctuation = strings.NewReplacer(
	"\u2010", "-", "\u2011", "-", "\u2012", "-", "\u2013", "-", "\u2014", "-", "\u2015", "-", "\u2212", "-",
	"\u2018", "'", "\u2019", "'", "\u201b", "'", "`", "'",
	"\u201c", `"`, "\u201d", `"`, "\u201f", `"`,
	"\u00b7", ".", "\u2022", ".", "\u2024", ".", "\u2026", ".",
	"(", " ", ")", " ", "[", " ", "]", " ", "{", " ", "}", " ", "<", " ", ">", " ",
	"_", " ",
)

var stripFormat = runes.Remove(runes.In(unicode.Cf))

// NormalizeUnit canonicalizes unit text for lookup: NFKC composition,
// invisible characters removed, dashes, quotes and dots unified, brackets
// dropped, whitespace collapsed and ASCII letters lowercased.
func NormalizeUnit(s string) string {
	if s == "" {
		return ""
	}
	out, _, err := transform.String(transform.Chain(norm.NFKC, stripFormat), s)
	if err != nil {
		out = s
	}
	out = punctuation.Replace(out)
	out = strings.Join(strings.Fields(out), " ")
	out = strings.Trim(out, " -.'\"")
	return strings.ToLower(out)
}

// UnitHierarchy maps organizational units to their owning group. The zero
// value and a nil hierarchy are both empty and safe to query.
type UnitHierarchy struct {
	units   map[string]Unit
	aliases map[string]string
	groups  map[string][]string
}

// NewUnitHierarchy builds a hierarchy from unit rows and an alias table
// (misspelling or short form -> canonical unit name). Aliases pointing at
// unknown units are ignored.
func NewUnitHierarchy(units []Unit, aliases map[string]string) *UnitHierarchy {
	h := &UnitHierarchy{
		units:   make(map[string]Unit, len(units)),
		aliases: make(map[string]string, len(aliases)),
		groups:  make(map[string][]string),
	}
	for _, u := range units {
		key := NormalizeUnit(u.Name)
		if key == "" || strings.TrimSpace(u.Group) == "" {
			continue
		}
		if _, dup := h.units[key]; dup {
			continue
		}
		u.Name = strings.TrimSpace(u.Name)
		u.Group = strings.TrimSpace(u.Group)
		h.units[key] = u
		h.groups[u.Group] = append(h.groups[u.Group], u.Name)
	}
	for alias, target := range aliases {
		a, t := NormalizeUnit(alias), NormalizeUnit(target)
		if a == "" {
			continue
		}
		if _, ok := h.units[t]; ok {
			h.aliases[a] = t
		}
	}
	for g := range h.groups {
		sort.Strings(h.groups[g])
	}
	return h
}

// Resolve returns the canonical unit name and its group. Text that matches
// no unit keeps its cleaned form as the unit and resolves to the Unspecified
// group; blank text is Unspecified for both.
func (h *UnitHierarchy) Resolve(raw string) (unit, group string) {
	key := NormalizeUnit(raw)
	if key == "" {
		return Unspecified, Unspecified
	}
	if h != nil {
		if target, ok := h.aliases[key]; ok {
			key = target
		}
		if u, ok := h.units[key]; ok {
			return u.Name, u.Group
		}
	}
	return strings.Join(strings.Fields(norm.NFKC.String(raw)), " "), Unspecified
}

// Groups lists group names in sorted order.
func (h *UnitHierarchy) Groups() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, len(h.groups))
	for g := range h.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// UnitsIn lists the units belonging to group, sorted.
func (h *UnitHierarchy) UnitsIn(group string) []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.groups[group]...)
}

// Len returns the number of units.
func (h *UnitHierarchy) Len() int {
	if h == nil {
		return 0
	}
	return len(h.units)
}

// Aliases returns the number of usable aliases.
func (h *UnitHierarchy) Aliases() int {
	if h == nil {
		return 0
	}
	return len(h.aliases)
}

func (h *UnitHierarchy) rows() [][]any {
	out := make([][]any, 0, len(h.units))
	for _, u := range h.units {
		out = append(out, []any{u.Name, u.Group})
	}
	return out
}

func (h *UnitHierarchy) aliasRows() [][]any {
	out := make([][]any, 0, len(h.aliases))
	for alias, key := range h.aliases {
		out = append(out, []any{alias, h.units[key].Name})
	}
	return out
}
