// Package reference holds the static reference tables incidents are joined
// against: the unit hierarchy, the category table and the sentinel-event set.
package reference

// Tables bundles the reference data for one process lifetime. Any member may
// be nil, meaning the source was absent; every lookup then returns its
// documented fallback.
type Tables struct {
	Units      *UnitHierarchy
	Categories *CategoryTable
	Sentinels  *SentinelSet
}

// Empty returns tables with nothing loaded.
func Empty() *Tables {
	return &Tables{}
}

// Unit resolves unit text to its canonical name and group.
func (t *Tables) Unit(raw string) (unit, group string) {
	if t == nil {
		return (*UnitHierarchy)(nil).Resolve(raw)
	}
	return t.Units.Resolve(raw)
}

// Category resolves a code's standard and clinical categories.
func (t *Tables) Category(code string) (standard, clinical string) {
	if t == nil {
		return NotLoaded, NotLoaded
	}
	return t.Categories.Lookup(code)
}

// InStandardSet reports whether code is listed in the category table.
func (t *Tables) InStandardSet(code string) bool {
	return t != nil && t.Categories.Contains(code)
}

// Sentinel reports whether (code, severity) is a sentinel event.
func (t *Tables) Sentinel(code, severity string) bool {
	return t != nil && t.Sentinels.Contains(code, severity)
}

// Status summarizes what was loaded.
type Status struct {
	UnitsLoaded      bool `json:"units_loaded"`
	Units            int  `json:"units"`
	UnitAliases      int  `json:"unit_aliases"`
	Groups           int  `json:"groups"`
	CategoriesLoaded bool `json:"categories_loaded"`
	Categories       int  `json:"categories"`
	StandardColumn   bool `json:"standard_column"`
	ClinicalColumn   bool `json:"clinical_column"`
	SentinelsLoaded  bool `json:"sentinels_loaded"`
	Sentinels        int  `json:"sentinels"`
}

func (t *Tables) Status() Status {
	if t == nil {
		return Status{}
	}
	cols := t.Categories.Columns()
	return Status{
		UnitsLoaded:      t.Units != nil,
		Units:            t.Units.Len(),
		UnitAliases:      t.Units.Aliases(),
		Groups:           len(t.Units.Groups()),
		CategoriesLoaded: t.Categories != nil,
		Categories:       t.Categories.Len(),
		StandardColumn:   cols.Standard,
		ClinicalColumn:   cols.Clinical,
		SentinelsLoaded:  t.Sentinels != nil,
		Sentinels:        t.Sentinels.Len(),
	}
}
