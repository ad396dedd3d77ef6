package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hoiarr/hoiarr/internal/platform/tabular"
)

// ErrMissingKeyColumn is returned when a reference file has no code column.
var ErrMissingKeyColumn = errors.New("reference file has no code column")

// Header aliases for reference files.
var (
	codeHeaders     = []string{"รหัส", "code"}
	standardHeaders = []string{"หมวดหมู่PSG", "standard_category"}
	clinicalHeaders = []string{"หมวด", "clinical_category"}
	impactHeaders   = []string{"Impact", "severity"}
)

// FileSource loads reference tables from local files. Empty paths and
// missing files are absent tables; anything else that fails to read or parse
// is an error.
type FileSource struct {
	CategoryFile string
	SentinelFile string
	UnitFile     string
	KeyLength    int
}

// unitFile is the YAML layout of the unit hierarchy:
//
//	groups:
//	  กลุ่มงานการพยาบาล: [หอผู้ป่วยใน, งานอุบัติเหตุฉุกเฉิน]
//	aliases:
//	  ER: งานอุบัติเหตุฉุกเฉิน
type unitFile struct {
	Groups  map[string][]string `yaml:"groups"`
	Aliases map[string]string   `yaml:"aliases"`
}

func (s FileSource) Units(_ context.Context) (*UnitHierarchy, error) {
	data, ok, err := readOptional(s.UnitFile)
	if err != nil || !ok {
		return nil, err
	}
	var uf unitFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.UnitFile, err)
	}
	var units []Unit
	for group, names := range uf.Groups {
		for _, name := range names {
			units = append(units, Unit{Name: name, Group: group})
		}
	}
	return NewUnitHierarchy(units, uf.Aliases), nil
}

func (s FileSource) Categories(_ context.Context) (*CategoryTable, error) {
	tbl, err := readTable(s.CategoryFile)
	if err != nil || tbl == nil {
		return nil, err
	}
	codeCol, ok := tbl.Column(codeHeaders...)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.CategoryFile, ErrMissingKeyColumn)
	}
	stdCol, hasStd := tbl.Column(standardHeaders...)
	clinCol, hasClin := tbl.Column(clinicalHeaders...)

	rows := make([]CategoryRow, 0, tbl.Len())
	for _, r := range tbl.Rows {
		row := CategoryRow{Code: cell(r, codeCol)}
		if hasStd {
			row.Standard = cell(r, stdCol)
		}
		if hasClin {
			row.Clinical = cell(r, clinCol)
		}
		rows = append(rows, row)
	}
	return NewCategoryTable(rows, CategoryColumns{Standard: hasStd, Clinical: hasClin}, s.KeyLength), nil
}

func (s FileSource) Sentinels(_ context.Context) (*SentinelSet, error) {
	tbl, err := readTable(s.SentinelFile)
	if err != nil || tbl == nil {
		return nil, err
	}
	codeCol, ok := tbl.Column(codeHeaders...)
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.SentinelFile, ErrMissingKeyColumn)
	}
	impactCol, ok := tbl.Column(impactHeaders...)
	if !ok {
		return nil, fmt.Errorf("%s: no impact column", s.SentinelFile)
	}

	keys := make([]SentinelKey, 0, tbl.Len())
	for _, r := range tbl.Rows {
		keys = append(keys, SentinelKey{Code: cell(r, codeCol), Impact: cell(r, impactCol)})
	}
	return NewSentinelSet(keys), nil
}

func readOptional(path string) ([]byte, bool, error) {
	if path == "" {
		return nil, false, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}

func readTable(path string) (*tabular.Table, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	tbl, err := tabular.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return tbl, nil
}

func cell(row map[string]any, col string) string {
	s, _ := row[col].(string)
	return strings.TrimSpace(s)
}
