// Package tabular reads header-row tables from CSV and XLSX sources and
// writes CSV exports.
package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Format identifies a table encoding.
type Format int

const (
	FormatCSV Format = iota
	FormatXLSX
)

func (f Format) String() string {
	if f == FormatXLSX {
		return "xlsx"
	}
	return "csv"
}

var (
	ErrEmpty    = errors.New("table has no header row")
	ErrNoSheets = errors.New("workbook has no sheets")
)

// zipMagic prefixes every XLSX (OOXML zip) file.
var zipMagic = []byte("PK\x03\x04")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Table is a header row plus data rows keyed by header label. Cells hold
// strings exactly as stored; XLSX cells are read raw so dates arrive as day
// serials.
type Table struct {
	Headers []string
	Rows    []map[string]any
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

var stripFormat = runes.Remove(runes.In(unicode.Cf))

// HeaderKey folds a header label for alias matching: invisible characters
// removed, whitespace collapsed, lowercased.
func HeaderKey(s string) string {
	out, _, err := transform.String(stripFormat, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.Join(strings.Fields(out), " "))
}

// Column returns the first header matching any alias, compared with
// HeaderKey.
func (t *Table) Column(aliases ...string) (string, bool) {
	if t == nil {
		return "", false
	}
	return FindColumn(t.Headers, aliases...)
}

// FindColumn returns the first header (in alias order) matching an alias.
func FindColumn(headers []string, aliases ...string) (string, bool) {
	for _, a := range aliases {
		want := HeaderKey(a)
		for _, h := range headers {
			if HeaderKey(h) == want {
				return h, true
			}
		}
	}
	return "", false
}

// DetectFormat sniffs the leading bytes of a table.
func DetectFormat(head []byte) Format {
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

// Read sniffs the format of r and parses it.
func Read(r io.Reader) (*Table, Format, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(zipMagic))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, FormatCSV, fmt.Errorf("peek table: %w", err)
	}
	f := DetectFormat(head)
	t, err := ReadFormat(br, f)
	return t, f, err
}

// ReadFormat parses r as the given format.
func ReadFormat(r io.Reader, f Format) (*Table, error) {
	if f == FormatXLSX {
		return readXLSX(r)
	}
	return readCSV(r)
}

// ReadFile opens and parses a table file, choosing the format by extension
// and falling back to content sniffing.
func ReadFile(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadFormat(fh, FormatXLSX)
	case ".csv", ".txt":
		return ReadFormat(fh, FormatCSV)
	}
	t, _, err := Read(fh)
	return t, err
}

func readCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return build(records)
}

func readXLSX(r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}
	records, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return build(records)
}

// build turns raw string records into a Table. Leading blank rows are
// skipped, blank data rows dropped. Blank headers become "Unnamed: N" and
// repeated headers get ".1", ".2" suffixes.
func build(records [][]string) (*Table, error) {
	start := 0
	for start < len(records) && blank(records[start]) {
		start++
	}
	if start == len(records) {
		return nil, ErrEmpty
	}

	headers := uniqueHeaders(records[start])
	t := &Table{Headers: headers}
	for _, rec := range records[start+1:] {
		if blank(rec) {
			continue
		}
		row := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(rec) {
				row[h] = rec[i]
			} else {
				row[h] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func uniqueHeaders(raw []string) []string {
	used := make(map[string]bool, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
