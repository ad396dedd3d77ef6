package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVWriter streams delimited rows. It prefixes a UTF-8 BOM so spreadsheet
// applications detect the encoding of Thai text.
type CSVWriter struct {
	w       *csv.Writer
	started bool
	out     io.Writer
}

func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), out: w}
}

// Write emits one row, writing the BOM before the first.
func (c *CSVWriter) Write(row []string) error {
	if !c.started {
		c.started = true
		if _, err := c.out.Write(utf8BOM); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
	}
	return c.w.Write(row)
}

// Flush writes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// WriteCSV writes a header row followed by rows.
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := NewCSVWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	return cw.Flush()
}
