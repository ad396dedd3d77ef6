package incident

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/hoiarr/hoiarr/internal/platform/tabular"
)

// ErrUnreadableTable wraps failures to decode an uploaded table.
var ErrUnreadableTable = errors.New("unreadable table")

// Service ingests uploaded tables into the session store and serves
// filtered views of the active batch.
type Service struct {
	pipeline *Pipeline
	store    *Store
}

func NewService(p *Pipeline, s *Store) *Service {
	if s == nil {
		s = NewStore()
	}
	return &Service{pipeline: p, store: s}
}

// Pipeline returns the pipeline batches are processed with.
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// Ingest decodes a CSV or XLSX table from r, processes it and installs the
// result as the active batch. On error the store is left untouched.
func (s *Service) Ingest(ctx context.Context, source string, r io.Reader) (*Batch, error) {
	table, _, err := tabular.Read(r)
	if err != nil {
		return nil, s.unreadable(source, err)
	}
	return s.install(ctx, source, table)
}

// IngestFile reads a table from disk, choosing the format by extension.
func (s *Service) IngestFile(ctx context.Context, path string) (*Batch, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, s.unreadable(filepath.Base(path), err)
	}
	return s.install(ctx, filepath.Base(path), table)
}

func (s *Service) unreadable(source string, err error) error {
	s.pipeline.observeFailure(FailureUnreadableTable)
	s.pipeline.logger.Warn().Err(err).Str("source", source).Msg("table unreadable")
	return fmt.Errorf("%w: %w", ErrUnreadableTable, err)
}

func (s *Service) install(ctx context.Context, source string, table *tabular.Table) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := s.pipeline.Process(source, table.Headers, table.Rows)
	if err != nil {
		return nil, err
	}
	s.store.Replace(b)
	return b, nil
}

// Current returns the active batch.
func (s *Service) Current() (*Batch, error) {
	return s.store.Current()
}

// Records returns the records of the active batch that match f.
func (s *Service) Records(f Filter) ([]Record, error) {
	b, err := s.store.Current()
	if err != nil {
		return nil, err
	}
	return f.Apply(b.Records), nil
}

// Export writes the filtered view as CSV.
func (s *Service) Export(w io.Writer, f Filter) (int, error) {
	records, err := s.Records(f)
	if err != nil {
		return 0, err
	}
	cw := tabular.NewCSVWriter(w)
	if err := cw.Write(ExportHeaders); err != nil {
		return 0, err
	}
	for i := range records {
		if err := cw.Write(records[i].ExportRow()); err != nil {
			return i, err
		}
	}
	return len(records), cw.Flush()
}
