package reference

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Source provides the three reference tables. A method returns a nil table
// and a nil error when its data is absent.
type Source interface {
	Units(ctx context.Context) (*UnitHierarchy, error)
	Categories(ctx context.Context) (*CategoryTable, error)
	Sentinels(ctx context.Context) (*SentinelSet, error)
}

// Load reads all three tables from src concurrently. The first error cancels
// the others and is returned.
func Load(ctx context.Context, src Source) (*Tables, error) {
	if src == nil {
		return Empty(), nil
	}

	t := &Tables{}
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		units, err := src.Units(gCtx)
		if err != nil {
			return fmt.Errorf("load unit hierarchy: %w", err)
		}
		t.Units = units
		return nil
	})
	g.Go(func() error {
		cats, err := src.Categories(gCtx)
		if err != nil {
			return fmt.Errorf("load category table: %w", err)
		}
		t.Categories = cats
		return nil
	})
	g.Go(func() error {
		sentinels, err := src.Sentinels(gCtx)
		if err != nil {
			return fmt.Errorf("load sentinel table: %w", err)
		}
		t.Sentinels = sentinels
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}
