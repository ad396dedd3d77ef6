package reference

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hoiarr/hoiarr/internal/platform/db"
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// queryable abstracts pgxpool.Pool and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGSource reads reference tables from Postgres. A table that does not exist
// (migrations not applied) or is empty is treated as absent.
type PGSource struct {
	pool      *pgxpool.Pool
	keyLength int
}

func NewPGSource(pool *pgxpool.Pool, keyLength int) *PGSource {
	return &PGSource{pool: pool, keyLength: keyLength}
}

func (r *PGSource) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *PGSource) Units(ctx context.Context) (*UnitHierarchy, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT unit_name, group_name FROM unit_hierarchy ORDER BY unit_name`)
	if err != nil {
		return nil, absent(err)
	}
	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.Name, &u.Group); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		units = append(units, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, absent(err)
	}
	if len(units) == 0 {
		return nil, nil
	}

	aliases := make(map[string]string)
	rows, err = r.conn(ctx).Query(ctx, `SELECT alias, unit_name FROM unit_alias`)
	if err != nil {
		if absent(err) != nil {
			return nil, err
		}
		return NewUnitHierarchy(units, nil), nil
	}
	defer rows.Close()
	for rows.Next() {
		var alias, unit string
		if err := rows.Scan(&alias, &unit); err != nil {
			return nil, fmt.Errorf("scan unit alias: %w", err)
		}
		aliases[alias] = unit
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return NewUnitHierarchy(units, aliases), nil
}

func (r *PGSource) Categories(ctx context.Context) (*CategoryTable, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT code, standard_category, clinical_category
		FROM category_reference ORDER BY code`)
	if err != nil {
		return nil, absent(err)
	}
	defer rows.Close()

	var out []CategoryRow
	for rows.Next() {
		var code string
		var std, clin *string
		if err := rows.Scan(&code, &std, &clin); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		row := CategoryRow{Code: code}
		if std != nil {
			row.Standard = *std
		}
		if clin != nil {
			row.Clinical = *clin
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, absent(err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return NewCategoryTable(out, CategoryColumns{Standard: true, Clinical: true}, r.keyLength), nil
}

func (r *PGSource) Sentinels(ctx context.Context) (*SentinelSet, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT code, impact FROM sentinel_reference`)
	if err != nil {
		return nil, absent(err)
	}
	defer rows.Close()

	var keys []SentinelKey
	for rows.Next() {
		var k SentinelKey
		if err := rows.Scan(&k.Code, &k.Impact); err != nil {
			return nil, fmt.Errorf("scan sentinel: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, absent(err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return NewSentinelSet(keys), nil
}

// Import replaces the stored reference tables with the contents of t inside
// one transaction. Nil members leave their table untouched.
func (r *PGSource) Import(ctx context.Context, t *Tables) error {
	if t == nil {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		tx := db.TxFromContext(ctx)
		if t.Units != nil {
			if _, err := tx.Exec(ctx, `DELETE FROM unit_alias`); err != nil {
				return fmt.Errorf("clear unit_alias: %w", err)
			}
			if err := replace(ctx, tx, "unit_hierarchy", []string{"unit_name", "group_name"}, t.Units.rows()); err != nil {
				return err
			}
			if _, err := tx.CopyFrom(ctx, pgx.Identifier{"unit_alias"}, []string{"alias", "unit_name"},
				pgx.CopyFromRows(t.Units.aliasRows())); err != nil {
				return fmt.Errorf("copy unit_alias: %w", err)
			}
		}
		if t.Categories != nil {
			if err := replace(ctx, tx, "category_reference",
				[]string{"code", "standard_category", "clinical_category"}, t.Categories.rows()); err != nil {
				return err
			}
		}
		if t.Sentinels != nil {
			if err := replace(ctx, tx, "sentinel_reference", []string{"code", "impact"}, t.Sentinels.rows()); err != nil {
				return err
			}
		}
		return nil
	})
}

func replace(ctx context.Context, tx pgx.Tx, table string, cols []string, rows [][]any) error {
	if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy %s: %w", table, err)
	}
	return nil
}

// absent maps "relation does not exist" to a nil error.
func absent(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return nil
	}
	return err
}
