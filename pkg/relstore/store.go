// Package relstore implements capability.RelationalStore against a
// dedicated Postgres pool holding the user's uploaded tabular datasets —
// kept separate from the session/ledger pool in pkg/store so a runaway
// analytical query can never contend with turn persistence.
package relstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataloom/analystrt/pkg/capability"
)

// Store executes read-only SQL against a dataset pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. Callers are expected to have already pointed
// it at the dataset schema/database (distinct from the runtime's own
// session store).
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ExecuteSQL implements capability.RelationalStore. It rejects any
// statement that isn't a single SELECT, since the tool layer's scoping
// guarantees (row-level ownership, column allowlists) only hold for reads.
func (s *Store) ExecuteSQL(ctx context.Context, query string, params []any) (capability.SQLResult, error) {
	if err := requireSelect(query); err != nil {
		return capability.SQLResult{}, err
	}

	rows, err := s.pool.Query(ctx, query, params...)
	if err != nil {
		return capability.SQLResult{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	return scanResult(rows)
}

func requireSelect(query string) error {
	trimmed := strings.TrimSpace(query)
	trimmed = strings.TrimPrefix(trimmed, "(")
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") && !strings.HasPrefix(strings.ToUpper(trimmed), "WITH") {
		return fmt.Errorf("relstore: only SELECT statements are permitted")
	}
	if n := strings.Count(trimmed, ";"); n > 1 || (n == 1 && !strings.HasSuffix(trimmed, ";")) {
		return fmt.Errorf("relstore: multiple statements are not permitted")
	}
	return nil
}

func scanResult(rows pgx.Rows) (capability.SQLResult, error) {
	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var out []capability.SQLRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return capability.SQLResult{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(capability.SQLRow, len(columns))
		for i, col := range columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return capability.SQLResult{}, fmt.Errorf("iterate rows: %w", err)
	}

	return capability.SQLResult{Columns: columns, Rows: out}, nil
}
