package capability

import "context"

// SQLRow is one row of an ExecuteSQL result, keyed by column name.
type SQLRow map[string]any

// SQLResult is the result of an ExecuteSQL call.
type SQLResult struct {
	Columns []string
	Rows    []SQLRow
}

// RelationalStore is the capability interface for the SQL tool's backing
// store. ExecuteSQL is intentionally opaque — the tool layer, not this
// interface, is responsible for scoping queries to user-owned tables.
type RelationalStore interface {
	// ExecuteSQL runs a parameterized, read-oriented query and returns its
	// result set. Implementations must reject statements other than SELECT.
	ExecuteSQL(ctx context.Context, query string, params []any) (SQLResult, error)
}
