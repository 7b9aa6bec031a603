package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

// DatasetField is one column of a user dataset, as returned by list_user_datasets.
type DatasetField struct {
	Table  string `json:"table"`
	Column string `json:"column"`
	DType  string `json:"dtype"`
}

func listUserDatasets(ctx context.Context, deps Deps, state *convctx.ContextState, _ map[string]any) Result {
	prefix := "__user_" + state.UserID + "_%"
	res, err := deps.RelationalStore.ExecuteSQL(ctx,
		`SELECT table_name, column_name, data_type
		 FROM information_schema.columns
		 WHERE table_name LIKE $1
		 ORDER BY table_name, ordinal_position`,
		[]any{prefix})
	if err != nil {
		return errorResult("Internal", fmt.Sprintf("listing datasets failed: %v", err))
	}

	fields := make([]DatasetField, 0, len(res.Rows))
	tableSet := make(map[string]bool)
	for _, row := range res.Rows {
		table, _ := row["table_name"].(string)
		column, _ := row["column_name"].(string)
		dtype, _ := row["data_type"].(string)
		fields = append(fields, DatasetField{Table: table, Column: column, DType: dtype})
		tableSet[table] = true
	}

	tables := make([]string, 0, len(tableSet))
	for t := range tableSet {
		tables = append(tables, t)
	}

	return Result{
		Summary: fmt.Sprintf("Found %d dataset(s): %s", len(tables), strings.Join(tables, ", ")),
		Payload: map[string]any{"tables": tables, "fields": fields},
	}
}

func getDatasetDataFromSQL(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
	name, _ := args["name"].(string)
	query, _ := args["query"].(string)
	rawParams, _ := args["params"].([]any)

	if err := assertOwnedTables(query, state.UserID); err != nil {
		return errorResult("Unauthorized", err.Error())
	}

	res, err := deps.RelationalStore.ExecuteSQL(ctx, query, rawParams)
	if err != nil {
		return errorResult("InvalidArgument", fmt.Sprintf("query failed: %v", err))
	}

	table := sqlResultToTable(res)
	state.WithWriteLock(func() {
		state.PutTable(name, table)
	})

	art := state.DatasetData[name]
	return Result{
		Summary: fmt.Sprintf("Loaded %d row(s) into dataset_data[%q].", art.RowCount(), name),
		Payload: map[string]any{"name": name, "row_count": art.RowCount(), "columns": res.Columns},
	}
}

func sqlResultToTable(res capability.SQLResult) models.Table {
	rows := make([]map[string]any, len(res.Rows))
	for i, r := range res.Rows {
		rows[i] = map[string]any(r)
	}
	return models.Table{Columns: res.Columns, Rows: rows}
}
