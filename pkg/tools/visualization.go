package tools

import (
	"context"
	"fmt"

	"github.com/dataloom/analystrt/pkg/convctx"
)

// ChartConfig is the payload build_visualization returns, ready for the
// client to render.
type ChartConfig struct {
	ChartType string           `json:"chart_type"`
	Title     string           `json:"title,omitempty"`
	X         string           `json:"x,omitempty"`
	Y         string           `json:"y,omitempty"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
}

func buildVisualization(_ context.Context, _ Deps, state *convctx.ContextState, args map[string]any) Result {
	sourceTable, _ := args["source_table"].(string)
	chartType, _ := args["chart_type"].(string)
	x, _ := args["x"].(string)
	y, _ := args["y"].(string)
	title, _ := args["title"].(string)

	art, ok := state.DatasetData[sourceTable]
	if !ok {
		return errorResult("InvalidArgument", fmt.Sprintf("dataset_data[%q] is not loaded", sourceTable))
	}

	var columns []string
	var rows []map[string]any
	if art.Table != nil {
		columns, rows = art.Table.Columns, art.Table.Rows
	} else if art.Descriptor != nil {
		columns, rows = art.Descriptor.Columns, art.Descriptor.Sample
	}

	if (chartType == "bar" || chartType == "line") && (x == "" || y == "") {
		return errorResult("InvalidArgument", fmt.Sprintf("chart_type %q requires both x and y", chartType))
	}

	cfg := ChartConfig{ChartType: chartType, Title: title, X: x, Y: y, Columns: columns, Rows: rows}
	return Result{
		Summary: fmt.Sprintf("Built a %s chart over %q (%d row(s)).", chartType, sourceTable, len(rows)),
		Payload: cfg,
	}
}
