package tools

import "github.com/dataloom/analystrt/pkg/models"

type catalogEntry struct {
	def  models.ToolDefinition
	exec ExecFunc
}

// catalog assembles the closed set of required tools. The set is declared
// statically at startup and does not change for the lifetime of the process.
func catalog(deps Deps) []catalogEntry {
	return []catalogEntry{
		{
			def: models.ToolDefinition{
				Name:        "list_user_datasets",
				Description: "Enumerate the caller's datasets with field metadata.",
				SideEffect:  models.SideEffectExternalRead,
				ArgsSchema: map[string]any{
					"type":                 "object",
					"properties":           map[string]any{},
					"additionalProperties": false,
				},
			},
			exec: listUserDatasets,
		},
		{
			def: models.ToolDefinition{
				Name:        "get_dataset_data_from_sql",
				Description: "Execute a SQL query scoped to the user's namespace and store the result as a named dataset.",
				SideEffect:  models.SideEffectExternalRead, // also context-write; recorded in the step log either way
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string", "minLength": 1},
						"query": map[string]any{"type": "string", "minLength": 1},
						"params": map[string]any{
							"type":  "array",
							"items": map[string]any{},
						},
					},
					"required":             []any{"name", "query"},
					"additionalProperties": false,
				},
			},
			exec: getDatasetDataFromSQL,
		},
		{
			def: models.ToolDefinition{
				Name:        "semantic_search",
				Description: "Embed a query, search the vector store, and store hits as a named dataset.",
				SideEffect:  models.SideEffectExternalRead,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":      map[string]any{"type": "string", "minLength": 1},
						"query":     map[string]any{"type": "string", "minLength": 1},
						"namespace": map[string]any{"type": "string", "minLength": 1},
						"k":         map[string]any{"type": "integer", "minimum": 1, "maximum": 200},
					},
					"required":             []any{"name", "query", "namespace"},
					"additionalProperties": false,
				},
			},
			exec: semanticSearch,
		},
		{
			def: models.ToolDefinition{
				Name:        "cluster_dataset",
				Description: "Run density clustering on an embedded text column of a dataset already held in context.",
				SideEffect:  models.SideEffectContextWrite,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source_table": map[string]any{"type": "string", "minLength": 1},
						"text_column":  map[string]any{"type": "string", "minLength": 1},
						"name":         map[string]any{"type": "string", "minLength": 1},
					},
					"required":             []any{"source_table", "text_column"},
					"additionalProperties": false,
				},
			},
			exec: clusterDataset,
		},
		{
			def: models.ToolDefinition{
				Name:        "detect_gaps_from_clusters",
				Description: "Compute underrepresented clusters, outlier rate, and top-3 concentration for a clustered dataset.",
				SideEffect:  models.SideEffectContextWrite,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source_table": map[string]any{"type": "string", "minLength": 1},
						"text_column":  map[string]any{"type": "string", "minLength": 1},
						"name":         map[string]any{"type": "string", "minLength": 1},
					},
					"required":             []any{"source_table"},
					"additionalProperties": false,
				},
			},
			exec: detectGapsFromClusters,
		},
		{
			def: models.ToolDefinition{
				Name:        "analyze_temporal_trends",
				Description: "Fit per-metric linear trends over a dataset's time span, auto-detecting numeric columns and grouping.",
				SideEffect:  models.SideEffectContextWrite,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source_table": map[string]any{"type": "string", "minLength": 1},
						"date_column":  map[string]any{"type": "string", "minLength": 1},
						"name":         map[string]any{"type": "string", "minLength": 1},
						"metrics": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
					"required":             []any{"source_table", "date_column"},
					"additionalProperties": false,
				},
			},
			exec: analyzeTemporalTrends,
		},
		{
			def: models.ToolDefinition{
				Name:        "build_visualization",
				Description: "Produce a chart-config payload (bar, line, pie, or table) from a named dataset already held in context.",
				SideEffect:  models.SideEffectPure,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"source_table": map[string]any{"type": "string", "minLength": 1},
						"chart_type":   map[string]any{"type": "string", "enum": []any{"bar", "line", "pie", "table"}},
						"x":            map[string]any{"type": "string"},
						"y":            map[string]any{"type": "string"},
						"title":        map[string]any{"type": "string"},
					},
					"required":             []any{"source_table", "chart_type"},
					"additionalProperties": false,
				},
			},
			exec: buildVisualization,
		},
		{
			def: models.ToolDefinition{
				Name:        "format_citations",
				Description: "Assemble source entries into a citation block.",
				SideEffect:  models.SideEffectPure,
				ArgsSchema: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"sources": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"id":    map[string]any{"type": "string"},
									"title": map[string]any{"type": "string"},
									"uri":   map[string]any{"type": "string"},
								},
								"required": []any{"id"},
							},
						},
					},
					"required":             []any{"sources"},
					"additionalProperties": false,
				},
			},
			exec: formatCitations,
		},
	}
}
