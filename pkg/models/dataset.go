package models

// ColumnDType is the declared logical type of a table column.
type ColumnDType string

const (
	DTypeString   ColumnDType = "string"
	DTypeInt      ColumnDType = "int"
	DTypeFloat    ColumnDType = "float"
	DTypeBool     ColumnDType = "bool"
	DTypeDateTime ColumnDType = "datetime"
)

// Table is an in-memory tabular artifact: column order, per-column dtype,
// and rows addressed by column name.
type Table struct {
	Columns []string
	DTypes  map[string]ColumnDType
	Rows    []map[string]any
}

// RowCount returns len(Rows).
func (t *Table) RowCount() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// TableDescriptor is the metadata-only projection of a Table whose row
// count exceeds LARGE_TABLE_THRESHOLD: row count, columns, dtypes, and a
// sample of at most 5 rows.
type TableDescriptor struct {
	RowCount int
	Columns  []string
	DTypes   map[string]ColumnDType
	Sample   []map[string]any
}

// ClusteredTable is a Table augmented with a per-row cluster assignment.
// Cluster id -1 is the reserved noise label for density-clustering outliers.
type ClusteredTable struct {
	Table      Table
	ClusterIDs []int // parallel to Table.Rows; -1 = noise
}

// ClusterSummary describes one discovered cluster (excluding noise).
type ClusterSummary struct {
	ClusterID int
	Size      int
	Centroid  []float64
	Examples  []map[string]any
}

// GapAnalysis is the output of detect_gaps_from_clusters: underrepresented
// clusters, the outlier (noise) rate, and top-3 concentration.
type GapAnalysis struct {
	SourceTable            string
	TotalRows              int
	Clusters               []ClusterSummary
	UnderrepresentedIDs    []int   // clusters whose size < 50% of the mean cluster size
	OutlierRate            float64 // fraction of rows labeled cluster -1
	Top3ConcentrationRatio float64 // fraction of non-noise rows held by the 3 largest clusters
}

// TrendGrouping is the time bucket chosen for a trend analysis based on
// the data's date span.
type TrendGrouping string

const (
	TrendGroupingDay     TrendGrouping = "day"
	TrendGroupingWeek    TrendGrouping = "week"
	TrendGroupingMonth   TrendGrouping = "month"
	TrendGroupingQuarter TrendGrouping = "quarter"
	TrendGroupingYear    TrendGrouping = "year"
)

// MetricTrend is a fitted linear trend for one numeric column.
type MetricTrend struct {
	Metric      string
	Slope       float64
	Intercept   float64
	RSquared    float64
	Direction   string // "increasing", "decreasing", "flat"
	SeriesDates []string
	SeriesMeans []float64
}

// TrendAnalysis is the output of analyze_temporal_trends.
type TrendAnalysis struct {
	SourceTable string
	Grouping    TrendGrouping
	Metrics     []MetricTrend
}
