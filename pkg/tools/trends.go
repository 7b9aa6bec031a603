package tools

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

func analyzeTemporalTrends(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
	sourceTable, _ := args["source_table"].(string)
	dateColumn, _ := args["date_column"].(string)
	name, _ := args["name"].(string)
	if name == "" {
		name = sourceTable
	}
	var metrics []string
	if raw, ok := args["metrics"].([]any); ok {
		for _, m := range raw {
			if s, ok := m.(string); ok {
				metrics = append(metrics, s)
			}
		}
	}

	art, ok := state.DatasetData[sourceTable]
	if !ok || art.Table == nil {
		return errorResult("InvalidArgument", fmt.Sprintf("dataset_data[%q] is not a loaded table", sourceTable))
	}
	table := art.Table

	dates, err := extractDates(table, dateColumn)
	if err != nil {
		return errorResult("InvalidArgument", err.Error())
	}
	if len(metrics) == 0 {
		metrics = detectNumericColumns(table, dateColumn)
	}
	if len(metrics) == 0 {
		return errorResult("InvalidArgument", "no numeric columns found to analyze and none were specified")
	}

	grouping := chooseGrouping(dates)
	buckets := bucketDates(dates, grouping)

	fitted := make([]models.MetricTrend, 0, len(metrics))
	for _, metric := range metrics {
		values := extractNumeric(table, metric)
		trend := fitTrendByBucket(metric, buckets, values, grouping)
		fitted = append(fitted, trend)
	}

	analysis := models.TrendAnalysis{SourceTable: sourceTable, Grouping: grouping, Metrics: fitted}
	state.WithWriteLock(func() {
		if state.TrendAnalysis == nil {
			state.TrendAnalysis = make(map[string]models.TrendAnalysis)
		}
		state.TrendAnalysis[name] = analysis
	})

	return Result{
		Summary: fmt.Sprintf("Fitted %d trend(s) on %q grouped by %s.", len(fitted), sourceTable, grouping),
		Payload: analysis,
	}
}

func extractDates(table *models.Table, column string) ([]time.Time, error) {
	out := make([]time.Time, len(table.Rows))
	for i, row := range table.Rows {
		v, ok := row[column]
		if !ok {
			return nil, fmt.Errorf("column %q not present in row %d", column, i)
		}
		switch x := v.(type) {
		case time.Time:
			out[i] = x
		case string:
			parsed, err := time.Parse(time.RFC3339, x)
			if err != nil {
				parsed, err = time.Parse("2006-01-02", x)
				if err != nil {
					return nil, fmt.Errorf("column %q row %d is not a parseable date: %v", column, i, err)
				}
			}
			out[i] = parsed
		default:
			return nil, fmt.Errorf("column %q row %d has non-date type %T", column, i, v)
		}
	}
	return out, nil
}

func detectNumericColumns(table *models.Table, exclude string) []string {
	var out []string
	for _, col := range table.Columns {
		if col == exclude {
			continue
		}
		if table.DTypes != nil {
			if dt, ok := table.DTypes[col]; ok && (dt == models.DTypeInt || dt == models.DTypeFloat) {
				out = append(out, col)
				continue
			}
		}
		if isNumericColumn(table, col) {
			out = append(out, col)
		}
	}
	return out
}

func isNumericColumn(table *models.Table, col string) bool {
	if len(table.Rows) == 0 {
		return false
	}
	for _, row := range table.Rows {
		if _, ok := asFloat(row[col]); !ok {
			return false
		}
	}
	return true
}

func extractNumeric(table *models.Table, col string) []float64 {
	out := make([]float64, len(table.Rows))
	for i, row := range table.Rows {
		v, _ := asFloat(row[col])
		out[i] = v
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func chooseGrouping(dates []time.Time) models.TrendGrouping {
	if len(dates) == 0 {
		return models.TrendGroupingDay
	}
	minT, maxT := dates[0], dates[0]
	for _, d := range dates {
		if d.Before(minT) {
			minT = d
		}
		if d.After(maxT) {
			maxT = d
		}
	}
	span := maxT.Sub(minT)
	switch {
	case span <= 21*24*time.Hour:
		return models.TrendGroupingDay
	case span <= 90*24*time.Hour:
		return models.TrendGroupingWeek
	case span <= 730*24*time.Hour:
		return models.TrendGroupingMonth
	case span <= 5*365*24*time.Hour:
		return models.TrendGroupingQuarter
	default:
		return models.TrendGroupingYear
	}
}

func bucketKey(t time.Time, grouping models.TrendGrouping) string {
	switch grouping {
	case models.TrendGroupingDay:
		return t.Format("2006-01-02")
	case models.TrendGroupingWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case models.TrendGroupingMonth:
		return t.Format("2006-01")
	case models.TrendGroupingQuarter:
		return fmt.Sprintf("%04d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	default:
		return t.Format("2006")
	}
}

func bucketDates(dates []time.Time, grouping models.TrendGrouping) []string {
	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = bucketKey(d, grouping)
	}
	return keys
}

// fitTrendByBucket groups values by date bucket, averages each bucket, and
// fits an ordinary-least-squares line over the bucket sequence index.
func fitTrendByBucket(metric string, buckets []string, values []float64, grouping models.TrendGrouping) models.MetricTrend {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for i, b := range buckets {
		sums[b] += values[i]
		counts[b]++
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	means := make([]float64, len(keys))
	for i, k := range keys {
		means[i] = sums[k] / float64(counts[k])
	}

	slope, intercept, rSquared := linearRegression(means)

	direction := "flat"
	switch {
	case slope > 1e-9:
		direction = "increasing"
	case slope < -1e-9:
		direction = "decreasing"
	}

	return models.MetricTrend{
		Metric: metric, Slope: slope, Intercept: intercept, RSquared: rSquared,
		Direction: direction, SeriesDates: keys, SeriesMeans: means,
	}
}

// linearRegression fits y = slope*x + intercept over x = 0..len(y)-1.
func linearRegression(y []float64) (slope, intercept, rSquared float64) {
	n := float64(len(y))
	if n < 2 {
		if n == 1 {
			return 0, y[0], 0
		}
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, v := range y {
		x := float64(i)
		sumX += x
		sumY += v
		sumXY += x * v
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, sumY / n, 0
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n

	meanY := sumY / n
	var ssTot, ssRes float64
	for i, v := range y {
		pred := slope*float64(i) + intercept
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - meanY) * (v - meanY)
	}
	if ssTot == 0 {
		rSquared = 0
	} else {
		rSquared = 1 - ssRes/ssTot
	}
	return slope, intercept, rSquared
}
