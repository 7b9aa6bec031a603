package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

func detectGapsFromClusters(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
	sourceTable, _ := args["source_table"].(string)
	textColumn, _ := args["text_column"].(string)
	name, _ := args["name"].(string)
	if name == "" {
		name = sourceTable
	}

	clustered, ok := state.Clustering[name]
	if !ok {
		if textColumn == "" {
			return errorResult("InvalidArgument", fmt.Sprintf("no clustering named %q and no text_column given to compute one", name))
		}
		clusterRes := clusterDataset(ctx, deps, state, map[string]any{
			"source_table": sourceTable, "text_column": textColumn, "name": name,
		})
		if clusterRes.IsError {
			return clusterRes
		}
		clustered, ok = state.Clustering[name]
		if !ok {
			return errorResult("Internal", "clustering step succeeded but produced no clustered table")
		}
	}

	analysis := computeGapAnalysis(sourceTable, clustered)
	state.WithWriteLock(func() {
		if state.GapAnalysis == nil {
			state.GapAnalysis = make(map[string]models.GapAnalysis)
		}
		state.GapAnalysis[name] = analysis
	})

	return Result{
		Summary: fmt.Sprintf("Gap analysis on %q: %d underrepresented cluster(s), outlier rate %.1f%%, top-3 concentration %.1f%%.",
			sourceTable, len(analysis.UnderrepresentedIDs), analysis.OutlierRate*100, analysis.Top3ConcentrationRatio*100),
		Payload: analysis,
	}
}

func computeGapAnalysis(sourceTable string, clustered models.ClusteredTable) models.GapAnalysis {
	total := len(clustered.ClusterIDs)
	sizes := make(map[int]int)
	for _, id := range clustered.ClusterIDs {
		sizes[id]++
	}

	noise := sizes[noiseCluster]
	delete(sizes, noiseCluster)

	summaries := make([]models.ClusterSummary, 0, len(sizes))
	for id, size := range sizes {
		summaries = append(summaries, models.ClusterSummary{ClusterID: id, Size: size})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Size > summaries[j].Size })

	var meanSize float64
	if len(sizes) > 0 {
		nonNoise := total - noise
		meanSize = float64(nonNoise) / float64(len(sizes))
	}

	var underrepresented []int
	for _, s := range summaries {
		if meanSize > 0 && float64(s.Size) < 0.5*meanSize {
			underrepresented = append(underrepresented, s.ClusterID)
		}
	}

	top3 := 0
	for i := 0; i < len(summaries) && i < 3; i++ {
		top3 += summaries[i].Size
	}
	var top3Ratio float64
	if nonNoise := total - noise; nonNoise > 0 {
		top3Ratio = float64(top3) / float64(nonNoise)
	}

	var outlierRate float64
	if total > 0 {
		outlierRate = float64(noise) / float64(total)
	}

	return models.GapAnalysis{
		SourceTable:            sourceTable,
		TotalRows:              total,
		Clusters:               summaries,
		UnderrepresentedIDs:    underrepresented,
		OutlierRate:            outlierRate,
		Top3ConcentrationRatio: top3Ratio,
	}
}
