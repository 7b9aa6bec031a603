package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

// clusterEps and clusterMinPts are the density-clustering parameters: two
// rows are neighbors when their cosine distance is at most clusterEps, and a
// row becomes a cluster core once it has at least clusterMinPts neighbors.
const (
	clusterEps    = 0.35
	clusterMinPts = 3
	noiseCluster  = -1
)

func clusterDataset(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
	sourceTable, _ := args["source_table"].(string)
	textColumn, _ := args["text_column"].(string)
	name, _ := args["name"].(string)
	if name == "" {
		name = sourceTable
	}

	art, ok := state.DatasetData[sourceTable]
	if !ok || art.Table == nil {
		return errorResult("InvalidArgument", fmt.Sprintf("dataset_data[%q] is not a loaded table", sourceTable))
	}
	table := art.Table

	texts := make([]string, len(table.Rows))
	for i, row := range table.Rows {
		s, _ := row[textColumn].(string)
		texts[i] = s
	}

	vecs, err := deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return errorResult("Internal", fmt.Sprintf("embedding %q failed: %v", textColumn, err))
	}

	clusterIDs := densityCluster(vecs, clusterEps, clusterMinPts)

	rows := make([]map[string]any, len(table.Rows))
	for i, row := range table.Rows {
		copied := make(map[string]any, len(row)+1)
		for k, v := range row {
			copied[k] = v
		}
		copied["__cluster_id__"] = clusterIDs[i]
		rows[i] = copied
	}
	columns := append(append([]string(nil), table.Columns...), "__cluster_id__")

	clustered := models.ClusteredTable{
		Table:      models.Table{Columns: columns, DTypes: table.DTypes, Rows: rows},
		ClusterIDs: clusterIDs,
	}

	state.WithWriteLock(func() {
		if state.Clustering == nil {
			state.Clustering = make(map[string]models.ClusteredTable)
		}
		state.Clustering[name] = clustered
	})

	numClusters, noise := summarizeClusterIDs(clusterIDs)
	return Result{
		Summary: fmt.Sprintf("Clustered %q into %d cluster(s) with %d noise row(s).", sourceTable, numClusters, noise),
		Payload: map[string]any{"name": name, "clusters": numClusters, "noise_rows": noise},
	}
}

// densityCluster is a straightforward DBSCAN over cosine distance: a point
// with at least minPts neighbors within eps becomes a cluster core and
// recruits its neighborhood; points reached by no core stay labeled noise.
func densityCluster(vecs [][]float32, eps float64, minPts int) []int {
	n := len(vecs)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = noiseCluster
	}
	visited := make([]bool, n)
	neighborsOf := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			if cosineDistance(vecs[i], vecs[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	nextCluster := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		neighbors := neighborsOf(i)
		if len(neighbors) < minPts {
			continue // stays noise unless later absorbed by another core
		}
		labels[i] = nextCluster
		queue := append([]int(nil), neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if !visited[j] {
				visited[j] = true
				jn := neighborsOf(j)
				if len(jn) >= minPts {
					queue = append(queue, jn...)
				}
			}
			if labels[j] == noiseCluster {
				labels[j] = nextCluster
			}
		}
		nextCluster++
	}
	return labels
}

func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - cos
}

func summarizeClusterIDs(ids []int) (clusters, noise int) {
	seen := make(map[int]bool)
	for _, id := range ids {
		if id == noiseCluster {
			noise++
			continue
		}
		seen[id] = true
	}
	return len(seen), noise
}
