package tools

import (
	"context"
	"fmt"

	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/models"
)

func semanticSearch(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
	name, _ := args["name"].(string)
	query, _ := args["query"].(string)
	namespace, _ := args["namespace"].(string)
	k := 10
	if kv, ok := args["k"].(float64); ok && kv > 0 {
		k = int(kv)
	}

	vecs, err := deps.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return errorResult("Internal", fmt.Sprintf("embedding query failed: %v", err))
	}
	if len(vecs) == 0 {
		return errorResult("Internal", "embedder returned no vector for the query")
	}

	matches, err := deps.VectorStore.SimilaritySearch(ctx, state.UserID, namespace, vecs[0], k)
	if err != nil {
		return errorResult("Internal", fmt.Sprintf("vector search failed: %v", err))
	}

	columns := []string{"id", "score", "payload"}
	rows := make([]map[string]any, len(matches))
	for i, m := range matches {
		rows[i] = map[string]any{"id": m.ID, "score": m.Score, "payload": m.Payload}
	}
	table := models.Table{Columns: columns, Rows: rows}

	key := "semantic_search." + name
	state.WithWriteLock(func() {
		state.PutTable(key, table)
	})

	return Result{
		Summary: fmt.Sprintf("semantic_search found %d hit(s) for %q in namespace %q.", len(matches), query, namespace),
		Payload: map[string]any{"name": key, "hit_count": len(matches)},
	}
}
