package capability

import "context"

// VectorMatch is one hit of a similarity search.
type VectorMatch struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorStore is the capability interface for semantic search over
// embedded content, scoped by owner and namespace.
type VectorStore interface {
	// SimilaritySearch returns the k nearest neighbors of vector within
	// (owner, namespace), ordered by descending score.
	SimilaritySearch(ctx context.Context, owner, namespace string, vector []float32, k int) ([]VectorMatch, error)
}
