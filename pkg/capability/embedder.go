package capability

import "context"

// EmbeddingDim is the vector width fixed by deployment configuration.
// Changing it is a breaking migration: every stored vector must be
// re-embedded, so it is not exposed as a per-call parameter.
const EmbeddingDim = 1536

// Embedder is the capability interface for turning text into fixed-width
// embedding vectors.
type Embedder interface {
	// Embed returns one vector of length EmbeddingDim per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
