package capability

import (
	"context"
	"fmt"
)

// StubLLM returns canned responses for testing, without a model backend.
type StubLLM struct {
	Responses []ChatResponse // consumed in order; last one repeats once exhausted
	calls     int
}

func (s *StubLLM) Chat(_ context.Context, req ChatRequest) (ChatResponse, error) {
	if len(s.Responses) == 0 {
		return ChatResponse{
			Message:      Message{Role: "assistant", Content: fmt.Sprintf("[stub] reply to %d messages", len(req.Messages))},
			FinishReason: "stop",
		}, nil
	}
	idx := s.calls
	if idx >= len(s.Responses) {
		idx = len(s.Responses) - 1
	}
	s.calls++
	return s.Responses[idx], nil
}

func (s *StubLLM) Stream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	resp, err := s.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan StreamChunk, 2)
	ch <- StreamChunk{TextDelta: resp.Message.Content}
	ch <- StreamChunk{Usage: &resp.Usage, FinishReason: resp.FinishReason}
	close(ch)
	return ch, nil
}

// StubEmbedder returns zero vectors of the correct dimension, for testing
// without a real embedding provider.
type StubEmbedder struct{}

func (StubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, EmbeddingDim)
	}
	return out, nil
}

// StubVectorStore returns its canned Matches (none by default), truncated to
// k, for testing without a real vector backend.
type StubVectorStore struct {
	Matches []VectorMatch
}

func (s StubVectorStore) SimilaritySearch(_ context.Context, _, _ string, _ []float32, k int) ([]VectorMatch, error) {
	if k < len(s.Matches) {
		return s.Matches[:k], nil
	}
	return s.Matches, nil
}
