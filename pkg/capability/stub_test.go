package capability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubLLMChatFallsBackToGenericReply(t *testing.T) {
	llm := &StubLLM{}
	resp, err := llm.Chat(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "assistant", resp.Message.Role)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestStubLLMChatConsumesCannedResponsesInOrder(t *testing.T) {
	llm := &StubLLM{Responses: []ChatResponse{
		{Message: Message{Content: "first"}, FinishReason: "stop"},
		{Message: Message{Content: "second"}, FinishReason: "stop"},
	}}
	r1, _ := llm.Chat(context.Background(), ChatRequest{})
	r2, _ := llm.Chat(context.Background(), ChatRequest{})
	r3, _ := llm.Chat(context.Background(), ChatRequest{})

	assert.Equal(t, "first", r1.Message.Content)
	assert.Equal(t, "second", r2.Message.Content)
	assert.Equal(t, "second", r3.Message.Content, "exhausted stub repeats the last response")
}

func TestStubEmbedderReturnsCorrectDimension(t *testing.T) {
	vecs, err := StubEmbedder{}.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], EmbeddingDim)
}

func TestStubVectorStoreTruncatesToK(t *testing.T) {
	store := StubVectorStore{Matches: []VectorMatch{{ID: "1"}, {ID: "2"}, {ID: "3"}}}
	got, err := store.SimilaritySearch(context.Background(), "owner", "ns", nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
