package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dataloom/analystrt/pkg/capability"
)

func TestClassifyParsesWellFormedVerdict(t *testing.T) {
	llm := &capability.StubLLM{Responses: []capability.ChatResponse{
		{Message: capability.Message{Role: "assistant", Content: `{"complexity":"simple","reasoning":"just a greeting"}`}},
	}}
	c := New(llm, nil, nil)

	result := c.Classify(context.Background(), "Hello, how are you?", nil, "s1", "t1")

	assert.Equal(t, ComplexitySimple, result.Complexity)
	assert.Equal(t, "just a greeting", result.Reasoning)
}

func TestClassifyToleratesSurroundingProse(t *testing.T) {
	llm := &capability.StubLLM{Responses: []capability.ChatResponse{
		{Message: capability.Message{Role: "assistant", Content: "Sure thing: {\"complexity\":\"medium\",\"reasoning\":\"follow-up\"} done."}},
	}}
	c := New(llm, nil, nil)

	result := c.Classify(context.Background(), "tell me more about that", nil, "s1", "t1")

	assert.Equal(t, ComplexityMedium, result.Complexity)
}

func TestClassifyDefaultsToComplexOnUnparseableResponse(t *testing.T) {
	llm := &capability.StubLLM{Responses: []capability.ChatResponse{
		{Message: capability.Message{Role: "assistant", Content: "not json at all"}},
	}}
	c := New(llm, nil, nil)

	result := c.Classify(context.Background(), "what are my product gaps?", nil, "s1", "t1")

	assert.Equal(t, ComplexityComplex, result.Complexity)
}

func TestClassifyRejectsUnknownComplexityValue(t *testing.T) {
	llm := &capability.StubLLM{Responses: []capability.ChatResponse{
		{Message: capability.Message{Role: "assistant", Content: `{"complexity":"advanced","reasoning":"??"}`}},
	}}
	c := New(llm, nil, nil)

	result := c.Classify(context.Background(), "hmm", nil, "s1", "t1")

	assert.Equal(t, ComplexityComplex, result.Complexity)
}
