package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/classifier"
	"github.com/dataloom/analystrt/pkg/engine"
	"github.com/dataloom/analystrt/pkg/models"
	"github.com/dataloom/analystrt/pkg/tools"
)

type fakeRelStore struct{}

func (fakeRelStore) ExecuteSQL(_ context.Context, _ string, _ []any) (capability.SQLResult, error) {
	return capability.SQLResult{}, nil
}

func testRegistry() *tools.Registry {
	return tools.NewRegistry(tools.Deps{
		LLM:             &capability.StubLLM{},
		Embedder:        capability.StubEmbedder{},
		RelationalStore: fakeRelStore{},
		VectorStore:     capability.StubVectorStore{},
		Logger:          slog.Default(),
	})
}

type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
	snapshot []byte
	persisted []PersistTurnRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]models.Session)}
}

func (f *fakeStore) EnsureSession(_ context.Context, userID, sessionID string) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID != "" {
		if s, ok := f.sessions[sessionID]; ok {
			return s, nil
		}
	}
	if sessionID == "" {
		sessionID = "generated-session"
	}
	s := models.Session{ID: sessionID, UserID: userID, Status: models.SessionStatusPending}
	f.sessions[sessionID] = s
	return s, nil
}

func (f *fakeStore) LoadHistory(_ context.Context, _ string, _ int) ([]models.HistoryTurn, error) {
	return nil, nil
}

func (f *fakeStore) LoadSnapshot(_ context.Context, _ string) ([]byte, error) {
	return f.snapshot, nil
}

func (f *fakeStore) PersistTurn(_ context.Context, req PersistTurnRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.persisted = append(f.persisted, req)
	return nil
}

func drainDispatch(ch <-chan Event) []Event {
	var out []Event
	for e := range ch {
		out = append(out, e)
	}
	return out
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestDispatchSimpleTierEmitsUniformSequenceWithNoSteps(t *testing.T) {
	store := newFakeStore()
	d := New(Deps{
		Classifier: classifier.New(&capability.StubLLM{Responses: []capability.ChatResponse{
			{Message: capability.Message{Role: "assistant", Content: `{"complexity":"simple","reasoning":"greeting"}`}},
		}}, nil, nil),
		SimpleLLM: &capability.StubLLM{Responses: []capability.ChatResponse{
			{Message: capability.Message{Role: "assistant", Content: "Hello!"}, FinishReason: "stop"},
		}},
		Store: store,
	})

	ch, err := d.Dispatch(context.Background(), "u1", models.ChatRequest{Message: "Hello, how are you?"})
	require.NoError(t, err)
	events := drainDispatch(ch)

	types := eventTypes(events)
	assert.Equal(t, EventConnected, types[0])
	assert.Equal(t, EventWorkflowRouted, types[1])
	assert.Equal(t, string(classifier.ComplexitySimple), events[1].Complexity)
	assert.Equal(t, EventComplete, types[len(types)-1])
	for _, ty := range types {
		assert.NotEqual(t, EventAgentStepStart, ty)
	}

	require.Len(t, store.persisted, 1)
	assert.Equal(t, "Hello, how are you?", store.persisted[0].UserMessage)
	assert.Equal(t, "Hello!", store.persisted[0].AssistantMessage)
	assert.Empty(t, store.persisted[0].Steps)
}

func TestDispatchComplexTierEmitsStepEventsAndFinalContent(t *testing.T) {
	store := newFakeStore()
	coordinator := models.AgentDefinition{Name: "coordinator", SystemPrompt: "route", LLMHandle: "coordinator", IsCoordinator: true}

	d := New(Deps{
		Classifier: classifier.New(&capability.StubLLM{Responses: []capability.ChatResponse{
			{Message: capability.Message{Role: "assistant", Content: `{"complexity":"complex","reasoning":"needs data"}`}},
		}}, nil, nil),
		Engine: &engine.Engine{
			Tools: testRegistry(),
			LLMs: map[string]capability.LLM{
				"coordinator": &capability.StubLLM{Responses: []capability.ChatResponse{
					{Message: capability.Message{Role: "assistant", Content: "here is your answer"}, FinishReason: "stop"},
				}},
			},
			Config: engine.DefaultConfig(),
		},
		Team:  engine.Team{Coordinator: coordinator},
		Store: store,
	})

	ch, err := d.Dispatch(context.Background(), "u1", models.ChatRequest{Message: "what are my product gaps?"})
	require.NoError(t, err)
	events := drainDispatch(ch)

	types := eventTypes(events)
	assert.Contains(t, types, EventAgentStepStart)
	assert.Contains(t, types, EventAgentStepContent)
	assert.Contains(t, types, EventAgentStepComplete)
	assert.Contains(t, types, EventContent)
	assert.Equal(t, EventComplete, types[len(types)-1])

	require.Len(t, store.persisted, 1)
	assert.Equal(t, "here is your answer", store.persisted[0].AssistantMessage)
	require.Len(t, store.persisted[0].Steps, 1)
}

func TestDispatchRejectsEmptyMessage(t *testing.T) {
	d := New(Deps{Store: newFakeStore()})
	_, err := d.Dispatch(context.Background(), "u1", models.ChatRequest{})
	require.Error(t, err)
}
