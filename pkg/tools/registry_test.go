package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/convctx"
)

type fakeRelStore struct {
	result capability.SQLResult
	err    error
}

func (f fakeRelStore) ExecuteSQL(_ context.Context, _ string, _ []any) (capability.SQLResult, error) {
	return f.result, f.err
}

func testDeps() Deps {
	return Deps{
		LLM:             &capability.StubLLM{},
		Embedder:        capability.StubEmbedder{},
		RelationalStore: fakeRelStore{},
		VectorStore:     capability.StubVectorStore{},
	}
}

func TestInvokeUnknownToolIsNotFound(t *testing.T) {
	r := NewRegistry(testDeps())
	result := r.Invoke(context.Background(), "does_not_exist", nil, convctx.New("u1"))
	assert.True(t, result.IsError)
	assert.Equal(t, "NotFound", result.ErrorKind)
}

func TestInvokeRejectsArgsFailingSchema(t *testing.T) {
	r := NewRegistry(testDeps())
	result := r.Invoke(context.Background(), "get_dataset_data_from_sql", map[string]any{"name": "x"}, convctx.New("u1"))
	require.True(t, result.IsError)
	assert.Equal(t, "InvalidArgument", result.ErrorKind)
}

func TestInvokeRejectsCrossUserTableAccess(t *testing.T) {
	r := NewRegistry(testDeps())
	state := convctx.New("me")
	result := r.Invoke(context.Background(), "get_dataset_data_from_sql", map[string]any{
		"name":  "stolen",
		"query": "SELECT * FROM __user_other_table_x",
	}, state)

	require.True(t, result.IsError)
	assert.Equal(t, "Unauthorized", result.ErrorKind)
	assert.ErrorContains(t, assertOwnedTables("SELECT * FROM __user_other_table_x", "me"), "not owned")
	_, exists := state.DatasetData["stolen"]
	assert.False(t, exists, "no rows from an unowned table should appear in context")
}

func TestInvokeAllowsOwnedTableAccess(t *testing.T) {
	deps := testDeps()
	deps.RelationalStore = fakeRelStore{result: capability.SQLResult{
		Columns: []string{"id"},
		Rows:    []capability.SQLRow{{"id": 1}, {"id": 2}},
	}}
	r := NewRegistry(deps)
	state := convctx.New("me")

	result := r.Invoke(context.Background(), "get_dataset_data_from_sql", map[string]any{
		"name":  "mine",
		"query": "SELECT id FROM __user_me_reviews",
	}, state)

	require.False(t, result.IsError, result.Summary)
	art, ok := state.DatasetData["mine"]
	require.True(t, ok)
	assert.Equal(t, 2, art.RowCount())
}

func TestInvokeRecoversPanicAsErrorResult(t *testing.T) {
	reg := NewRegistry(testDeps())
	entry := reg.tools["format_citations"]
	entry.exec = func(ctx context.Context, deps Deps, state *convctx.ContextState, args map[string]any) Result {
		panic("boom")
	}
	reg.tools["format_citations"] = entry

	result := reg.Invoke(context.Background(), "format_citations", map[string]any{"sources": []any{}}, convctx.New("u1"))
	assert.True(t, result.IsError)
	assert.Equal(t, "Internal", result.ErrorKind)
}
