package convctx

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataloom/analystrt/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewEmptyState(t *testing.T) {
	s := New("user-1")
	assert.Equal(t, "user-1", s.UserID)
	assert.Empty(t, s.DatasetData)
	assert.Empty(t, s.Clustering)
	assert.Empty(t, s.ConversationHistory)
}

func TestPutTableDegradesAboveThreshold(t *testing.T) {
	s := New("user-1")
	s.Threshold = 2
	rows := []map[string]any{{"a": 1}, {"a": 2}, {"a": 3}}
	s.PutTable("reviews", models.Table{Columns: []string{"a"}, Rows: rows})

	art := s.DatasetData["reviews"]
	require.True(t, art.IsDescriptor())
	assert.Equal(t, 3, art.RowCount())
	assert.Len(t, art.Descriptor.Sample, 3)
}

func TestPutTableKeepsFullRowsAtThreshold(t *testing.T) {
	s := New("user-1")
	s.Threshold = LargeTableThreshold
	rows := make([]map[string]any, LargeTableThreshold)
	for i := range rows {
		rows[i] = map[string]any{"a": i}
	}
	s.PutTable("reviews", models.Table{Columns: []string{"a"}, Rows: rows})

	art := s.DatasetData["reviews"]
	assert.False(t, art.IsDescriptor())
	assert.Equal(t, LargeTableThreshold, art.RowCount())
}

func TestEncodeRestoreRoundTrip(t *testing.T) {
	s := New("user-1")
	s.Threshold = LargeTableThreshold
	when := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	s.PutTable("reviews", models.Table{
		Columns: []string{"id", "created_at", "score"},
		DTypes: map[string]models.ColumnDType{
			"id": models.DTypeInt, "created_at": models.DTypeDateTime, "score": models.DTypeFloat,
		},
		Rows: []map[string]any{
			{"id": 1, "created_at": when, "score": 4.5},
		},
	})
	s.AttachHistory([]models.HistoryTurn{{Role: "user", Content: "hi"}})

	snapshot := Encode(discardLogger(), s)
	restored := Restore(discardLogger(), snapshot)

	require.Contains(t, restored.DatasetData, "reviews")
	art := restored.DatasetData["reviews"]
	require.False(t, art.IsDescriptor())
	require.Len(t, art.Table.Rows, 1)
	assert.Equal(t, when, art.Table.Rows[0]["created_at"])
	assert.Equal(t, []models.HistoryTurn{{Role: "user", Content: "hi"}}, restored.ConversationHistory)
}

func TestEncodeCoercesUnencodableValue(t *testing.T) {
	s := New("user-1")
	s.PutTable("weird", models.Table{
		Columns: []string{"fn"},
		Rows:    []map[string]any{{"fn": func() {}}},
	})

	snapshot := Encode(discardLogger(), s)
	restored := Restore(discardLogger(), snapshot)

	art := restored.DatasetData["weird"]
	require.NotNil(t, art.Table)
	assert.IsType(t, "", art.Table.Rows[0]["fn"])
}

func TestRestoreMalformedSnapshotYieldsFreshState(t *testing.T) {
	s := Restore(discardLogger(), []byte("not json"))
	require.NotNil(t, s)
	assert.Empty(t, s.DatasetData)
}

func TestRestorePreservesUnknownTopLevelKeys(t *testing.T) {
	snapshot := []byte(`{"user_id":"u1","future_field":{"x":1}}`)
	restored := Restore(discardLogger(), snapshot)
	reencoded := Encode(discardLogger(), restored)
	assert.Contains(t, string(reencoded), "future_field")
}
