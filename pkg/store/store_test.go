package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/database"
	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/models"
)

// newTestStore starts a PostgreSQL container, applies every embedded
// migration, and returns a Store ready for use.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "test", SSLMode: "disable", MaxConns: 10, MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return New(client.Pool, "test-pod")
}

func TestStore_EnsureSession_CreatesAndClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, models.SessionStatusInProgress, sess.Status)
	assert.Equal(t, "test-pod", sess.PodID)
}

func TestStore_EnsureSession_ReclaimsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	require.NoError(t, s.PersistTurn(ctx, dispatcher.PersistTurnRequest{
		SessionID:        created.ID,
		UserMessage:      "hi",
		AssistantMessage: "hello",
	}))

	reclaimed, err := s.EnsureSession(ctx, "user-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, reclaimed.ID)
	assert.Equal(t, models.SessionStatusInProgress, reclaimed.Status)
}

func TestStore_EnsureSession_UnknownIDMintsFresh(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "00000000-0000-0000-0000-000000000099")
	require.NoError(t, err)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000099", sess.ID)
}

func TestStore_PersistTurn_AppendsMessagesAndSteps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	prediction := "the answer is 42"
	err = s.PersistTurn(ctx, dispatcher.PersistTurnRequest{
		SessionID:        sess.ID,
		UserMessage:      "what is the answer?",
		AssistantMessage: "42",
		Steps: []models.CreateAgentStepRequest{
			{AgentName: "planner", Prediction: &prediction},
		},
		Snapshot: []byte(`{"user_id":"user-1"}`),
	})
	require.NoError(t, err)

	history, err := s.LoadHistory(ctx, sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "what is the answer?", history[0].Content)
	assert.Equal(t, "assistant", history[1].Role)
	assert.Equal(t, "42", history[1].Content)

	snapshot, err := s.LoadSnapshot(ctx, sess.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":"user-1"}`, string(snapshot))

	reloaded, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusPending, reloaded.Status)
	assert.Empty(t, reloaded.PodID)
}

func TestStore_PersistTurn_SkipsUserMessageWhenEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	require.NoError(t, s.PersistTurn(ctx, dispatcher.PersistTurnRequest{
		SessionID: sess.ID, AssistantMessage: "first reply",
	}))

	history, err := s.LoadHistory(ctx, sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "assistant", history[0].Role)
}

func TestStore_LoadSnapshot_NilBeforeFirstTurn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	snapshot, err := s.LoadSnapshot(ctx, sess.ID)
	require.NoError(t, err)
	assert.Nil(t, snapshot)
}

func TestStore_LoadSnapshot_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LoadSnapshot(ctx, "00000000-0000-0000-0000-000000000099")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_GetCatchupEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	channel := "session:" + sess.ID
	var lastID int64
	for i := 0; i < 3; i++ {
		require.NoError(t, s.pool.QueryRow(ctx,
			`INSERT INTO events (session_id, channel, payload) VALUES ($1, $2, $3) RETURNING id`,
			sess.ID, channel, []byte(`{"type":"content"}`),
		).Scan(&lastID))
	}

	evts, err := s.GetCatchupEvents(ctx, channel, 0, 10)
	require.NoError(t, err)
	require.Len(t, evts, 3)
	assert.Equal(t, int(lastID), evts[2].ID)
}

func TestStore_FindOrphanedSessionsAndReclaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	// Backdate last_interaction_at so the session looks stuck.
	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET last_interaction_at = $2 WHERE id = $1`,
		sess.ID, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	orphans, err := s.FindOrphanedSessions(ctx, time.Minute)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, sess.ID, orphans[0].ID)

	require.NoError(t, s.ReclaimOrphan(ctx, sess.ID))

	reloaded, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusTimedOut, reloaded.Status)
	assert.Empty(t, reloaded.PodID)
}

func TestStore_SoftDeleteOldSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)

	_, err = s.pool.Exec(ctx,
		`UPDATE sessions SET last_interaction_at = $2, created_at = $2 WHERE id = $1`,
		sess.ID, time.Now().UTC().Add(-48*time.Hour))
	require.NoError(t, err)

	count, err := s.SoftDeleteOldSessions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_SearchSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.EnsureSession(ctx, "user-1", "")
	require.NoError(t, err)
	require.NoError(t, s.PersistTurn(ctx, dispatcher.PersistTurnRequest{
		SessionID: sess.ID, UserMessage: "show me quarterly revenue gaps", AssistantMessage: "ok",
	}))

	results, err := s.SearchSessions(ctx, "revenue", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, sess.ID, results[0].ID)
}
