package events_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataloom/analystrt/pkg/database"
	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/events"
	"github.com/dataloom/analystrt/pkg/store"
	testdb "github.com/dataloom/analystrt/test/database"
	"github.com/dataloom/analystrt/test/util"
)

// streamingTestEnv holds all wired-up components for an integration test.
type streamingTestEnv struct {
	dbClient  *database.Client
	publisher *events.EventPublisher
	store     *store.Store
	manager   *events.ConnectionManager
	listener  *events.NotifyListener
	server    *httptest.Server
	sessionID string // pre-created session (satisfies FK on events)
	channel   string // session:<sessionID>
}

var integrationUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// setupStreamingTest wires all real components together against a real
// PostgreSQL database (testcontainers locally, service container in CI).
func setupStreamingTest(t *testing.T) *streamingTestEnv {
	t.Helper()

	dbClient := testdb.NewTestClient(t)
	ctx := context.Background()

	st := store.New(dbClient.Pool, "integration-test-pod")
	sess, err := st.EnsureSession(ctx, "integration-test", "")
	require.NoError(t, err)
	sessionID := sess.ID
	channel := events.SessionChannel(sessionID)

	publisher := events.NewEventPublisher(dbClient.Pool)
	manager := events.NewConnectionManager(st, 5*time.Second)

	// NotifyListener needs the base connection string (no schema search_path)
	// because NOTIFY/LISTEN is database-level, not schema-level.
	baseConnStr := util.GetBaseConnectionString(t)
	listener := events.NewNotifyListener(baseConnStr, manager)
	require.NoError(t, listener.Start(ctx))
	manager.SetListener(listener)

	t.Cleanup(func() { listener.Stop(context.Background()) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := integrationUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("WebSocket upgrade error: %v", err)
			return
		}
		manager.HandleConnection(r.Context(), conn)
	}))
	t.Cleanup(func() { server.Close() })

	return &streamingTestEnv{
		dbClient:  dbClient,
		publisher: publisher,
		store:     st,
		manager:   manager,
		listener:  listener,
		server:    server,
		sessionID: sessionID,
		channel:   channel,
	}
}

// connectWS opens a WebSocket to the test server. The connection is closed
// automatically on test cleanup.
func (env *streamingTestEnv) connectWS(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + env.server.URL[len("http"):]
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readJSONTimeout reads a JSON message from the WebSocket with a deadline.
func readJSONTimeout(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(timeout)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// writeJSON marshals msg and writes it as a single text frame.
func writeJSON(t *testing.T, conn *websocket.Conn, msg events.ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

// subscribeAndWait connects a WebSocket, reads connection.established,
// subscribes to the env's channel, reads subscription.confirmed, and waits
// for the LISTEN to propagate.
func (env *streamingTestEnv) subscribeAndWait(t *testing.T) *websocket.Conn {
	t.Helper()
	conn := env.connectWS(t)

	msg := readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", msg["type"])

	writeJSON(t, conn, events.ClientMessage{Action: "subscribe", Channel: env.channel})

	msg = readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", msg["type"])

	require.Eventually(t, func() bool {
		return env.listener.IsListening(env.channel)
	}, 2*time.Second, 10*time.Millisecond, "LISTEN did not propagate for channel %s", env.channel)

	return conn
}

func routedEvent(sessionID string) dispatcher.Event {
	return dispatcher.Event{
		Type: dispatcher.EventWorkflowRouted, SessionID: sessionID,
		Complexity: "simple", Reasoning: "single lookup",
	}
}

func contentEvent(sessionID, content string) dispatcher.Event {
	return dispatcher.Event{Type: dispatcher.EventContent, SessionID: sessionID, Content: content}
}

// --- Tests ---

func TestIntegration_PublisherPersistsAndNotifies(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	require.NoError(t, env.publisher.Publish(ctx, routedEvent(env.sessionID)))
	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventComplete, SessionID: env.sessionID,
	}))

	persisted, err := env.store.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	require.Len(t, persisted, 2)

	assert.Equal(t, events.EventTypeWorkflowRouted, persisted[0].Payload["type"])
	assert.Equal(t, "simple", persisted[0].Payload["complexity"])

	assert.Equal(t, events.EventTypeComplete, persisted[1].Payload["type"])
	assert.Greater(t, persisted[1].ID, persisted[0].ID)
}

func TestIntegration_TransientEventsNotPersisted(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	require.NoError(t, env.publisher.Publish(ctx, contentEvent(env.sessionID, "token data")))

	persisted, err := env.store.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, persisted, "transient events should not be persisted in DB")
}

func TestIntegration_EndToEnd_PublishToWebSocket(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.subscribeAndWait(t)

	require.NoError(t, env.publisher.Publish(ctx, routedEvent(env.sessionID)))

	msg := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeWorkflowRouted, msg["type"])
	assert.Equal(t, "simple", msg["complexity"])
	assert.Equal(t, env.sessionID, msg["session_id"])
	// db_event_id should be present (added by persistAndNotify after INSERT)
	assert.NotNil(t, msg["db_event_id"])
}

func TestIntegration_TransientEventDelivery(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.subscribeAndWait(t)

	require.NoError(t, env.publisher.Publish(ctx, contentEvent(env.sessionID, "streaming token")))

	msg := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeContent, msg["type"])
	assert.Equal(t, "streaming token", msg["content"])

	persisted, err := env.store.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, persisted, "transient events should not be persisted")
}

func TestIntegration_StepLifecycleProtocol(t *testing.T) {
	// Verifies one agent step's full wire sequence: start (persistent),
	// tool_call/tool_result (persistent), then agent_step_complete
	// (persistent) — matching the uniform grammar C7 emits regardless of
	// which tier routed the turn.
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.subscribeAndWait(t)
	stepID := uuid.New().String()

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventAgentStepStart, SessionID: env.sessionID,
		StepID: stepID, AgentName: "planner",
	}))
	msg := readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeAgentStepStart, msg["type"])
	assert.Equal(t, stepID, msg["step_id"])

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventToolCall, SessionID: env.sessionID,
		StepID: stepID, ToolName: "query_table",
		ToolArgs: map[string]any{"table": "reviews"},
	}))
	msg = readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeToolCall, msg["type"])
	assert.Equal(t, "query_table", msg["tool_name"])

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventToolResult, SessionID: env.sessionID,
		StepID: stepID, ToolName: "query_table", ToolResult: map[string]any{"rows": 3},
	}))
	msg = readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeToolResult, msg["type"])

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventAgentStepComplete, SessionID: env.sessionID, StepID: stepID,
	}))
	msg = readJSONTimeout(t, conn, 5*time.Second)
	assert.Equal(t, events.EventTypeAgentStepComplete, msg["type"])

	persisted, err := env.store.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	require.Len(t, persisted, 4, "all four step-lifecycle events are persistent")
}

func TestIntegration_CatchupFromRealDB(t *testing.T) {
	env := setupStreamingTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.publisher.Publish(ctx, routedEvent(env.sessionID)))
	}

	allEvents, err := env.store.GetCatchupEvents(ctx, env.channel, 0, 100)
	require.NoError(t, err)
	require.Len(t, allEvents, 3)
	firstEventID := allEvents[0].ID

	// Connect a NEW WebSocket client (simulates reconnection)
	conn := env.connectWS(t)
	msg := readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", msg["type"])

	// Subscribe — auto-catchup delivers all 3 prior events immediately
	writeJSON(t, conn, events.ClientMessage{Action: "subscribe", Channel: env.channel})
	msg = readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", msg["type"])

	for i := 0; i < 3; i++ {
		msg = readJSONTimeout(t, conn, 5*time.Second)
		assert.Equal(t, events.EventTypeWorkflowRouted, msg["type"])
	}

	// Explicit catchup from the first event's id — should return only events 2 and 3
	lastEventID := firstEventID
	writeJSON(t, conn, events.ClientMessage{Action: "catchup", Channel: env.channel, LastEventID: &lastEventID})

	for i := 0; i < 2; i++ {
		msg = readJSONTimeout(t, conn, 5*time.Second)
		assert.Equal(t, events.EventTypeWorkflowRouted, msg["type"])
	}

	// No more messages — verify with short timeout
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "should not receive more messages after catchup")
}

func TestIntegration_ResubscribeAfterUnsubscribe_KeepsListen(t *testing.T) {
	// Regression test for the race condition where a rapid unsubscribe/resubscribe
	// cycle (as caused by React StrictMode double-render) would drop the PG LISTEN.
	//
	// The race was:
	//   1. subscribe → LISTEN active
	//   2. unsubscribe → async goroutine: UNLISTEN (deferred)
	//   3. resubscribe → l.Subscribe saw "already listening" → returned early
	//   4. goroutine fired UNLISTEN → PG dropped the LISTEN
	//   5. all subsequent NOTIFY events were silently lost
	//
	// The fix has two parts:
	//   - l.Subscribe always sends LISTEN (no early return; PG handles duplicates)
	//   - the UNLISTEN goroutine re-checks m.channels and skips if resubscribed
	env := setupStreamingTest(t)
	ctx := context.Background()

	conn := env.connectWS(t)
	msg := readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "connection.established", msg["type"])

	writeJSON(t, conn, events.ClientMessage{Action: "subscribe", Channel: env.channel})
	msg = readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", msg["type"])

	require.Eventually(t, func() bool {
		return env.listener.IsListening(env.channel)
	}, 2*time.Second, 10*time.Millisecond, "initial LISTEN should propagate")

	// Rapid unsubscribe + resubscribe (mimics React StrictMode cleanup/remount)
	writeJSON(t, conn, events.ClientMessage{Action: "unsubscribe", Channel: env.channel})
	writeJSON(t, conn, events.ClientMessage{Action: "subscribe", Channel: env.channel})

	msg = readJSONTimeout(t, conn, 5*time.Second)
	require.Equal(t, "subscription.confirmed", msg["type"])

	time.Sleep(200 * time.Millisecond) // let the async UNLISTEN goroutine run
	require.True(t, env.listener.IsListening(env.channel),
		"LISTEN must survive a rapid unsubscribe/resubscribe cycle")

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventContent, SessionID: env.sessionID, Content: "should arrive after resubscribe",
	}))

	// Drain any catchup events from the resubscribe before checking for the live event
	for {
		msg = readJSONTimeout(t, conn, 5*time.Second)
		if msg["content"] == "should arrive after resubscribe" {
			break
		}
	}

	assert.Equal(t, events.EventTypeContent, msg["type"])
	assert.Equal(t, env.sessionID, msg["session_id"])
}

func TestIntegration_ListenerGenerationCounter_StaleUnlistenSkipped(t *testing.T) {
	// Tests the generation counter inside NotifyListener directly, bypassing
	// the ConnectionManager. This exercises the exact scenario from code review:
	//
	//   1. Subscribe → LISTEN, gen=1
	//   2. Concurrent Unsubscribe → captures gen=1, enqueues UNLISTEN(gen=1)
	//   3. Subscribe again → gen=2, enqueues LISTEN
	//   4. cmdCh processes: could be LISTEN then UNLISTEN(gen=1)
	//   5. processPendingCmds detects gen mismatch → skips stale UNLISTEN
	//   6. PG stays listened, l.channels stays true
	env := setupStreamingTest(t)
	ctx := context.Background()
	channel := env.channel

	require.NoError(t, env.listener.Subscribe(ctx, channel))
	require.True(t, env.listener.IsListening(channel))

	unsubDone := make(chan struct{})
	go func() {
		defer close(unsubDone)
		_ = env.listener.Unsubscribe(context.Background(), channel)
	}()

	require.NoError(t, env.listener.Subscribe(ctx, channel))
	<-unsubDone

	require.True(t, env.listener.IsListening(channel),
		"l.channels must stay true after stale UNLISTEN is skipped")

	conn := env.subscribeAndWait(t)

	require.NoError(t, env.publisher.Publish(ctx, dispatcher.Event{
		Type: dispatcher.EventContent, SessionID: env.sessionID, Content: "generation counter test",
	}))

	for {
		msg := readJSONTimeout(t, conn, 5*time.Second)
		if msg["content"] == "generation counter test" {
			break
		}
	}
}
