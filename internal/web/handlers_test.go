package web

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/dialogs/internal/config"
	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/hub"
	"github.com/soyeahso/dialogs/internal/logging"
	"github.com/soyeahso/dialogs/internal/store"
	"github.com/soyeahso/dialogs/internal/syncer"
)

type testEnv struct {
	srv   *Server
	http  *httptest.Server
	store *store.RecordingStore
	hub   *hub.Hub
	bus   *hub.Broadcaster
}

func newTestEnv(t *testing.T, cfg config.Config, entries []domain.UserMetadata, opts ...ServerOption) *testEnv {
	t.Helper()
	log := logging.New(nil, "silent")

	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := directory.NewResolver(&directory.StaticSource{Entries: entries}, time.Hour, log)
	h := hub.New(log)
	rs := store.NewRecordingStore(db)

	bus := hub.NewBroadcaster(h, rs, resolver, log)
	opts = append([]ServerOption{WithNotifier(bus)}, opts...)

	srv := New(cfg, db, resolver, h, log, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, store: rs, hub: h, bus: bus}
}

func (e *testEnv) seedSession(t *testing.T, id, title, author string, texts ...string) {
	t.Helper()
	require.NoError(t, e.store.SaveSession(domain.Session{
		ID:     id,
		Title:  title,
		Status: domain.StatusActive,
		Author: author,
	}))
	for _, text := range texts {
		_, err := e.store.SaveMessage(domain.Message{
			ChatID:    "#dialogs",
			SessionID: id,
			Date:      time.Now(),
			Username:  "alice",
			Text:      text,
		})
		require.NoError(t, err)
	}
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func doRequest(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)

	var body map[string]any
	resp := getJSON(t, env.http.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestSessions_ListsIDs(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "First", "irc:alice")
	env.seedSession(t, "session_2_1", "Second", "irc:alice")

	var body struct {
		Sessions []string `json:"sessions"`
	}
	resp := getJSON(t, env.http.URL+"/sessions", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.ElementsMatch(t, []string{"session_1_1", "session_2_1"}, body.Sessions)
}

func TestSessionsDetails_SanitizesNames(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), []domain.UserMetadata{
		{OriginalName: "alice", Override: "Alice L.", IsHost: true},
	})
	env.seedSession(t, "session_1_1", "Design talk", "irc:alice", "hello")

	resp, raw := doRequest(t, http.MethodGet, env.http.URL+"/sessions-details", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := string(raw)
	assert.Contains(t, body, "Alice L.")
	assert.NotContains(t, body, `"username"`)
}

func TestSession_ReturnsSummaryAndTranscript(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), []domain.UserMetadata{
		{OriginalName: "alice", Override: "Alice L."},
	})
	env.seedSession(t, "session_1_1", "Design talk", "irc:alice", "hello", "world")

	var body struct {
		Session  directory.SessionSummary   `json:"session"`
		Messages []directory.MessagePayload `json:"messages"`
	}
	resp := getJSON(t, env.http.URL+"/session/session_1_1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "Design talk", body.Session.Title)
	assert.Equal(t, "Alice L.", body.Session.Author.DisplayName)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "hello", body.Messages[0].Text)
	assert.Equal(t, "Alice L.", body.Messages[0].DisplayName)
}

func TestSession_NotFound(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	resp := getJSON(t, env.http.URL+"/session/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMessages_BySession(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), []domain.UserMetadata{
		{OriginalName: "alice", Override: "Alice L.", IsHost: true},
	})
	env.seedSession(t, "session_1_1", "Design talk", "irc:alice", "hello")

	var body struct {
		Session      directory.SessionSummary   `json:"session"`
		Messages     []directory.MessagePayload `json:"messages"`
		UserMetadata map[string]domain.Identity `json:"userMetadata"`
	}
	resp := getJSON(t, env.http.URL+"/messages?session_id=session_1_1", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, body.Messages, 1)
	// Metadata is keyed by display name, never by the internal name.
	ident, ok := body.UserMetadata["Alice L."]
	require.True(t, ok)
	assert.True(t, ident.IsHost)
	_, leaked := body.UserMetadata["alice"]
	assert.False(t, leaked)
}

func TestMessages_AllGroupedByChatID(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice", "one", "two")

	var body struct {
		Messages map[string][]directory.MessagePayload `json:"messages"`
	}
	resp := getJSON(t, env.http.URL+"/messages", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Messages["#dialogs"], 2)
}

func TestSessionStatus_Validates(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice")

	resp, _ := doRequest(t, http.MethodPut, env.http.URL+"/session/session_1_1/status",
		map[string]string{"status": "bogus"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPut, env.http.URL+"/session/nope/status",
		map[string]string{"status": "paused"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionStatus_RejectsInvalidTransition(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice")
	require.NoError(t, env.store.UpdateSessionStatus("session_1_1", domain.StatusCompleted))

	resp, _ := doRequest(t, http.MethodPut, env.http.URL+"/session/session_1_1/status",
		map[string]string{"status": "active"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestSessionStatus_PersistsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice")

	conn := dialViewer(t, env.http.URL)
	joinRoom(t, conn, hub.RoomSessions)
	waitForMembers(t, env.hub, hub.RoomSessions, 1)

	resp, _ := doRequest(t, http.MethodPut, env.http.URL+"/session/session_1_1/status",
		map[string]string{"status": "paused"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sess, err := env.store.GetSession("session_1_1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, sess.Status)

	frame := readFrame(t, conn)
	assert.Equal(t, hub.EventSessionUpdate, frame.Event)
	assert.Contains(t, string(frame.Payload), `"paused"`)
}

func TestChatIDs(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice", "hello")

	var body struct {
		ChatIDs []string `json:"chat_ids"`
	}
	resp := getJSON(t, env.http.URL+"/chat_ids", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"#dialogs"}, body.ChatIDs)
}

func TestAdmin_KeyRequired(t *testing.T) {
	cfg := config.Defaults()
	cfg.Admin.Key = "sekrit"
	env := newTestEnv(t, cfg, nil)

	resp, _ := doRequest(t, http.MethodPost, env.http.URL+"/admin/reset-db", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodPost, env.http.URL+"/admin/reset-db", nil,
		map[string]string{"X-Admin-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdmin_NoKeyConfigured(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	resp, _ := doRequest(t, http.MethodPost, env.http.URL+"/admin/reset-db", nil,
		map[string]string{"X-Admin-Key": "anything"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdmin_ResetDB(t *testing.T) {
	cfg := config.Defaults()
	cfg.Admin.Key = "sekrit"
	env := newTestEnv(t, cfg, nil)
	env.seedSession(t, "session_1_1", "Talk", "irc:alice", "hello")

	resp, _ := doRequest(t, http.MethodPost, env.http.URL+"/admin/reset-db", nil,
		map[string]string{"X-Admin-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	sessions, err := env.store.ListSessions()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestAdmin_SyncEndpoints(t *testing.T) {
	cfg := config.Defaults()
	cfg.Admin.Key = "sekrit"

	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	rs := store.NewRecordingStore(db)
	resolver := directory.NewResolver(&directory.StaticSource{Entries: []domain.UserMetadata{
		{OriginalName: "alice", Override: "Alice L."},
	}}, time.Hour, log)
	sy := syncer.New(rs, resolver, log)

	env := newTestEnv(t, cfg, nil, WithSyncer(sy))
	env.seedSession(t, "session_1_1", "Talk", "irc:alice")

	resp, _ := doRequest(t, http.MethodPost, env.http.URL+"/admin/sync", nil,
		map[string]string{"X-Admin-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var status syncer.Status
	resp, raw := doRequest(t, http.MethodGet, env.http.URL+"/admin/sync-status", nil,
		map[string]string{"X-Admin-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(raw, &status))
	assert.False(t, status.LastRun.IsZero())
}

func TestAdmin_SyncUnconfigured(t *testing.T) {
	cfg := config.Defaults()
	cfg.Admin.Key = "sekrit"
	env := newTestEnv(t, cfg, nil)

	resp, _ := doRequest(t, http.MethodPost, env.http.URL+"/admin/sync", nil,
		map[string]string{"X-Admin-Key": "sekrit"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)
	resp := getJSON(t, env.http.URL+"/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestID_Echoed(t *testing.T) {
	env := newTestEnv(t, config.Defaults(), nil)

	resp, _ := doRequest(t, http.MethodGet, env.http.URL+"/health", nil,
		map[string]string{"X-Request-ID": "req-123"})
	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))

	resp, _ = doRequest(t, http.MethodGet, env.http.URL+"/health", nil, nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

// WebSocket test helpers.

func dialViewer(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func joinRoom(t *testing.T, conn *websocket.Conn, room string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(hub.NewAction(hub.ActionJoin, room)))
}

func readFrame(t *testing.T, conn *websocket.Conn) hub.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame hub.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func waitForMembers(t *testing.T, h *hub.Hub, room string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.RoomCount(room) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("room %s never reached %d members", room, want)
}
