package liveview

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/hub"
	"github.com/soyeahso/dialogs/internal/logging"
)

// SessionFetcher loads the authoritative state of one session, used when
// a session:update arrives for the open session.
type SessionFetcher interface {
	FetchSession(ctx context.Context, sessionID string) (directory.SessionSummary, []directory.MessagePayload, error)
}

// Agent maintains a WebSocket subscription to the hub and patches a View
// from the event stream. It reconnects with backoff and re-joins all
// rooms it was in, since the server forgets membership on disconnect.
type Agent struct {
	url     string
	view    *View
	fetcher SessionFetcher
	log     *logging.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	rooms map[string]bool
}

// NewAgent creates an agent for the given ws:// URL.
func NewAgent(url string, view *View, fetcher SessionFetcher, log *logging.Logger) *Agent {
	return &Agent{
		url:     url,
		view:    view,
		fetcher: fetcher,
		log:     log.Sub("liveview"),
		rooms:   map[string]bool{},
	}
}

// Join subscribes to a room, now and after every reconnect.
func (a *Agent) Join(room string) {
	a.mu.Lock()
	a.rooms[room] = true
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		if err := conn.WriteJSON(hub.NewAction(hub.ActionJoin, room)); err != nil {
			a.log.Warn().Err(err).Str("room", room).Msg("join failed")
		}
	}
}

// Leave unsubscribes from a room.
func (a *Agent) Leave(room string) {
	a.mu.Lock()
	delete(a.rooms, room)
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		if err := conn.WriteJSON(hub.NewAction(hub.ActionLeave, room)); err != nil {
			a.log.Warn().Err(err).Str("room", room).Msg("leave failed")
		}
	}
}

// Run connects and processes events until ctx is cancelled. Connection
// drops trigger reconnects with a capped backoff.
func (a *Agent) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := a.session(ctx); err != nil {
			a.log.Warn().Err(err).Msg("connection lost")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// session runs one connection lifetime: dial, rejoin, read loop.
func (a *Agent) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	context.AfterFunc(ctx, func() { conn.Close() })

	a.mu.Lock()
	a.conn = conn
	rooms := make([]string, 0, len(a.rooms))
	for room := range a.rooms {
		rooms = append(rooms, room)
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.conn = nil
		a.mu.Unlock()
	}()

	for _, room := range rooms {
		if err := conn.WriteJSON(hub.NewAction(hub.ActionJoin, room)); err != nil {
			return err
		}
	}
	a.log.Info().Int("rooms", len(rooms)).Msg("connected")

	for {
		var frame hub.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if frame.Type == hub.FrameTypeEvent {
			a.handleEvent(ctx, frame)
		}
	}
}

func (a *Agent) handleEvent(ctx context.Context, frame hub.Frame) {
	switch frame.Event {
	case hub.EventMessageNew:
		var msg directory.MessagePayload
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			a.log.Warn().Err(err).Msg("bad message payload")
			return
		}
		a.view.ApplyMessage(msg)

	case hub.EventSessionNew:
		var summary directory.SessionSummary
		if err := json.Unmarshal(frame.Payload, &summary); err != nil {
			a.log.Warn().Err(err).Msg("bad session payload")
			return
		}
		a.view.ApplySessionNew(summary)

	case hub.EventSessionUpdate:
		var summary directory.SessionSummary
		if err := json.Unmarshal(frame.Payload, &summary); err != nil {
			a.log.Warn().Err(err).Msg("bad session payload")
			return
		}
		a.view.ApplySessionUpdate(summary)
		if summary.ID == a.view.OpenSession() {
			a.refetch(ctx, summary.ID)
		}
	}
}

// refetch replaces the open session's pane from the HTTP source of
// truth, since an update may mean earlier events were missed.
func (a *Agent) refetch(ctx context.Context, sessionID string) {
	if a.fetcher == nil {
		return
	}
	summary, msgs, err := a.fetcher.FetchSession(ctx, sessionID)
	if err != nil {
		a.log.Warn().Err(err).Str("session", sessionID).Msg("refetch failed")
		return
	}
	a.view.ApplySessionUpdate(summary)
	a.view.ReplaceMessages(sessionID, msgs)
}
