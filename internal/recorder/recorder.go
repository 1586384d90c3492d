// Package recorder implements the per-operator recording state machine
// that turns chat commands and messages into persisted sessions.
package recorder

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// State is the recording state of one operator.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingTitle State = "awaiting_title"
	StateRecording     State = "recording"
	StatePaused        State = "paused"
)

// SessionStore is the persistence surface the recorder needs.
type SessionStore interface {
	SaveSession(sess domain.Session) error
	SaveMessage(msg domain.Message) (int64, error)
}

// Broadcaster receives notifications after successful persists. The
// recorder calls it while still holding the operator lock, so per-session
// broadcast order matches persistence order.
type Broadcaster interface {
	SessionNew(sessionID string)
	SessionUpdate(sessionID string)
	MessageNew(msg domain.Message)
}

// NopBroadcaster discards all notifications.
type NopBroadcaster struct{}

func (NopBroadcaster) SessionNew(string)         {}
func (NopBroadcaster) SessionUpdate(string)      {}
func (NopBroadcaster) MessageNew(domain.Message) {}

// Recorder tracks recording state independently per operator key.
type Recorder struct {
	store SessionStore
	bus   Broadcaster
	log   *logging.Logger

	mu  sync.Mutex
	ops map[string]*operator
}

// operator holds one operator's state. Its mutex is held across the
// precondition check, the persist, and the broadcast so racing commands
// serialize and cannot double-apply.
type operator struct {
	mu        sync.Mutex
	state     State
	sessionID string
	title     string
}

// OperatorKey builds the recording key for a channel user, e.g.
// "irc:alice". Keys are case-insensitive on the user part.
func OperatorKey(channelID, from string) string {
	return channelID + ":" + strings.ToLower(from)
}

// New creates a recorder. A nil bus disables broadcasting.
func New(store SessionStore, bus Broadcaster, log *logging.Logger) *Recorder {
	if bus == nil {
		bus = NopBroadcaster{}
	}
	return &Recorder{
		store: store,
		bus:   bus,
		log:   log.Sub("recorder"),
		ops:   map[string]*operator{},
	}
}

func (r *Recorder) operator(key string) *operator {
	r.mu.Lock()
	defer r.mu.Unlock()
	op, ok := r.ops[key]
	if !ok {
		op = &operator{state: StateIdle}
		r.ops[key] = op
	}
	return op
}

// State returns the current state for an operator key.
func (r *Recorder) State(key string) State {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// SessionID returns the operator's current session id, if any.
func (r *Recorder) SessionID(key string) string {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.sessionID
}

// Start begins a new recording for the operator. The session id is
// generated up front; persistence waits until a title is supplied.
func (r *Recorder) Start(key string) (string, error) {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()

	switch op.state {
	case StateRecording, StatePaused:
		return "Already recording. Use !stop to finish the current session first.", nil
	case StateAwaitingTitle:
		return "Recording is about to start. What should this session be called?", nil
	}

	op.state = StateAwaitingTitle
	op.sessionID = newSessionID()
	op.title = ""
	r.log.Info().Str("operator", key).Str("session", op.sessionID).Msg("recording requested")
	return "Recording started. What should this session be called?", nil
}

// Pause suspends an active recording. A no-op outside recording.
func (r *Recorder) Pause(key string) (string, error) {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.state != StateRecording {
		return "Nothing to pause, no active recording.", nil
	}

	if err := r.persistStatus(op.sessionID, domain.StatusPaused); err != nil {
		return "", err
	}
	op.state = StatePaused
	r.bus.SessionUpdate(op.sessionID)
	r.log.Info().Str("operator", key).Str("session", op.sessionID).Msg("recording paused")
	return "Recording paused. Use !resume to continue.", nil
}

// Resume continues a paused recording. A no-op outside paused.
func (r *Recorder) Resume(key string) (string, error) {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.state != StatePaused {
		return "Nothing to resume, recording is not paused.", nil
	}

	if err := r.persistStatus(op.sessionID, domain.StatusActive); err != nil {
		return "", err
	}
	op.state = StateRecording
	r.bus.SessionUpdate(op.sessionID)
	r.log.Info().Str("operator", key).Str("session", op.sessionID).Msg("recording resumed")
	return "Recording resumed.", nil
}

// Stop finishes the recording, valid from recording or paused. Racing
// stops resolve to one completed persist and one broadcast because the
// loser finds the operator already idle.
func (r *Recorder) Stop(key string) (string, error) {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()

	switch op.state {
	case StateAwaitingTitle:
		op.state = StateIdle
		op.sessionID = ""
		return "Recording cancelled before it began.", nil
	case StateRecording, StatePaused:
	default:
		return "No active recording to stop.", nil
	}

	sessionID, title := op.sessionID, op.title
	if err := r.persistStatus(sessionID, domain.StatusCompleted); err != nil {
		return "", err
	}
	op.state = StateIdle
	op.sessionID = ""
	op.title = ""
	r.bus.SessionUpdate(sessionID)
	r.log.Info().Str("operator", key).Str("session", sessionID).Msg("recording stopped")

	if title != "" {
		return fmt.Sprintf("Recording stopped. Session %q saved.", title), nil
	}
	return "Recording stopped.", nil
}

// HandleText processes a non-command message from the operator's chat.
// In awaiting_title it consumes the text as the session title. In
// recording it persists and broadcasts the message. Otherwise it returns
// a notice, suppressed for very short texts so reactions and typos don't
// trigger chatter.
func (r *Recorder) HandleText(key string, msg domain.InboundMessage) (string, error) {
	op := r.operator(key)
	op.mu.Lock()
	defer op.mu.Unlock()

	switch op.state {
	case StateAwaitingTitle:
		return r.beginSession(op, key, msg)
	case StateRecording:
		return "", r.record(op, msg)
	case StatePaused:
		return "Recording is paused. Use !resume to continue.", nil
	default:
		if len(msg.Body) > 3 {
			return "Not currently recording. Use !record to start a session.", nil
		}
		return "", nil
	}
}

// beginSession persists the new session under the supplied title. A
// failed persist rolls the operator back to idle so a later !record
// starts clean.
func (r *Recorder) beginSession(op *operator, key string, msg domain.InboundMessage) (string, error) {
	title := strings.TrimSpace(msg.Body)
	if title == "" {
		return "A session needs a title. What should it be called?", nil
	}

	sess := domain.Session{
		ID:        op.sessionID,
		Title:     title,
		Status:    domain.StatusActive,
		Author:    key,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.SaveSession(sess); err != nil {
		op.state = StateIdle
		op.sessionID = ""
		return "", fmt.Errorf("starting session: %w", err)
	}

	op.state = StateRecording
	op.title = title
	r.bus.SessionNew(sess.ID)
	r.log.Info().Str("operator", key).Str("session", sess.ID).Str("title", title).Msg("session started")
	return fmt.Sprintf("Recording %q. Everything said here is on the record until !stop.", title), nil
}

func (r *Recorder) record(op *operator, msg domain.InboundMessage) error {
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	m := domain.Message{
		ChatID:    msg.ChatID,
		SessionID: op.sessionID,
		Date:      ts,
		Username:  msg.From,
		Text:      msg.Body,
	}
	id, err := r.store.SaveMessage(m)
	if err != nil {
		return fmt.Errorf("recording message: %w", err)
	}
	m.ID = id
	r.bus.MessageNew(m)
	return nil
}

func (r *Recorder) persistStatus(sessionID string, status domain.SessionStatus) error {
	if err := r.store.SaveSession(domain.Session{ID: sessionID, Status: status}); err != nil {
		return fmt.Errorf("persisting status %s: %w", status, err)
	}
	return nil
}

// newSessionID generates an id in the historical format used by the web
// tier's permalinks.
func newSessionID() string {
	return fmt.Sprintf("session_%d_%d", time.Now().UnixMilli(), rand.Intn(1000))
}
