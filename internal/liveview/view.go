// Package liveview keeps a client-side view of sessions and messages in
// sync with the hub's event stream.
package liveview

import (
	"sync"

	"github.com/soyeahso/dialogs/internal/directory"
)

// View is the in-memory state a viewer renders from. All mutations are
// idempotent: replayed or duplicated events leave the state unchanged.
type View struct {
	mu          sync.Mutex
	openSession string
	messages    []directory.MessagePayload
	seen        map[int64]bool
	sessions    []directory.SessionSummary
}

// NewView creates an empty view.
func NewView() *View {
	return &View{seen: map[int64]bool{}}
}

// Open switches the view to a session, clearing the message pane.
func (v *View) Open(sessionID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.openSession = sessionID
	v.messages = nil
	v.seen = map[int64]bool{}
}

// OpenSession returns the currently open session id.
func (v *View) OpenSession() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.openSession
}

// Messages returns a copy of the message pane.
func (v *View) Messages() []directory.MessagePayload {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]directory.MessagePayload, len(v.messages))
	copy(out, v.messages)
	return out
}

// Sessions returns a copy of the session list.
func (v *View) Sessions() []directory.SessionSummary {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]directory.SessionSummary, len(v.sessions))
	copy(out, v.sessions)
	return out
}

// ApplyMessage appends a message to the pane. Messages for other
// sessions and duplicates by id are ignored. Returns whether the view
// changed.
func (v *View) ApplyMessage(msg directory.MessagePayload) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if msg.SessionID != v.openSession {
		return false
	}
	if v.seen[msg.ID] {
		return false
	}
	v.seen[msg.ID] = true
	v.messages = append(v.messages, msg)
	return true
}

// ReplaceMessages swaps the message pane with an authoritative fetch.
func (v *View) ReplaceMessages(sessionID string, msgs []directory.MessagePayload) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if sessionID != v.openSession {
		return
	}
	v.messages = make([]directory.MessagePayload, len(msgs))
	copy(v.messages, msgs)
	v.seen = make(map[int64]bool, len(msgs))
	for _, m := range msgs {
		v.seen[m.ID] = true
	}
}

// ApplySessionNew inserts a session at the top of the list unless it is
// already present.
func (v *View) ApplySessionNew(summary directory.SessionSummary) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, s := range v.sessions {
		if s.ID == summary.ID {
			return false
		}
	}
	v.sessions = append([]directory.SessionSummary{summary}, v.sessions...)
	return true
}

// ApplySessionUpdate patches a session in place, or inserts it at the
// top when the list has never seen it.
func (v *View) ApplySessionUpdate(summary directory.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, s := range v.sessions {
		if s.ID == summary.ID {
			v.sessions[i] = summary
			return
		}
	}
	v.sessions = append([]directory.SessionSummary{summary}, v.sessions...)
}

// SetSessions replaces the session list with an authoritative fetch.
func (v *View) SetSessions(sessions []directory.SessionSummary) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sessions = make([]directory.SessionSummary, len(sessions))
	copy(v.sessions, sessions)
}
