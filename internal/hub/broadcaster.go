package hub

import (
	"github.com/soyeahso/dialogs/internal/directory"
	"github.com/soyeahso/dialogs/internal/domain"
	"github.com/soyeahso/dialogs/internal/logging"
)

// DetailsLoader supplies session summaries for lifecycle events.
type DetailsLoader interface {
	SessionDetails(id string) (domain.SessionDetails, error)
}

// Broadcaster turns recording events into sanitized room emissions.
// All failures are logged and swallowed: the recorder's persist already
// succeeded, and delivery here is best effort.
type Broadcaster struct {
	hub      *Hub
	store    DetailsLoader
	resolver *directory.Resolver
	log      *logging.Logger
}

// NewBroadcaster wires the hub to the store and resolver.
func NewBroadcaster(h *Hub, store DetailsLoader, resolver *directory.Resolver, log *logging.Logger) *Broadcaster {
	return &Broadcaster{
		hub:      h,
		store:    store,
		resolver: resolver,
		log:      log.Sub("broadcast"),
	}
}

// MessageNew emits a sanitized message to its session's room.
func (b *Broadcaster) MessageNew(msg domain.Message) {
	payload := b.resolver.SanitizeMessage(msg)
	b.hub.Emit(SessionRoom(msg.SessionID), EventMessageNew, payload)
}

// SessionNew announces a freshly started session to the global room.
func (b *Broadcaster) SessionNew(sessionID string) {
	summary, ok := b.loadSummary(sessionID)
	if !ok {
		return
	}
	b.hub.Emit(RoomSessions, EventSessionNew, summary)
}

// SessionUpdate emits the refreshed summary to the session's own room
// and to the global room, so both detail and list views converge.
func (b *Broadcaster) SessionUpdate(sessionID string) {
	summary, ok := b.loadSummary(sessionID)
	if !ok {
		return
	}
	b.hub.Emit(SessionRoom(sessionID), EventSessionUpdate, summary)
	b.hub.Emit(RoomSessions, EventSessionUpdate, summary)
}

func (b *Broadcaster) loadSummary(sessionID string) (directory.SessionSummary, bool) {
	details, err := b.store.SessionDetails(sessionID)
	if err != nil {
		b.log.Warn().Err(err).Str("session", sessionID).Msg("loading session for broadcast failed")
		return directory.SessionSummary{}, false
	}
	return b.resolver.SanitizeDetails(details), true
}
