package directory

import (
	"time"

	"github.com/soyeahso/dialogs/internal/domain"
)

// MessagePayload is the public shape of a recorded message. Internal
// usernames never appear here, only resolved display identities.
type MessagePayload struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Date        time.Time `json:"date"`
	DisplayName string    `json:"displayName"`
	IsGuest     bool      `json:"isGuest"`
	IsHost      bool      `json:"isHost"`
	Text        string    `json:"message"`
}

// SessionSummary is the public shape of a session with its aggregates.
type SessionSummary struct {
	ID           string               `json:"session_id"`
	Title        string               `json:"title"`
	StartDate    time.Time            `json:"start_date"`
	EndDate      time.Time            `json:"end_date"`
	Participants []domain.Identity    `json:"participants"`
	MessageCount int                  `json:"message_count"`
	Status       domain.SessionStatus `json:"status"`
	Author       domain.Identity      `json:"author"`
}

// SanitizeMessage replaces the internal username with the resolved
// public identity.
func (r *Resolver) SanitizeMessage(msg domain.Message) MessagePayload {
	ident := r.Resolve(msg.Username)
	return MessagePayload{
		ID:          msg.ID,
		SessionID:   msg.SessionID,
		Date:        msg.Date,
		DisplayName: ident.DisplayName,
		IsGuest:     ident.IsGuest,
		IsHost:      ident.IsHost,
		Text:        msg.Text,
	}
}

// SanitizeMessages sanitizes a slice preserving order.
func (r *Resolver) SanitizeMessages(msgs []domain.Message) []MessagePayload {
	out := make([]MessagePayload, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, r.SanitizeMessage(msg))
	}
	return out
}

// SanitizeDetails resolves the author and every participant of a session.
func (r *Resolver) SanitizeDetails(d domain.SessionDetails) SessionSummary {
	participants := make([]domain.Identity, 0, len(d.Participants))
	for _, p := range d.Participants {
		participants = append(participants, r.Resolve(p))
	}

	author := domain.Identity{}
	if d.Author != "" {
		author = r.Resolve(OperatorName(d.Author))
	}

	return SessionSummary{
		ID:           d.ID,
		Title:        d.Title,
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
		Participants: participants,
		MessageCount: d.MessageCount,
		Status:       d.Status,
		Author:       author,
	}
}

// OperatorName strips the channel prefix from an operator key such as
// "irc:alice" so the directory sees the bare internal name.
func OperatorName(author string) string {
	for i := 0; i < len(author); i++ {
		if author[i] == ':' {
			return author[i+1:]
		}
	}
	return author
}
