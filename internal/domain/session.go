package domain

import "time"

// SessionStatus is the lifecycle state of a recording session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
)

// Valid reports whether s is a known status value.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition. Completed is terminal.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case StatusActive:
		return next == StatusPaused || next == StatusCompleted
	case StatusPaused:
		return next == StatusActive || next == StatusCompleted
	default:
		return false
	}
}

// Session is one bounded recording of a conversation.
type Session struct {
	ID        string        `json:"session_id"`
	Title     string        `json:"title"`
	Status    SessionStatus `json:"status"`
	Author    string        `json:"author"`
	CreatedAt time.Time     `json:"created_at"`

	// Display metadata back-filled from the directory by the syncer.
	AuthorDisplay string `json:"author_display,omitempty"`
	AuthorIsGuest bool   `json:"author_is_guest,omitempty"`
	AuthorIsHost  bool   `json:"author_is_host,omitempty"`
}

// SessionDetails is a session enriched with aggregates derived from its
// messages: first/last message dates, distinct participants, and count.
type SessionDetails struct {
	ID           string        `json:"session_id"`
	Title        string        `json:"title"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	Participants []string      `json:"participants"`
	MessageCount int           `json:"message_count"`
	Status       SessionStatus `json:"status"`
	Author       string        `json:"author"`
}
