package domain

import "time"

// Message is a single recorded transcript line. Immutable once persisted;
// the store assigns monotonically increasing ids.
type Message struct {
	ID        int64     `json:"id"`
	ChatID    string    `json:"chat_id"`
	SessionID string    `json:"session_id"`
	Date      time.Time `json:"date"`
	Username  string    `json:"username"`
	Text      string    `json:"message"`
}
