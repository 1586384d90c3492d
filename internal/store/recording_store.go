package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/dialogs/internal/domain"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("store: not found")

// RecordingStore persists sessions and their transcript messages.
type RecordingStore struct {
	db *DB
}

// NewRecordingStore creates a recording store using the given database.
func NewRecordingStore(db *DB) *RecordingStore {
	return &RecordingStore{db: db}
}

// SaveSession upserts a session. Fields left empty on the incoming value
// keep their stored value, so partial updates merge instead of clobber.
func (s *RecordingStore) SaveSession(sess domain.Session) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin save session: %w", err)
	}
	defer tx.Rollback()

	var existing domain.Session
	var createdAt string
	err = tx.QueryRow(
		`SELECT session_id, title, created_at, status, author, author_display, author_is_guest, author_is_host
		 FROM sessions WHERE session_id = ?`, sess.ID,
	).Scan(
		&existing.ID, &existing.Title, &createdAt, &existing.Status, &existing.Author,
		&existing.AuthorDisplay, &existing.AuthorIsGuest, &existing.AuthorIsHost,
	)
	switch {
	case err == nil:
		if sess.Title == "" {
			sess.Title = existing.Title
		}
		if sess.Status == "" {
			sess.Status = existing.Status
		}
		if sess.Author == "" {
			sess.Author = existing.Author
		}
		if sess.AuthorDisplay == "" {
			sess.AuthorDisplay = existing.AuthorDisplay
			sess.AuthorIsGuest = existing.AuthorIsGuest
			sess.AuthorIsHost = existing.AuthorIsHost
		}
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		}
	case errors.Is(err, sql.ErrNoRows):
		if sess.CreatedAt.IsZero() {
			sess.CreatedAt = time.Now().UTC()
		}
	default:
		return fmt.Errorf("loading session %s: %w", sess.ID, err)
	}

	_, err = tx.Exec(
		`INSERT OR REPLACE INTO sessions
		 (session_id, title, created_at, status, author, author_display, author_is_guest, author_is_host)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.CreatedAt.UTC().Format(time.RFC3339), string(sess.Status),
		sess.Author, sess.AuthorDisplay, sess.AuthorIsGuest, sess.AuthorIsHost,
	)
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sess.ID, err)
	}

	return tx.Commit()
}

// GetSession returns a session by ID. Returns ErrNotFound if missing.
func (s *RecordingStore) GetSession(id string) (domain.Session, error) {
	var sess domain.Session
	var createdAt string
	err := s.db.sql.QueryRow(
		`SELECT session_id, title, created_at, status, author, author_display, author_is_guest, author_is_host
		 FROM sessions WHERE session_id = ?`, id,
	).Scan(
		&sess.ID, &sess.Title, &createdAt, &sess.Status, &sess.Author,
		&sess.AuthorDisplay, &sess.AuthorIsGuest, &sess.AuthorIsHost,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("loading session %s: %w", id, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return sess, nil
}

// UpdateSessionStatus sets the status of an existing session.
func (s *RecordingStore) UpdateSessionStatus(id string, status domain.SessionStatus) error {
	res, err := s.db.sql.Exec(
		`UPDATE sessions SET status = ? WHERE session_id = ?`, string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating status for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMessage appends a message to a session and returns its assigned id.
// Ids are monotonically increasing in insertion order.
func (s *RecordingStore) SaveMessage(msg domain.Message) (int64, error) {
	ts := msg.Date
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	res, err := s.db.sql.Exec(
		`INSERT INTO messages (chat_id, session_id, date, username, message)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.ChatID, msg.SessionID, ts.UTC().Format(time.RFC3339), msg.Username, msg.Text,
	)
	if err != nil {
		return 0, fmt.Errorf("saving message for %s: %w", msg.SessionID, err)
	}
	return res.LastInsertId()
}

// MessagesBySession returns all messages in a session in insertion order.
func (s *RecordingStore) MessagesBySession(sessionID string) ([]domain.Message, error) {
	return s.queryMessages(
		`SELECT id, chat_id, session_id, date, username, message
		 FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
}

// AllMessages returns every recorded message in insertion order.
func (s *RecordingStore) AllMessages() ([]domain.Message, error) {
	return s.queryMessages(
		`SELECT id, chat_id, session_id, date, username, message
		 FROM messages ORDER BY id`)
}

func (s *RecordingStore) queryMessages(query string, args ...any) ([]domain.Message, error) {
	rows, err := s.db.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	msgs := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var date string
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.SessionID, &date, &msg.Username, &msg.Text); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msg.Date, _ = time.Parse(time.RFC3339, date)
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// ListSessions returns all sessions, newest first.
func (s *RecordingStore) ListSessions() ([]domain.Session, error) {
	rows, err := s.db.sql.Query(
		`SELECT session_id, title, created_at, status, author, author_display, author_is_guest, author_is_host
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var sess domain.Session
		var createdAt string
		if err := rows.Scan(
			&sess.ID, &sess.Title, &createdAt, &sess.Status, &sess.Author,
			&sess.AuthorDisplay, &sess.AuthorIsGuest, &sess.AuthorIsHost,
		); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionDetails returns a session enriched with message aggregates.
// Sessions from before status tracking read as completed once they hold
// messages, so old recordings never look live.
func (s *RecordingStore) SessionDetails(id string) (domain.SessionDetails, error) {
	sess, err := s.GetSession(id)
	if err != nil {
		return domain.SessionDetails{}, err
	}
	return s.detailsFor(sess)
}

// AllSessionDetails returns details for every session, newest first.
func (s *RecordingStore) AllSessionDetails() ([]domain.SessionDetails, error) {
	sessions, err := s.ListSessions()
	if err != nil {
		return nil, err
	}

	details := make([]domain.SessionDetails, 0, len(sessions))
	for _, sess := range sessions {
		d, err := s.detailsFor(sess)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *RecordingStore) detailsFor(sess domain.Session) (domain.SessionDetails, error) {
	d := domain.SessionDetails{
		ID:           sess.ID,
		Title:        sess.Title,
		Status:       sess.Status,
		Author:       sess.Author,
		Participants: []string{},
	}

	var count int
	var first, last sql.NullString
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*), MIN(date), MAX(date) FROM messages WHERE session_id = ?`, sess.ID,
	).Scan(&count, &first, &last)
	if err != nil {
		return d, fmt.Errorf("aggregating session %s: %w", sess.ID, err)
	}
	d.MessageCount = count
	if first.Valid {
		d.StartDate, _ = time.Parse(time.RFC3339, first.String)
	}
	if last.Valid {
		d.EndDate, _ = time.Parse(time.RFC3339, last.String)
	}

	rows, err := s.db.sql.Query(
		`SELECT username FROM messages WHERE session_id = ? GROUP BY username ORDER BY MIN(id)`, sess.ID,
	)
	if err != nil {
		return d, fmt.Errorf("loading participants for %s: %w", sess.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return d, fmt.Errorf("scanning participant: %w", err)
		}
		d.Participants = append(d.Participants, name)
	}
	if err := rows.Err(); err != nil {
		return d, err
	}

	if !d.Status.Valid() && count > 0 {
		d.Status = domain.StatusCompleted
	}
	return d, nil
}

// UniqueChatIDs returns the distinct chat ids that have recorded messages.
func (s *RecordingStore) UniqueChatIDs() ([]string, error) {
	rows, err := s.db.sql.Query(`SELECT DISTINCT chat_id FROM messages ORDER BY chat_id`)
	if err != nil {
		return nil, fmt.Errorf("querying chat ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chat id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Authors returns the distinct session authors with a non-empty name.
func (s *RecordingStore) Authors() ([]string, error) {
	rows, err := s.db.sql.Query(`SELECT DISTINCT author FROM sessions WHERE author != '' ORDER BY author`)
	if err != nil {
		return nil, fmt.Errorf("querying authors: %w", err)
	}
	defer rows.Close()

	authors := []string{}
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, fmt.Errorf("scanning author: %w", err)
		}
		authors = append(authors, a)
	}
	return authors, rows.Err()
}

// UpdateAuthorMetadata back-fills resolved display metadata onto every
// session recorded by the given author. Returns the rows touched.
func (s *RecordingStore) UpdateAuthorMetadata(author string, ident domain.Identity) (int64, error) {
	res, err := s.db.sql.Exec(
		`UPDATE sessions SET author_display = ?, author_is_guest = ?, author_is_host = ?
		 WHERE author = ?`,
		ident.DisplayName, ident.IsGuest, ident.IsHost, author,
	)
	if err != nil {
		return 0, fmt.Errorf("updating author metadata for %s: %w", author, err)
	}
	return res.RowsAffected()
}

// Reset deletes all recorded sessions and messages.
func (s *RecordingStore) Reset() error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("deleting messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("deleting sessions: %w", err)
	}
	return tx.Commit()
}
