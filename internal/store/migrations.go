package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				session_id  TEXT PRIMARY KEY,
				title       TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				status      TEXT NOT NULL DEFAULT '',
				author      TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_sessions_created ON sessions (created_at);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				chat_id     TEXT NOT NULL,
				session_id  TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
				date        TEXT NOT NULL,
				username    TEXT NOT NULL,
				message     TEXT NOT NULL
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
			CREATE INDEX idx_messages_chat ON messages (chat_id);
		`,
	},
	{
		Version: 2,
		Name:    "add author display metadata",
		SQL: `
			ALTER TABLE sessions ADD COLUMN author_display TEXT NOT NULL DEFAULT '';
			ALTER TABLE sessions ADD COLUMN author_is_guest INTEGER NOT NULL DEFAULT 0;
			ALTER TABLE sessions ADD COLUMN author_is_host INTEGER NOT NULL DEFAULT 0;
		`,
	},
}
