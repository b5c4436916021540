package messagelog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/carelink/whatsapp-bot/internal/model/bot"
)

// Recorder receives audit entries. The conversation path only ever
// appends; failures must not surface to the user.
type Recorder interface {
	Append(identity, direction, content string) error
}

// Log persists the message audit trail in a SQLite database.
type Log struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bot_messages (
	id         TEXT PRIMARY KEY,
	identity   TEXT NOT NULL,
	direction  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bot_messages_identity ON bot_messages(identity, created_at);
`

// Open creates or opens the audit database at path.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("messagelog: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("messagelog: database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("messagelog: apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records one message. Direction is incoming or outgoing.
func (l *Log) Append(identity, direction, content string) error {
	_, err := l.db.Exec(
		"INSERT INTO bot_messages (id, identity, direction, content, created_at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), identity, direction, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("messagelog: append: %w", err)
	}
	return nil
}

// Recent returns up to limit entries for identity, newest first. Used
// for diagnostics; the engine never reads the trail.
func (l *Log) Recent(identity string, limit int) ([]bot.LogEntry, error) {
	rows, err := l.db.Query(
		"SELECT id, identity, direction, content, created_at FROM bot_messages WHERE identity = ? ORDER BY created_at DESC LIMIT ?",
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("messagelog: query: %w", err)
	}
	defer rows.Close()

	var entries []bot.LogEntry
	for rows.Next() {
		var e bot.LogEntry
		if err := rows.Scan(&e.ID, &e.Identity, &e.Direction, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("messagelog: scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messagelog: rows: %w", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Nop discards entries. Used when no audit path is configured.
type Nop struct{}

// NewNop returns a Recorder that drops everything with a one-time note.
func NewNop() Nop {
	logrus.Info("message audit log disabled, entries will be dropped")
	return Nop{}
}

// Append implements Recorder.
func (Nop) Append(string, string, string) error { return nil }
