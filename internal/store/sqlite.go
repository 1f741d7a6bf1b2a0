package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the embedded-database backing for Store. The active
// log and the archive share one table; rotation flips an archived
// flag inside a transaction instead of moving rows between files.
type SQLiteStore struct {
	db   *sql.DB
	cap  int
	tail int
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	identity TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	archived INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_identity ON messages(identity, archived, id);

CREATE TABLE IF NOT EXISTS summaries (
	identity TEXT PRIMARY KEY,
	content TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
`

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string, capacity, tail int) (*SQLiteStore, error) {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	if tail <= 0 || tail >= capacity {
		tail = DefaultTail
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	// Per-identity serialization comes from SQLite's writer lock;
	// a single connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db, cap: capacity, tail: tail}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append implements Store.
func (s *SQLiteStore) Append(id string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return &StorageError{Op: "append", Err: err}
	}
	defer tx.Rollback()

	for _, m := range msgs {
		ts := m.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		if _, err := tx.Exec(
			"INSERT INTO messages (identity, role, content, archived, created_at) VALUES (?, ?, ?, 0, ?)",
			id, m.Role, m.Content, ts.UnixNano(),
		); err != nil {
			return &StorageError{Op: "append", Err: err}
		}
	}

	var active int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM messages WHERE identity = ? AND archived = 0", id,
	).Scan(&active); err != nil {
		return &StorageError{Op: "append", Err: err}
	}

	if active >= s.cap {
		if _, err := tx.Exec(`
			UPDATE messages SET archived = 1
			WHERE identity = ? AND archived = 0 AND id NOT IN (
				SELECT id FROM messages
				WHERE identity = ? AND archived = 0
				ORDER BY id DESC
				LIMIT ?
			)
		`, id, id, s.tail); err != nil {
			return &StorageError{Op: "rotate", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "append", Err: err}
	}
	return nil
}

// Recent implements Store.
func (s *SQLiteStore) Recent(id string, n int) ([]Message, error) {
	query := `
		SELECT role, content, created_at FROM messages
		WHERE identity = ? AND archived = 0
		ORDER BY id ASC
	`
	args := []any{id}
	if n > 0 {
		query = `
			SELECT role, content, created_at FROM (
				SELECT id, role, content, created_at FROM messages
				WHERE identity = ? AND archived = 0
				ORDER BY id DESC
				LIMIT ?
			) ORDER BY id ASC
		`
		args = append(args, n)
	}
	return s.queryMessages(query, args...)
}

// Archive implements Store.
func (s *SQLiteStore) Archive(id string) ([]Message, error) {
	return s.queryMessages(`
		SELECT role, content, created_at FROM messages
		WHERE identity = ? AND archived = 1
		ORDER BY id ASC
	`, id)
}

func (s *SQLiteStore) queryMessages(query string, args ...any) ([]Message, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var createdAt int64
		if err := rows.Scan(&m.Role, &m.Content, &createdAt); err != nil {
			return nil, &StorageError{Op: "read", Err: err}
		}
		m.Timestamp = time.Unix(0, createdAt)
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	return msgs, nil
}

// Summary implements Store.
func (s *SQLiteStore) Summary(id string) (string, error) {
	var content string
	err := s.db.QueryRow("SELECT content FROM summaries WHERE identity = ?", id).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", &StorageError{Op: "read", Err: err}
	}
	return content, nil
}

// AppendSummary implements Store.
func (s *SQLiteStore) AppendSummary(id, fact string) error {
	if fact == "" {
		return nil
	}
	line := fmt.Sprintf("\n%s - %s", fact, time.Now().Format(time.RFC3339))
	_, err := s.db.Exec(`
		INSERT INTO summaries (identity, content, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			content = summaries.content || excluded.content,
			updated_at = excluded.updated_at
	`, id, line, time.Now().Unix())
	if err != nil {
		return &StorageError{Op: "write", Err: err}
	}
	return nil
}
