package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alkime/rapidvoice/internal/voice"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// ErrNotFound is returned when no message has the requested ID.
var ErrNotFound = errors.New("message not found")

const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		voiceId TEXT,
		filePath TEXT,
		durationMs INTEGER,
		sizeBytes INTEGER,
		recordedAt INTEGER,
		sentAt INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS messages_sent_at ON messages (sentAt);
`

// Store keeps the chat history in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. Use MemoryDSN for
// a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryDSN {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection: sqlite serializes writers, and :memory: is per connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != MemoryDSN {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds m to the history.
func (s *Store) Insert(ctx context.Context, m Message) error {
	var (
		voiceID, filePath            sql.NullString
		durationMs, size, recordedAt sql.NullInt64
	)
	if m.Voice != nil {
		voiceID = sql.NullString{String: m.Voice.ID, Valid: true}
		filePath = sql.NullString{String: m.Voice.FilePath, Valid: true}
		durationMs = sql.NullInt64{Int64: m.Voice.Duration.Milliseconds(), Valid: true}
		size = sql.NullInt64{Int64: m.Voice.SizeBytes, Valid: true}
		recordedAt = sql.NullInt64{Int64: m.Voice.CreatedAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, kind, content, voiceId, filePath, durationMs, sizeBytes, recordedAt, sentAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Kind), m.Content, voiceID, filePath, durationMs, size, recordedAt, m.SentAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	return nil
}

const selectMessages = `
	SELECT id, kind, content, voiceId, filePath, durationMs, sizeBytes, recordedAt, sentAt
	FROM messages
`

// List returns the whole history, oldest first.
func (s *Store) List(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, selectMessages+` ORDER BY sentAt ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}

	return messages, rows.Err()
}

// AudioPaths returns the file path of every voice message in the history.
func (s *Store) AudioPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT filePath FROM messages WHERE filePath IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query audio paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan audio path: %w", err)
		}
		paths = append(paths, p)
	}

	return paths, rows.Err()
}

// Get returns the message with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Message, error) {
	row := s.db.QueryRowContext(ctx, selectMessages+` WHERE id = ?`, id)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return m, err
}

// Delete removes the message with id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}

	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (Message, error) {
	var (
		m                            Message
		kind                         string
		voiceID, filePath            sql.NullString
		durationMs, size, recordedAt sql.NullInt64
		sentAt                       int64
	)

	if err := sc.Scan(&m.ID, &kind, &m.Content, &voiceID, &filePath,
		&durationMs, &size, &recordedAt, &sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, err
		}
		return Message{}, fmt.Errorf("scan message: %w", err)
	}

	m.Kind = Kind(kind)
	m.SentAt = time.UnixMilli(sentAt)
	if voiceID.Valid {
		m.Voice = &voice.VoiceMessage{
			ID:        voiceID.String,
			FilePath:  filePath.String,
			Duration:  time.Duration(durationMs.Int64) * time.Millisecond,
			SizeBytes: size.Int64,
			CreatedAt: time.UnixMilli(recordedAt.Int64),
		}
	}

	return m, nil
}
