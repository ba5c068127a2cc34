package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Alex12012019/DeepSeekAPI/internal/model/chat"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	filename      TEXT NOT NULL,
	created       INTEGER NOT NULL,
	updated       INTEGER NOT NULL,
	messages      TEXT NOT NULL,
	file_analysis TEXT NOT NULL DEFAULT 'null'
)`,
	`CREATE INDEX IF NOT EXISTS conversations_updated ON conversations(updated DESC)`,
}

// SQLiteStore keeps conversations in a SQLite database. Histories are stored
// as JSON columns; timestamps as Unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, filename, created, updated, messages, file_analysis FROM conversations ORDER BY updated DESC")
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var convs []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return convs, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, filename, created, updated, messages, file_analysis FROM conversations WHERE id = ?", id)
	conv, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

func (s *SQLiteStore) Put(ctx context.Context, conv Conversation) error {
	messages := conv.Messages
	if messages == nil {
		messages = []chat.Message{}
	}
	msgJSON, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode messages: %w", err)
	}
	faJSON, err := json.Marshal(conv.FileAnalysis)
	if err != nil {
		return fmt.Errorf("encode file analysis: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	defer tx.Rollback()

	var holder string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM conversations WHERE filename = ? AND id <> ? LIMIT 1", conv.Filename, conv.ID).Scan(&holder)
	switch {
	case err == nil:
		return filenameTaken(conv)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO conversations (id, name, filename, created, updated, messages, file_analysis)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	filename = excluded.filename,
	created = excluded.created,
	updated = excluded.updated,
	messages = excluded.messages,
	file_analysis = excluded.file_analysis`,
		conv.ID, conv.Name, conv.Filename,
		conv.Created.UnixNano(), conv.Updated.UnixNano(),
		string(msgJSON), string(faJSON))
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save conversation %s: %w", conv.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		conv             Conversation
		created, updated int64
		msgJSON, faJSON  string
	)
	if err := row.Scan(&conv.ID, &conv.Name, &conv.Filename, &created, &updated, &msgJSON, &faJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, err
		}
		return Conversation{}, fmt.Errorf("scan failed: %w", err)
	}
	conv.Created = time.Unix(0, created).UTC()
	conv.Updated = time.Unix(0, updated).UTC()

	if err := json.Unmarshal([]byte(msgJSON), &conv.Messages); err != nil {
		return Conversation{}, fmt.Errorf("decode messages of %s: %w", conv.ID, err)
	}
	if err := json.Unmarshal([]byte(faJSON), &conv.FileAnalysis); err != nil {
		return Conversation{}, fmt.Errorf("decode file analysis of %s: %w", conv.ID, err)
	}
	return conv, nil
}
