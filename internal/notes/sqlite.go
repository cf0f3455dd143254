package notes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/crystaldolphin/murmur/internal/schema"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    embedding TEXT
);
CREATE INDEX IF NOT EXISTS notes_created_idx ON notes (created_at);
`

// SQLiteStore keeps notes in a local SQLite file. Embeddings are stored as
// JSON arrays and ranked in process.
type SQLiteStore struct {
	db       *sql.DB
	embedder schema.Embedder
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, embedder schema.Embedder) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create notes dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply notes schema: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder}, nil
}

func (s *SQLiteStore) Store(ctx context.Context, n schema.Note) error {
	n, err := prepare(n)
	if err != nil {
		return err
	}
	var embedding sql.NullString
	if s.embedder != nil {
		vec, err := embed(ctx, s.embedder, noteText(n))
		if err != nil {
			return err
		}
		blob, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		embedding = sql.NullString{String: string(blob), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO notes (id, title, content, created_at, embedding)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            content = excluded.content,
            created_at = excluded.created_at,
            embedding = excluded.embedding`,
		n.ID, n.Title, n.Content, n.Timestamp.UnixMilli(), embedding)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, text string, topN int) ([]schema.NoteMatch, error) {
	var qvec []float32
	if s.embedder != nil {
		var err error
		if qvec, err = embed(ctx, s.embedder, text); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, title, content, created_at, embedding FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var matches []schema.NoteMatch
	for rows.Next() {
		var (
			n         schema.Note
			createdAt int64
			embedding sql.NullString
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &createdAt, &embedding); err != nil {
			return nil, err
		}
		n.Timestamp = time.UnixMilli(createdAt).UTC()

		if qvec != nil {
			var vec []float32
			if embedding.Valid {
				vec = decodeEmbedding(n.ID, embedding.String)
			}
			matches = append(matches, schema.NoteMatch{Note: n, Score: cosine(qvec, vec)})
			continue
		}
		if score := keywordScore(text, noteText(n)); score > 0 {
			matches = append(matches, schema.NoteMatch{Note: n, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return top(matches, topN), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// decodeEmbedding reads a stored vector. An unreadable one is logged and
// scores zero.
func decodeEmbedding(id, raw string) []float32 {
	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		slog.Warn("notes: stored embedding unreadable", "id", id, "err", err)
		return nil
	}
	return vec
}
