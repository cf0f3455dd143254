package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crystaldolphin/murmur/internal/schema"
)

// PostgresStore keeps notes in Postgres and ranks them with pgvector.
type PostgresStore struct {
	pool     *pgxpool.Pool
	embedder schema.Embedder
}

// OpenPostgres connects to dsn and creates the notes table for vectors of
// the given dimensions. An Embedder is required.
func OpenPostgres(ctx context.Context, dsn string, dimensions int, embedder schema.Embedder) (*PostgresStore, error) {
	if embedder == nil {
		return nil, errors.New("postgres notes: an embedding model is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("postgres notes: invalid dimensions %d", dimensions)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping Postgres: %w", err)
	}
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    embedding vector(%d)
);
`, dimensions)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply notes schema: %w", err)
	}
	return &PostgresStore{pool: pool, embedder: embedder}, nil
}

func (s *PostgresStore) Store(ctx context.Context, n schema.Note) error {
	n, err := prepare(n)
	if err != nil {
		return err
	}
	vec, err := embed(ctx, s.embedder, noteText(n))
	if err != nil {
		return err
	}
	literal, err := vectorLiteral(vec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO notes (id, title, content, created_at, embedding)
        VALUES ($1, $2, $3, $4, $5::vector)
        ON CONFLICT (id) DO UPDATE SET
            title = EXCLUDED.title,
            content = EXCLUDED.content,
            created_at = EXCLUDED.created_at,
            embedding = EXCLUDED.embedding`,
		n.ID, n.Title, n.Content, n.Timestamp, literal)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, text string, topN int) ([]schema.NoteMatch, error) {
	if topN <= 0 {
		topN = schema.DefaultTopN
	}
	vec, err := embed(ctx, s.embedder, text)
	if err != nil {
		return nil, err
	}
	literal, err := vectorLiteral(vec)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, title, content, created_at, (embedding <=> $1::vector) AS distance
        FROM notes
        ORDER BY embedding <=> $1::vector
        LIMIT $2`, literal, topN)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var matches []schema.NoteMatch
	for rows.Next() {
		var (
			n        schema.Note
			distance float64
		)
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Timestamp, &distance); err != nil {
			return nil, err
		}
		matches = append(matches, schema.NoteMatch{Note: n, Score: 1 - distance})
	}
	return matches, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// vectorLiteral renders vec in pgvector's text form, e.g. [0.1,0.2].
func vectorLiteral(vec []float32) (string, error) {
	blob, err := json.Marshal(vec)
	if err != nil {
		return "", err
	}
	return "[" + strings.Trim(string(blob), "[]") + "]", nil
}
