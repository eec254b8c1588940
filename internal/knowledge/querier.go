package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// DB is the subset of pgxpool.Pool the querier needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// pgxQuerier implements Querier against the document_chunks table.
type pgxQuerier struct {
	db DB
}

// NewQuerier creates the PostgreSQL-backed Querier.
func NewQuerier(db DB) Querier {
	return &pgxQuerier{db: db}
}

func (q *pgxQuerier) SearchChunks(ctx context.Context, companionID uuid.UUID, documentID string, embedding pgvector.Vector, limit int32) ([]Result, error) {
	// <=> is pgvector's cosine distance; similarity = 1 - distance.
	rows, err := q.db.Query(ctx, `
		SELECT content, 1 - (embedding <=> $3) AS similarity
		FROM document_chunks
		WHERE companion_id = $1 AND document_id = $2
		ORDER BY embedding <=> $3
		LIMIT $4`,
		companionID, documentID, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("querying document chunks: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return results, nil
}

func (q *pgxQuerier) InsertChunk(ctx context.Context, companionID uuid.UUID, documentID string, index int, content string, embedding pgvector.Vector) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO document_chunks (companion_id, document_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`,
		companionID, documentID, index, content, embedding)
	if err != nil {
		return fmt.Errorf("inserting chunk %d: %w", index, err)
	}
	return nil
}

func (q *pgxQuerier) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("deleting document %q: %w", documentID, err)
	}
	return nil
}
