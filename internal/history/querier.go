package history

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the querier needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// pgxQuerier implements Querier against the history_lines table.
// Entry order is the bigserial id sequence.
type pgxQuerier struct {
	db DB
}

// NewQuerier creates the PostgreSQL-backed Querier.
func NewQuerier(db DB) Querier {
	return &pgxQuerier{db: db}
}

func (q *pgxQuerier) Lines(ctx context.Context, key Key) ([]string, error) {
	rows, err := q.db.Query(ctx, `
		SELECT content FROM history_lines
		WHERE companion_id = $1 AND user_id = $2 AND model_name = $3
		ORDER BY id`,
		key.CompanionID, key.UserID, key.ModelName)
	if err != nil {
		return nil, fmt.Errorf("querying history lines: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scanning history line: %w", err)
		}
		lines = append(lines, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history lines: %w", err)
	}

	return lines, nil
}

func (q *pgxQuerier) InsertLines(ctx context.Context, key Key, lines []string) error {
	// One statement per line keeps insertion order stable on the id
	// sequence; streams are short so batching is not worth the complexity.
	for _, line := range lines {
		_, err := q.db.Exec(ctx, `
			INSERT INTO history_lines (companion_id, user_id, model_name, content)
			VALUES ($1, $2, $3, $4)`,
			key.CompanionID, key.UserID, key.ModelName, line)
		if err != nil {
			return fmt.Errorf("inserting history line: %w", err)
		}
	}
	return nil
}

func (q *pgxQuerier) TrimToLast(ctx context.Context, key Key, keep int) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM history_lines
		WHERE companion_id = $1 AND user_id = $2 AND model_name = $3
		  AND id NOT IN (
			SELECT id FROM history_lines
			WHERE companion_id = $1 AND user_id = $2 AND model_name = $3
			ORDER BY id DESC
			LIMIT $4
		  )`,
		key.CompanionID, key.UserID, key.ModelName, keep)
	if err != nil {
		return fmt.Errorf("trimming history lines: %w", err)
	}
	return nil
}
