package companion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound indicates the companion id is unknown, or the caller does not
// own the companion for an owner-only operation.
var ErrNotFound = errors.New("companion not found")

// DB is the subset of pgxpool.Pool the store needs.
// Following Go best practices: interfaces are defined by the consumer.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages companion and turn persistence with a PostgreSQL backend.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a new Store instance.
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const companionColumns = `id, user_id, user_name, name, description, instructions, seed, src, created_at, updated_at`

// Create persists a new companion and fills in its generated id and
// timestamps.
func (s *Store) Create(ctx context.Context, c *Companion) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO companions (user_id, user_name, name, description, instructions, seed, src)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		c.UserID, c.UserName, c.Name, c.Description, c.Instructions, c.Seed, c.Src)

	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("creating companion: %w", err)
	}

	s.logger.Debug("created companion", "id", c.ID, "name", c.Name)
	return nil
}

// Get retrieves a companion by id. Returns ErrNotFound for unknown ids.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Companion, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+companionColumns+`
		FROM companions WHERE id = $1`, id)

	c, err := scanCompanion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting companion %s: %w", id, err)
	}
	return c, nil
}

// Update modifies a companion's persona fields. Owner-only: the update is a
// no-op returning ErrNotFound when ownerID does not match.
func (s *Store) Update(ctx context.Context, c *Companion, ownerID string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE companions
		SET user_name = $1, name = $2, description = $3, instructions = $4,
		    seed = $5, src = $6, updated_at = now()
		WHERE id = $7 AND user_id = $8`,
		c.UserName, c.Name, c.Description, c.Instructions, c.Seed, c.Src, c.ID, ownerID)
	if err != nil {
		return fmt.Errorf("updating companion %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated companion", "id", c.ID)
	return nil
}

// Delete removes a companion and, via CASCADE, its turns and archival
// chunks. Owner-only.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM companions WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting companion %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted companion", "id", id)
	return nil
}

// RecentTurns returns up to limit turns for (companionID, userID), most
// recent first.
func (s *Store) RecentTurns(ctx context.Context, companionID uuid.UUID, userID string, limit int32) ([]Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, companion_id, user_id, role, content, created_at
		FROM turns
		WHERE companion_id = $1 AND user_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, companionID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading recent turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.CompanionID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}

	return turns, nil
}

// AddTurn appends one turn to a conversation.
func (s *Store) AddTurn(ctx context.Context, t *Turn) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO turns (companion_id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		t.CompanionID, t.UserID, t.Role, t.Content)

	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("adding %s turn: %w", t.Role, err)
	}

	s.logger.Debug("added turn",
		"companion_id", t.CompanionID,
		"role", t.Role,
		"content_length", len(t.Content))
	return nil
}

func scanCompanion(row pgx.Row) (*Companion, error) {
	var c Companion
	err := row.Scan(&c.ID, &c.UserID, &c.UserName, &c.Name, &c.Description,
		&c.Instructions, &c.Seed, &c.Src, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
