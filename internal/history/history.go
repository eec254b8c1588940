// Package history implements the durable per-conversation memory stream.
//
// Each stream is keyed by (companion, user, model) and holds an ordered log
// of raw text entries. The store is the only writer of this data; the chat
// engine holds a non-owning handle per request.
//
// Concurrent requests for the same key may interleave reads and appends —
// the store deliberately provides no per-key mutual exclusion. Seeding is
// gated by the caller: Seed itself writes unconditionally.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Key identifies one conversational memory stream.
// Equality is structural; Key is immutable once constructed.
type Key struct {
	CompanionID uuid.UUID
	UserID      string
	ModelName   string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.CompanionID, k.UserID, k.ModelName)
}

// Querier defines the persistence operations the store needs.
// Following Go best practices: interfaces are defined by the consumer.
type Querier interface {
	// Lines returns all entries for key in chronological order,
	// empty if the key was never written.
	Lines(ctx context.Context, key Key) ([]string, error)

	// InsertLines appends entries for key, preserving prior content.
	InsertLines(ctx context.Context, key Key, lines []string) error

	// TrimToLast deletes the oldest entries so at most keep remain.
	TrimToLast(ctx context.Context, key Key, keep int) error
}

// Store is the conversational memory store.
//
// Store is safe for concurrent use, but per-key operations are not
// serialized across requests.
type Store struct {
	querier  Querier
	maxLines int
	logger   *slog.Logger
}

// New creates a Store. maxLines caps each stream: appends beyond the cap
// trim the oldest entries. Zero or negative disables trimming.
func New(querier Querier, maxLines int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, maxLines: maxLines, logger: logger}
}

// ReadLatest returns the currently stored entries for key in chronological
// order, or an empty slice if the key was never written.
func (s *Store) ReadLatest(ctx context.Context, key Key) ([]string, error) {
	lines, err := s.querier.Lines(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", key, err)
	}
	return lines, nil
}

// Seed writes the initial history entries for key, built by splitting the
// companion's seed text on delimiter. The write is unconditional: the caller
// must invoke Seed only when ReadLatest returned an empty stream, otherwise
// existing memory is duplicated.
func (s *Store) Seed(ctx context.Context, seed, delimiter string, key Key) error {
	var lines []string
	for _, part := range strings.Split(seed, delimiter) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	if err := s.querier.InsertLines(ctx, key, lines); err != nil {
		return fmt.Errorf("seeding history for %s: %w", key, err)
	}

	s.logger.Debug("seeded chat history", "key", key.String(), "lines", len(lines))
	return nil
}

// Append adds entry to the stream for key, preserving prior content, then
// enforces the line cap by trimming the oldest entries.
func (s *Store) Append(ctx context.Context, entry string, key Key) error {
	if err := s.querier.InsertLines(ctx, key, []string{entry}); err != nil {
		return fmt.Errorf("appending history for %s: %w", key, err)
	}

	if s.maxLines > 0 {
		if err := s.querier.TrimToLast(ctx, key, s.maxLines); err != nil {
			// The append itself succeeded; an oversized stream is an
			// operational concern, not a request failure.
			s.logger.Warn("trimming history failed", "key", key.String(), "error", err)
		}
	}

	return nil
}
