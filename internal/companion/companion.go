// Package companion manages persona configuration and persisted conversation
// turns.
//
// A Companion is a configured persona: a name, behavioral instructions and a
// seed opening exchange. Companions are owned by the user who created them;
// the chat engine only reads companion fields and appends turns.
package companion

import (
	"time"

	"github.com/google/uuid"
)

// Role attributes a turn to a participant.
type Role string

const (
	// RoleUser marks a turn written by the human participant.
	RoleUser Role = "user"

	// RoleSystem marks a turn written by the companion persona.
	RoleSystem Role = "system"
)

// Companion is a configured persona. Immutable from the chat engine's
// perspective; mutation goes through the owner-only store operations.
type Companion struct {
	ID           uuid.UUID
	UserID       string // owner
	UserName     string
	Name         string
	Description  string
	Instructions string
	Seed         string
	Src          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Turn is one message exchanged in a conversation. Immutable once persisted;
// recency queries order by CreatedAt descending.
type Turn struct {
	ID          uuid.UUID
	CompanionID uuid.UUID
	UserID      string
	Role        Role
	Content     string
	CreatedAt   time.Time
}
