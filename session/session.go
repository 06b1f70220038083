// Package session persists per-conversation history and state between turns.
// The Store interface keeps callers independent of concrete storage; the
// in-memory implementation suits tests and single-process deployments, and
// additional backends (Redis, Postgres) can be added without changing calling
// code.
package session

import (
	"context"

	"github.com/hupe1980/travelmesh/core"
)

// Conversation is the durable record of one chat: the accumulated role-based
// history plus the routing state carried across turns.
type Conversation struct {
	ID      string
	UserID  string
	History []core.Content
	State   *core.State
}

// NewConversation returns an empty conversation with initialized state.
func NewConversation(id, userID string) *Conversation {
	return &Conversation{ID: id, UserID: userID, State: core.NewState()}
}

// Clone returns a deep copy safe to mutate without affecting the original.
func (c *Conversation) Clone() *Conversation {
	cp := &Conversation{ID: c.ID, UserID: c.UserID}
	cp.History = append([]core.Content(nil), c.History...)
	if c.State != nil {
		cp.State = c.State.Clone()
	} else {
		cp.State = core.NewState()
	}
	return cp
}

// Store loads and saves conversations. Implementations must be safe for
// concurrent use.
type Store interface {
	// Load returns the conversation, creating an empty one when the id is
	// unknown. The returned value is the caller's to mutate.
	Load(ctx context.Context, id, userID string) (*Conversation, error)

	// Save persists a snapshot of the conversation. Turn-scoped state
	// (attachments, suggested actions) is stripped before storage.
	Save(ctx context.Context, conv *Conversation) error
}
