// Package storage defines the backing-store contract used by the directory,
// the conversation registry and the message store.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/models"
)

// UserStore persists directory entries.
type UserStore interface {
	// GetUser returns apperrors.ErrNotFound when id is unknown.
	GetUser(ctx context.Context, id string) (*models.UserRecord, error)
	// FindUserByEmail matches on NormalizedEmail and returns apperrors.ErrNotFound on no match.
	FindUserByEmail(ctx context.Context, normalizedEmail string) (*models.UserRecord, error)
	// UpsertUser creates the record (setting CreatedAt) or merges the profile fields
	// into the existing one. The store assigns UpdatedAt. A normalized email owned by
	// another id yields apperrors.ErrConflict.
	UpsertUser(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error)
}

// ConversationStore persists conversations.
type ConversationStore interface {
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	// ListConversations returns conversations containing userID, newest UpdatedAt first.
	ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error)
	// CreateConversation inserts conv keyed by its PairKey. When the pair key is
	// already taken it returns the existing conversation and created=false.
	// The store assigns ID (when empty), CreatedAt, UpdatedAt and LastMessage.CreatedAt.
	CreateConversation(ctx context.Context, conv *models.Conversation) (stored *models.Conversation, created bool, err error)
}

// MessageStore persists messages.
type MessageStore interface {
	// AppendMessage inserts msg and updates the parent's LastMessage and UpdatedAt
	// in one transaction. The store assigns CreatedAt and Seq.
	AppendMessage(ctx context.Context, msg *models.Message, preview string) (*models.Message, error)
	// ListMessages returns the log ordered by CreatedAt then Seq.
	ListMessages(ctx context.Context, conversationID string) ([]*models.Message, error)
}

// Store is a complete backing store.
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	Close() error
}

// ServerClock hands out strictly increasing timestamps so that server-assigned
// times can be used as sort keys.
type ServerClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewServerClock(now func() time.Time) *ServerClock {
	if now == nil {
		now = time.Now
	}
	return &ServerClock{now: now}
}

// Now returns the current time, bumped past the previously returned value if needed.
func (c *ServerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
