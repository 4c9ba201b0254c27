package memory

import (
	"context"
	"sync"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/google/uuid"
)

// DMStore is an in-memory storage.Store. It is safe for concurrent use.
type DMStore struct {
	mu            sync.RWMutex
	clock         *storage.ServerClock
	conversations map[string]*models.Conversation // dmID -> conversation
	userIndex     map[string][]string             // userID -> []dmID
	pairIndex     map[string]string               // pairKey -> dmID
	messages      map[string][]*models.Message    // dmID -> ordered log
	seq           int64

	users      map[string]*models.UserRecord // userID -> record
	emailIndex map[string]string             // normalizedEmail -> userID
}

func NewDMStore(clock *storage.ServerClock) *DMStore {
	if clock == nil {
		clock = storage.NewServerClock(nil)
	}
	return &DMStore{
		clock:         clock,
		conversations: make(map[string]*models.Conversation),
		userIndex:     make(map[string][]string),
		pairIndex:     make(map[string]string),
		messages:      make(map[string][]*models.Message),
		users:         make(map[string]*models.UserRecord),
		emailIndex:    make(map[string]string),
	}
}

// CreateConversation inserts conv unless its pair key is already indexed.
func (s *DMStore) CreateConversation(_ context.Context, conv *models.Conversation) (*models.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairKey := models.PairKey(conv.Members[0], conv.Members[1])
	if dmID, ok := s.pairIndex[pairKey]; ok {
		return s.conversations[dmID].Clone(), false, nil
	}

	now := s.clock.Now()
	stored := conv.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.PairKey = pairKey
	stored.CreatedAt = now
	stored.UpdatedAt = now
	stored.LastMessage.CreatedAt = now

	s.conversations[stored.ID] = stored
	s.pairIndex[pairKey] = stored.ID
	for _, member := range stored.Members {
		s.userIndex[member] = append(s.userIndex[member], stored.ID)
	}
	return stored.Clone(), true, nil
}

func (s *DMStore) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return conv.Clone(), nil
}

func (s *DMStore) ListConversations(_ context.Context, userID string) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*models.Conversation, 0, len(s.userIndex[userID]))
	for _, dmID := range s.userIndex[userID] {
		result = append(result, s.conversations[dmID].Clone())
	}
	models.SortConversations(result)
	return result, nil
}

// AppendMessage stores msg and refreshes the conversation preview under one lock.
func (s *DMStore) AppendMessage(_ context.Context, msg *models.Message, preview string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[msg.ConversationID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	s.seq++
	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.Must(uuid.NewV7()).String()
	}
	stored.CreatedAt = s.clock.Now()
	stored.Seq = s.seq
	s.messages[conv.ID] = append(s.messages[conv.ID], &stored)

	conv.LastMessage = models.LastMessage{Text: preview, FromID: stored.FromID, CreatedAt: stored.CreatedAt}
	conv.UpdatedAt = stored.CreatedAt

	out := stored
	return &out, nil
}

func (s *DMStore) ListMessages(_ context.Context, conversationID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[conversationID]; !ok {
		return nil, apperrors.ErrNotFound
	}
	log := s.messages[conversationID]
	result := make([]*models.Message, 0, len(log))
	for _, m := range log {
		cp := *m
		result = append(result, &cp)
	}
	models.SortMessages(result)
	return result, nil
}

func (s *DMStore) Close() error { return nil }

var _ storage.Store = (*DMStore)(nil)
