package memory

import (
	"context"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
)

func (s *DMStore) GetUser(_ context.Context, id string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *DMStore) FindUserByEmail(_ context.Context, normalizedEmail string) (*models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emailIndex[normalizedEmail]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// UpsertUser merges the profile fields, keeping CreatedAt of an existing record.
func (s *DMStore) UpsertUser(_ context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.emailIndex[user.NormalizedEmail]; ok && owner != user.ID && user.NormalizedEmail != "" {
		return nil, apperrors.ErrConflict
	}

	now := s.clock.Now()
	stored := *user
	stored.UpdatedAt = now
	if existing, ok := s.users[user.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
		if existing.NormalizedEmail != stored.NormalizedEmail {
			delete(s.emailIndex, existing.NormalizedEmail)
		}
	} else {
		stored.CreatedAt = now
	}

	s.users[stored.ID] = &stored
	if stored.NormalizedEmail != "" {
		s.emailIndex[stored.NormalizedEmail] = stored.ID
	}
	out := stored
	return &out, nil
}
