package badgerstore

import (
	"context"
	"errors"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/dgraph-io/badger/v4"
)

func (s *Store) GetUser(_ context.Context, id string) (*models.UserRecord, error) {
	var user models.UserRecord
	err := s.view(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(_ context.Context, normalizedEmail string) (*models.UserRecord, error) {
	var user models.UserRecord
	err := s.view(func(txn *badger.Txn) error {
		id, err := getString(txn, emailKey(normalizedEmail))
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertUser merges the profile fields and moves the email index with the record.
func (s *Store) UpsertUser(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	var stored models.UserRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		if user.NormalizedEmail != "" {
			owner, err := getString(txn, emailKey(user.NormalizedEmail))
			switch {
			case err == nil && owner != user.ID:
				return apperrors.ErrConflict
			case err != nil && !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}

		now := s.clock.Now()
		stored = *user
		stored.CreatedAt = now
		stored.UpdatedAt = now

		var existing models.UserRecord
		err := getJSON(txn, userKey(user.ID), &existing)
		switch {
		case err == nil:
			stored.CreatedAt = existing.CreatedAt
			if existing.NormalizedEmail != "" && existing.NormalizedEmail != stored.NormalizedEmail {
				if err := txn.Delete(emailKey(existing.NormalizedEmail)); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := setJSON(txn, userKey(stored.ID), &stored); err != nil {
			return err
		}
		if stored.NormalizedEmail != "" {
			return txn.Set(emailKey(stored.NormalizedEmail), []byte(stored.ID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}
