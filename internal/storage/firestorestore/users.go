package firestorestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
)

type userDoc struct {
	ID              string    `firestore:"id"`
	Email           string    `firestore:"email"`
	NormalizedEmail string    `firestore:"normalizedEmail"`
	DisplayName     string    `firestore:"displayName"`
	PhotoURL        string    `firestore:"photoURL"`
	CreatedAt       time.Time `firestore:"createdAt"`
	UpdatedAt       time.Time `firestore:"updatedAt"`
}

type userEmailDoc struct {
	UserID string `firestore:"userId"`
}

func (d userDoc) toModel() *models.UserRecord {
	u := models.UserRecord(d)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u
}

func (s *Store) users() *firestore.CollectionRef {
	return s.client.Collection(usersCollection)
}

func (s *Store) emails() *firestore.CollectionRef {
	return s.client.Collection(userEmailsCollection)
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	snap, err := s.users().Doc(id).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	var doc userDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, apperrors.Transient(err)
	}
	return doc.toModel(), nil
}

func (s *Store) FindUserByEmail(ctx context.Context, normalizedEmail string) (*models.UserRecord, error) {
	if normalizedEmail == "" {
		return nil, apperrors.ErrNotFound
	}
	snap, err := s.emails().Doc(normalizedEmail).Get(ctx)
	if err != nil {
		return nil, mapErr(err)
	}
	var owner userEmailDoc
	if err := snap.DataTo(&owner); err != nil {
		return nil, apperrors.Transient(err)
	}
	return s.GetUser(ctx, owner.UserID)
}

// UpsertUser merges the profile and moves the email claim with it. All reads
// happen before the writes, as Firestore transactions require.
func (s *Store) UpsertUser(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	userRef := s.users().Doc(user.ID)
	var stored userDoc
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var newClaim *firestore.DocumentRef
		if user.NormalizedEmail != "" {
			newClaim = s.emails().Doc(user.NormalizedEmail)
			snap, err := tx.Get(newClaim)
			switch {
			case err == nil:
				var owner userEmailDoc
				if err := snap.DataTo(&owner); err != nil {
					return err
				}
				if owner.UserID != user.ID {
					return apperrors.ErrConflict
				}
			case !isNotFound(err):
				return err
			}
		}

		var existing *userDoc
		snap, err := tx.Get(userRef)
		switch {
		case err == nil:
			existing = &userDoc{}
			if err := snap.DataTo(existing); err != nil {
				return err
			}
		case !isNotFound(err):
			return err
		}

		now := s.clock.Now()
		stored = userDoc(*user)
		stored.CreatedAt = now
		stored.UpdatedAt = now
		if existing != nil {
			stored.CreatedAt = existing.CreatedAt
			if existing.NormalizedEmail != "" && existing.NormalizedEmail != stored.NormalizedEmail {
				if err := tx.Delete(s.emails().Doc(existing.NormalizedEmail)); err != nil {
					return err
				}
			}
		}
		if err := tx.Set(userRef, stored); err != nil {
			return err
		}
		if newClaim != nil {
			return tx.Set(newClaim, userEmailDoc{UserID: stored.ID})
		}
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return stored.toModel(), nil
}
