package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
)

const userFields = `id, email, normalized_email, display_name, photo_url, created_at, updated_at`

type userRow struct {
	ID              string    `db:"id"`
	Email           string    `db:"email"`
	NormalizedEmail string    `db:"normalized_email"`
	DisplayName     string    `db:"display_name"`
	PhotoURL        string    `db:"photo_url"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r userRow) toModel() *models.UserRecord {
	return &models.UserRecord{
		ID:              r.ID,
		Email:           r.Email,
		NormalizedEmail: r.NormalizedEmail,
		DisplayName:     r.DisplayName,
		PhotoURL:        r.PhotoURL,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}

func (s *PostgresDMStore) GetUser(ctx context.Context, id string) (*models.UserRecord, error) {
	return s.getUser(ctx, `SELECT `+userFields+` FROM dm_users WHERE id = $1`, id)
}

func (s *PostgresDMStore) FindUserByEmail(ctx context.Context, normalizedEmail string) (*models.UserRecord, error) {
	return s.getUser(ctx, `SELECT `+userFields+` FROM dm_users WHERE normalized_email = $1`, normalizedEmail)
}

func (s *PostgresDMStore) getUser(ctx context.Context, query, arg string) (*models.UserRecord, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	return row.toModel(), nil
}

// UpsertUser inserts the user or merges the profile fields. updated_at always moves forward.
func (s *PostgresDMStore) UpsertUser(ctx context.Context, user *models.UserRecord) (*models.UserRecord, error) {
	query := `
		INSERT INTO dm_users (id, email, normalized_email, display_name, photo_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			normalized_email = EXCLUDED.normalized_email,
			display_name = EXCLUDED.display_name,
			photo_url = EXCLUDED.photo_url,
			updated_at = GREATEST(clock_timestamp(), dm_users.updated_at + interval '1 microsecond')
		RETURNING ` + userFields
	var row userRow
	err := s.db.GetContext(ctx, &row, query, user.ID, user.Email, user.NormalizedEmail, user.DisplayName, user.PhotoURL)
	if isUniqueViolation(err) {
		return nil, apperrors.ErrConflict
	}
	if err != nil {
		return nil, apperrors.Transient(err)
	}
	return row.toModel(), nil
}
