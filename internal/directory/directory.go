// Package directory maps emails to users and keeps the caller's own entry
// current.
package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Vasu1712/scenyx-dms/internal/access"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/go-playground/validator/v10"
)

type Directory struct {
	users    storage.UserStore
	validate *validator.Validate
	log      *slog.Logger
}

func New(users storage.UserStore, log *slog.Logger) *Directory {
	return &Directory{
		users:    users,
		validate: validator.New(),
		log:      log.With(slog.String(logging.ComponentField, "directory")),
	}
}

// Lookup finds the user whose normalized email equals the normalized input.
// A missing or malformed address is reported as not found, never as an error.
func (d *Directory) Lookup(ctx context.Context, email string) (*models.UserRecord, bool, error) {
	normalized := models.NormalizeEmail(email)
	if err := d.validate.Var(normalized, "required,email"); err != nil {
		return nil, false, nil
	}
	user, err := d.users.FindUserByEmail(ctx, normalized)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.Transient(err)
	}
	return user, true, nil
}

// Get returns the entry for id or apperrors.ErrNotFound.
func (d *Directory) Get(ctx context.Context, id string) (*models.UserRecord, error) {
	return d.users.GetUser(ctx, id)
}

// EnsureSelf creates or refreshes the caller's entry from the session identity.
// CreatedAt is set once; UpdatedAt advances on every call.
func (d *Directory) EnsureSelf(ctx context.Context) (*models.UserRecord, error) {
	caller, err := auth.Require(ctx)
	if err != nil {
		return nil, err
	}
	record := &models.UserRecord{
		ID:              caller.ID,
		Email:           caller.Email,
		NormalizedEmail: models.NormalizeEmail(caller.Email),
		DisplayName:     caller.DisplayName,
		PhotoURL:        caller.PhotoURL,
	}
	if err := access.CanWriteUser(caller, record); err != nil {
		return nil, err
	}

	stored, err := d.users.UpsertUser(ctx, record)
	if err != nil {
		d.log.Warn("failed to upsert user",
			slog.String(logging.UserIDField, caller.ID),
			slog.String(logging.ErrorMsgField, err.Error()))
		return nil, err
	}
	d.log.Debug("user entry refreshed", slog.String(logging.UserIDField, stored.ID))
	return stored, nil
}
