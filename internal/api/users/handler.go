// Package users serves the directory over REST.
package users

import (
	"context"
	"net/http"

	"github.com/Vasu1712/scenyx-dms/internal/api/httpio"
	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/gorilla/mux"
)

type Directory interface {
	Lookup(ctx context.Context, email string) (*models.UserRecord, bool, error)
	EnsureSelf(ctx context.Context) (*models.UserRecord, error)
}

type UserHandler struct {
	Directory Directory
}

// EnsureMe creates or refreshes the caller's entry from its token claims.
func (h *UserHandler) EnsureMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.Directory.EnsureSelf(r.Context())
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, user)
}

// Lookup returns the public profile registered under ?email=.
func (h *UserHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	user, found, err := h.Directory.Lookup(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		httpio.WriteError(w, r, err)
		return
	}
	if !found {
		httpio.WriteError(w, r, apperrors.ErrNotFound)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, user.Info())
}

func RegisterUserRoutes(r *mux.Router, handler *UserHandler) {
	r.HandleFunc("/users/me", handler.EnsureMe).Methods(http.MethodPut)
	r.HandleFunc("/users/lookup", handler.Lookup).Methods(http.MethodGet)
}
