// Package auth verifies session tokens and threads the caller's identity
// through context.Context.
package auth

import (
	"context"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
)

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
	PhotoURL    string
}

type ctxKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.ID == "" {
		return Identity{}, false
	}
	return id, true
}

// Require returns the caller identity or ErrUnauthenticated.
func Require(ctx context.Context) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, apperrors.ErrUnauthenticated
	}
	return id, nil
}
