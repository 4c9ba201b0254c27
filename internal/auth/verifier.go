package auth

import "context"

// Verifier turns a session token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
