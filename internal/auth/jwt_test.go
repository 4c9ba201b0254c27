package auth

import (
	"context"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/stretchr/testify/require"
)

func TestJWTVerifier_RoundTrip(t *testing.T) {
	req := require.New(t)
	v, err := NewJWTVerifier("test-secret", "scenyx")
	req.NoError(err)

	want := Identity{ID: "alice", Email: "a@x.com", DisplayName: "Alice", PhotoURL: "https://img/a.png"}
	token, err := v.IssueToken(want, time.Hour)
	req.NoError(err)

	got, err := v.Verify(context.Background(), token)
	req.NoError(err)
	req.Equal(want, got)
}

func TestJWTVerifier_Rejects(t *testing.T) {
	signer, err := NewJWTVerifier("test-secret", "scenyx")
	require.NoError(t, err)
	otherSigner, err := NewJWTVerifier("other-secret", "scenyx")
	require.NoError(t, err)
	otherIssuer, err := NewJWTVerifier("test-secret", "someone-else")
	require.NoError(t, err)

	expired, err := signer.IssueToken(Identity{ID: "alice"}, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := otherSigner.IssueToken(Identity{ID: "alice"}, time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := otherIssuer.IssueToken(Identity{ID: "alice"}, time.Hour)
	require.NoError(t, err)
	noSubject, err := signer.IssueToken(Identity{}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-jwt"},
		{name: "expired", token: expired},
		{name: "wrong key", token: wrongKey},
		{name: "wrong issuer", token: wrongIssuer},
		{name: "missing subject", token: noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(context.Background(), tt.token)
			require.ErrorIs(t, err, apperrors.ErrUnauthenticated)
		})
	}
}

func TestNewJWTVerifier_EmptySecret(t *testing.T) {
	_, err := NewJWTVerifier("", "")
	require.ErrorIs(t, err, errEmptySecret)
}

func TestIdentityFromClaims(t *testing.T) {
	id := identityFromClaims("uid-1", map[string]interface{}{
		"email":   "b@x.com",
		"name":    "Bob",
		"picture": 42, // wrong type is ignored
	})
	require.Equal(t, Identity{ID: "uid-1", Email: "b@x.com", DisplayName: "Bob"}, id)
}

func TestRequire(t *testing.T) {
	req := require.New(t)
	_, err := Require(context.Background())
	req.ErrorIs(err, apperrors.ErrUnauthenticated)

	ctx := WithIdentity(context.Background(), Identity{ID: "alice"})
	id, err := Require(ctx)
	req.NoError(err)
	req.Equal("alice", id.ID)
}
