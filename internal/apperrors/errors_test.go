package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		in   error
		is   error
	}{
		{name: "plain error becomes transient", in: errors.New("connection reset"), is: ErrTransient},
		{name: "not found is kept", in: fmt.Errorf("lookup: %w", ErrNotFound), is: ErrNotFound},
		{name: "denied is kept", in: Denied("not a member"), is: ErrAuthorizationDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, Transient(tt.in), tt.is)
		})
	}
	require.NoError(t, Transient(nil))
}

func TestIsTerminal(t *testing.T) {
	req := require.New(t)
	req.True(IsTerminal(Denied("x")))
	req.True(IsTerminal(ErrUnauthenticated))
	req.True(IsTerminal(fmt.Errorf("conversation: %w", ErrNotFound)))
	req.False(IsTerminal(Transient(errors.New("timeout"))))
}
