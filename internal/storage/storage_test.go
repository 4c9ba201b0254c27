package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerClock_StrictlyIncreasing(t *testing.T) {
	req := require.New(t)
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewServerClock(func() time.Time { return frozen })

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()
	req.Equal(frozen, first)
	req.True(second.After(first))
	req.True(third.After(second))
}
