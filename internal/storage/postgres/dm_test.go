package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/Vasu1712/scenyx-dms/internal/storage/storagetest"
	"github.com/stretchr/testify/require"
)

// Set POSTGRES_TEST_DSN to run against a real database, e.g.
// user=user password=pass dbname=dms host=127.0.0.1 port=5432 sslmode=disable
func TestPostgresDMStore(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := NewPostgresDMStore(context.Background(), dsn, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMembersInfo_Scan(t *testing.T) {
	tests := []struct {
		name    string
		src     any
		wantLen int
		wantErr bool
	}{
		{name: "bytes", src: []byte(`{"a":{"id":"a","email":"a@x.com"}}`), wantLen: 1},
		{name: "string", src: `{"a":{"id":"a"},"b":{"id":"b"}}`, wantLen: 2},
		{name: "nil", src: nil, wantLen: 0},
		{name: "unsupported", src: 42, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m membersInfo
			err := m.Scan(tt.src)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, m, tt.wantLen)
		})
	}
}
