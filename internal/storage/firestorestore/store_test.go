package firestorestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/Vasu1712/scenyx-dms/internal/storage/storagetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Runs against the emulator: gcloud emulators firestore start --host-port=127.0.0.1:8080
// and FIRESTORE_EMULATOR_HOST=127.0.0.1:8080.
func TestStore(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := New(context.Background(), "demo-scenyx-dms", nil, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "not found", err: status.Error(codes.NotFound, "missing"), want: apperrors.ErrNotFound},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), want: apperrors.ErrTransient},
		{name: "conflict passes through", err: apperrors.ErrConflict, want: apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapErr(tt.err), tt.want)
		})
	}
	require.NoError(t, mapErr(nil))
}

func TestConversationDoc_RoundTrip(t *testing.T) {
	req := require.New(t)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	conv := &models.Conversation{
		ID:      "c1",
		PairKey: models.PairKey("a", "b"),
		Members: [2]string{"a", "b"},
		MembersInfo: map[string]models.MemberInfo{
			"a": {ID: "a", Email: "a@x.com"},
			"b": {ID: "b", Email: "b@x.com", DisplayName: "Bee"},
		},
		LastMessage: models.LastMessage{Text: "hi", FromID: "a", CreatedAt: at},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	got := toConversationDoc(conv).toModel()
	req.Equal(conv, got)
}

func TestNextMessageTime(t *testing.T) {
	last := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		now  time.Time
		last time.Time
		want time.Time
	}{
		{name: "clock ahead", now: last.Add(time.Second), last: last, want: last.Add(time.Second)},
		{name: "clock behind another instance", now: last.Add(-5 * time.Millisecond), last: last, want: last.Add(time.Microsecond)},
		{name: "same instant", now: last, last: last, want: last.Add(time.Microsecond)},
		{name: "sub-microsecond ahead", now: last.Add(300 * time.Nanosecond), last: last, want: last.Add(time.Microsecond)},
		{name: "no previous message", now: last, last: time.Time{}, want: last},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextMessageTime(tt.now, tt.last)
			require.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

// Two instances on one database, the second with a clock 5ms behind.
func TestStore_Skewed_Instances_Keep_Send_Order(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	req := require.New(t)
	ctx := context.Background()
	open := func(skew time.Duration) *Store {
		clock := storage.NewServerClock(func() time.Time { return time.Now().Add(skew) })
		s, err := New(ctx, "demo-scenyx-dms", clock, logging.Discard())
		req.NoError(err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}
	ahead, behind := open(0), open(-5*time.Millisecond)

	a, b := "a-"+uuid.NewString(), "b-"+uuid.NewString()
	conv, _, err := ahead.CreateConversation(ctx, &models.Conversation{Members: [2]string{a, b}})
	req.NoError(err)

	var sent []string
	for i := 0; i < 6; i++ {
		s := ahead
		if i%2 == 1 {
			s = behind
		}
		msg, err := s.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, FromID: a, Text: "m"}, "m")
		req.NoError(err)
		sent = append(sent, msg.ID)
	}

	msgs, err := behind.ListMessages(ctx, conv.ID)
	req.NoError(err)
	models.SortMessages(msgs)
	got := make([]string, 0, len(msgs))
	for _, m := range msgs {
		got = append(got, m.ID)
	}
	req.Equal(sent, got)
}

func TestPairDocID(t *testing.T) {
	req := require.New(t)
	id := pairDocID(models.PairKey("a/b", "c"))
	req.Len(id, 64)
	req.NotContains(id, "/")
	req.Equal(id, pairDocID(models.PairKey("c", "a/b")))
	req.NotEqual(id, pairDocID(models.PairKey("a", "b/c")))
}
