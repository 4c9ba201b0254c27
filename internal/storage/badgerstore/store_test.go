package badgerstore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/Vasu1712/scenyx-dms/internal/storage/storagetest"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open(t.TempDir(), nil, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_InMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		s, err := Open("", nil, logging.Discard())
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func Test_Messages_Survive_Reopen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, nil, logging.Discard())
	req.NoError(err)
	conv, _, err := s.CreateConversation(ctx, &models.Conversation{Members: [2]string{"alice", "bob"}})
	req.NoError(err)
	first, err := s.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, FromID: "alice", Text: "hello"}, "hello")
	req.NoError(err)
	req.NoError(s.Close())

	s, err = Open(dir, nil, logging.Discard())
	req.NoError(err)
	defer s.Close()

	second, err := s.AppendMessage(ctx, &models.Message{ConversationID: conv.ID, FromID: "bob", Text: "hi"}, "hi")
	req.NoError(err)
	req.Greater(second.Seq, first.Seq)

	msgs, err := s.ListMessages(ctx, conv.ID)
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal("hello", msgs[0].Text)
	req.Equal("hi", msgs[1].Text)

	got, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.Equal(models.PairKey("alice", "bob"), got.PairKey)
}

func Test_Message_Keys_Sort_By_Time_Then_Seq(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	s, err := New(db, nil, logging.Discard())
	req.NoError(err)
	defer s.Close()

	at := time.Now()
	a := &models.Message{ConversationID: "c", Seq: 9, CreatedAt: at}
	b := &models.Message{ConversationID: "c", Seq: 10, CreatedAt: at}
	c := &models.Message{ConversationID: "c", Seq: 1, CreatedAt: at.Add(time.Nanosecond)}
	req.Less(string(msgKey(a)), string(msgKey(b)))
	req.Less(string(msgKey(b)), string(msgKey(c)))
}

func Test_Scan_Prefixes_Do_Not_Overlap(t *testing.T) {
	tests := []struct {
		name  string
		short []byte
		long  []byte
	}{
		{name: "member", short: memberPrefix("a"), long: memberKey("a:b", "conv")},
		{name: "member underscore", short: memberPrefix("a"), long: memberKey("a_b", "conv")},
		{name: "message", short: msgPrefix("c"), long: msgKey(&models.Message{ConversationID: "c:1", CreatedAt: time.Now()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.False(t, bytes.HasPrefix(tt.long, tt.short), "%q is a prefix of %q", tt.short, tt.long)
		})
	}
}
