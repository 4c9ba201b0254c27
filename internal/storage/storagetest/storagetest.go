// Package storagetest is a conformance suite run against every storage.Store
// implementation.
package storagetest

import (
	"context"
	"sync"
	"testing"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Run executes the suite. newStore must return an empty (or isolated) store;
// ids are randomized so shared databases can be reused between runs.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("UpsertUser keeps CreatedAt and advances UpdatedAt", func(t *testing.T) {
		testUpsertUser(t, newStore(t))
	})
	t.Run("FindUserByEmail", func(t *testing.T) {
		testFindUserByEmail(t, newStore(t))
	})
	t.Run("UpsertUser rejects an email owned by someone else", func(t *testing.T) {
		testEmailConflict(t, newStore(t))
	})
	t.Run("CreateConversation is keyed by the member pair", func(t *testing.T) {
		testCreateConversation(t, newStore(t))
	})
	t.Run("CreateConversation concurrently from both sides", func(t *testing.T) {
		testConcurrentCreate(t, newStore(t))
	})
	t.Run("CreateConversation keeps pairs apart when ids contain separators", func(t *testing.T) {
		testSeparatorIDs(t, newStore(t))
	})
	t.Run("ListConversations ignores ids sharing a prefix", func(t *testing.T) {
		testPrefixIDs(t, newStore(t))
	})
	t.Run("AppendMessage orders the log and updates the preview", func(t *testing.T) {
		testAppendMessage(t, newStore(t))
	})
	t.Run("Unknown conversation", func(t *testing.T) {
		testUnknownConversation(t, newStore(t))
	})
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func newPair(a, b string) *models.Conversation {
	return &models.Conversation{
		Members: [2]string{a, b},
		MembersInfo: map[string]models.MemberInfo{
			a: {ID: a, Email: a + "@x.com"},
			b: {ID: b, Email: b + "@x.com"},
		},
	}
}

func testUpsertUser(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	id := newID("alice")
	email := id + "@x.com"

	first, err := s.UpsertUser(ctx, &models.UserRecord{ID: id, Email: email, NormalizedEmail: email, DisplayName: "Alice"})
	req.NoError(err)
	req.False(first.CreatedAt.IsZero())

	second, err := s.UpsertUser(ctx, &models.UserRecord{ID: id, Email: email, NormalizedEmail: email, DisplayName: "Alice B."})
	req.NoError(err)
	req.True(second.CreatedAt.Equal(first.CreatedAt))
	req.True(second.UpdatedAt.After(first.UpdatedAt))

	got, err := s.GetUser(ctx, id)
	req.NoError(err)
	req.Equal("Alice B.", got.DisplayName)
	req.True(got.CreatedAt.Equal(first.CreatedAt))

	_, err = s.GetUser(ctx, newID("ghost"))
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func testFindUserByEmail(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	id := newID("bob")
	norm := id + "@x.com"

	_, err := s.UpsertUser(ctx, &models.UserRecord{ID: id, Email: "Bob-" + norm, NormalizedEmail: norm})
	req.NoError(err)

	got, err := s.FindUserByEmail(ctx, norm)
	req.NoError(err)
	req.Equal(id, got.ID)

	_, err = s.FindUserByEmail(ctx, "nobody-"+norm)
	req.ErrorIs(err, apperrors.ErrNotFound)
}

func testEmailConflict(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	email := newID("shared") + "@x.com"

	_, err := s.UpsertUser(ctx, &models.UserRecord{ID: newID("first"), Email: email, NormalizedEmail: email})
	req.NoError(err)
	_, err = s.UpsertUser(ctx, &models.UserRecord{ID: newID("second"), Email: email, NormalizedEmail: email})
	req.ErrorIs(err, apperrors.ErrConflict)
}

func testCreateConversation(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	a, b := newID("a"), newID("b")

	conv, created, err := s.CreateConversation(ctx, newPair(a, b))
	req.NoError(err)
	req.True(created)
	req.NotEmpty(conv.ID)
	req.Equal(models.PairKey(a, b), conv.PairKey)
	req.Empty(conv.LastMessage.Text)
	req.Empty(conv.LastMessage.FromID)
	req.False(conv.CreatedAt.IsZero())
	req.Equal(a+"@x.com", conv.MembersInfo[a].Email)

	again, created, err := s.CreateConversation(ctx, newPair(b, a))
	req.NoError(err)
	req.False(created)
	req.Equal(conv.ID, again.ID)

	for _, member := range []string{a, b} {
		convs, err := s.ListConversations(ctx, member)
		req.NoError(err)
		req.Len(convs, 1)
		req.Equal(conv.ID, convs[0].ID)
	}

	got, err := s.GetConversation(ctx, conv.ID)
	req.NoError(err)
	req.True(got.IsPair(a, b))
}

func testSeparatorIDs(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	a, c := newID("a"), newID("c")

	pairs := [][2]string{
		{a + "_b", c}, {a, "b_" + c},
		{a + "|b", c}, {a, "b|" + c},
		{a + ":b", c}, {a, "b:" + c},
	}
	seen := map[string][2]string{}
	for _, p := range pairs {
		conv, created, err := s.CreateConversation(ctx, newPair(p[0], p[1]))
		req.NoError(err)
		req.True(created, "pair %v resolved to conversation of %v", p, seen[conv.ID])
		req.True(conv.IsPair(p[0], p[1]))
		seen[conv.ID] = p
	}
	req.Len(seen, len(pairs))
}

func testPrefixIDs(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	u := newID("u")

	for _, other := range []string{u + ":x", u + "_x", u + "x"} {
		_, _, err := s.CreateConversation(ctx, newPair(other, newID("peer")))
		req.NoError(err)
	}
	convs, err := s.ListConversations(ctx, u)
	req.NoError(err)
	req.Empty(convs)

	own, _, err := s.CreateConversation(ctx, newPair(u, newID("peer")))
	req.NoError(err)
	convs, err = s.ListConversations(ctx, u)
	req.NoError(err)
	req.Len(convs, 1)
	req.Equal(own.ID, convs[0].ID)
}

func testConcurrentCreate(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	a, b := newID("a"), newID("b")

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pair := newPair(a, b)
			if i%2 == 1 {
				pair = newPair(b, a)
			}
			conv, _, err := s.CreateConversation(ctx, pair)
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		req.NoError(errs[i])
		req.Equal(ids[0], ids[i])
	}
	convs, err := s.ListConversations(ctx, a)
	req.NoError(err)
	req.Len(convs, 1)
}

func testAppendMessage(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	a, b, c := newID("a"), newID("b"), newID("c")

	older, _, err := s.CreateConversation(ctx, newPair(a, b))
	req.NoError(err)
	newer, _, err := s.CreateConversation(ctx, newPair(a, c))
	req.NoError(err)

	var sent []*models.Message
	for i, text := range []string{"m1", "m2", "m3"} {
		from := a
		if i == 1 {
			from = b
		}
		msg, err := s.AppendMessage(ctx, &models.Message{ConversationID: older.ID, FromID: from, Text: text}, text)
		req.NoError(err)
		req.NotEmpty(msg.ID)
		req.False(msg.CreatedAt.IsZero())
		sent = append(sent, msg)
	}

	msgs, err := s.ListMessages(ctx, older.ID)
	req.NoError(err)
	req.Len(msgs, 3)
	for i := range msgs {
		req.Equal(sent[i].ID, msgs[i].ID)
		req.Equal(older.ID, msgs[i].ConversationID)
	}
	req.Equal([]string{"m1", "m2", "m3"}, []string{msgs[0].Text, msgs[1].Text, msgs[2].Text})

	conv, err := s.GetConversation(ctx, older.ID)
	req.NoError(err)
	req.Equal("m3", conv.LastMessage.Text)
	req.Equal(a, conv.LastMessage.FromID)
	req.True(conv.UpdatedAt.After(conv.CreatedAt))

	// The conversation with the newest message comes first.
	convs, err := s.ListConversations(ctx, a)
	req.NoError(err)
	req.Len(convs, 2)
	req.Equal(older.ID, convs[0].ID)
	req.Equal(newer.ID, convs[1].ID)
}

func testUnknownConversation(t *testing.T, s storage.Store) {
	req := require.New(t)
	ctx := context.Background()
	missing := newID("missing")

	_, err := s.GetConversation(ctx, missing)
	req.ErrorIs(err, apperrors.ErrNotFound)
	_, err = s.AppendMessage(ctx, &models.Message{ConversationID: missing, FromID: "a", Text: "hi"}, "hi")
	req.ErrorIs(err, apperrors.ErrNotFound)
}
