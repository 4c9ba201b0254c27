package session

import (
	"context"
	"testing"

	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"github.com/Vasu1712/scenyx-dms/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd_Alice_Messages_Bob(t *testing.T) {
	req := require.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := broker.NewHub()
	go hub.Run(ctx)
	store := memory.NewDMStore(nil)
	dir := directory.New(store, logging.Discard())
	registry := conversation.NewRegistry(store, dir, hub, logging.Discard())
	messages := message.NewStore(store, hub, logging.Discard())

	alice := auth.Identity{ID: "alice", Email: "alice@example.com", DisplayName: "Alice"}
	bob := auth.Identity{ID: "bob", Email: "Bob@Example.com"}

	a, aliceView, _ := startController(t, dir, registry, messages)
	b, bobView, _ := startController(t, dir, registry, messages)

	b.SignIn(bob)
	bobView.waitFor(t, "bob ready", ready)
	a.SignIn(alice)
	aliceView.waitFor(t, "alice ready", ready)

	a.StartChat("bob@example.com")
	v := aliceView.waitFor(t, "alice selected the new chat", func(v View) bool {
		return v.SelectedID != "" && v.Peer != nil && !v.BusyNew
	})
	convID := v.SelectedID
	req.Equal("bob", v.Peer.ID)
	req.Equal("Bob@Example.com", v.Peer.Name)

	v = bobView.waitFor(t, "bob sees the chat", func(v View) bool { return v.SelectedID == convID })
	req.Equal("Alice", v.Peer.Name)
	req.Equal("No messages", v.Conversations[0].Preview)

	a.Send("hello bob")
	v = bobView.waitFor(t, "bob receives", func(v View) bool { return len(v.Messages) == 1 })
	req.Equal("hello bob", v.Messages[0].Text)
	req.False(v.Messages[0].Mine)

	v = bobView.waitFor(t, "bob preview", func(v View) bool {
		return len(v.Conversations) == 1 && v.Conversations[0].Preview == "hello bob"
	})
	req.True(v.Conversations[0].Active)

	b.Send("hi alice")
	v = aliceView.waitFor(t, "alice receives", func(v View) bool { return len(v.Messages) == 2 })
	req.Equal([]string{"hello bob", "hi alice"}, []string{v.Messages[0].Text, v.Messages[1].Text})
	req.True(v.Messages[0].Mine)
	req.False(v.Messages[1].Mine)

	// Starting the same chat from the other side reuses the conversation.
	b.StartChat("alice@example.com")
	v = bobView.waitFor(t, "bob start chat settles", func(v View) bool { return !v.BusyNew && v.SelectedID == convID })
	req.Len(v.Conversations, 1)
	req.Empty(v.Err)
}
