package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"github.com/Vasu1712/scenyx-dms/internal/session"
	"github.com/Vasu1712/scenyx-dms/internal/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type tokenVerifier map[string]auth.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, apperrors.ErrUnauthenticated
	}
	return id, nil
}

var users = tokenVerifier{
	"alice-token": {ID: "alice", Email: "alice@example.com", DisplayName: "Alice"},
	"bob-token":   {ID: "bob", Email: "bob@example.com", DisplayName: "Bob"},
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := broker.NewHub()
	go hub.Run(ctx)

	store := memory.NewDMStore(nil)
	dir := directory.New(store, logging.Discard())
	registry := conversation.NewRegistry(store, dir, hub, logging.Discard())
	messages := message.NewStore(store, hub, logging.Discard())

	handler := auth.Middleware(users)(NewHandler(dir, registry, messages, nil, 64))
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dms?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// awaitView reads frames until a view satisfies cond.
func awaitView(t *testing.T, conn *websocket.Conn, cond func(session.View) bool) session.View {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == frameView && cond(*frame.View) {
			return *frame.View
		}
	}
}

func TestHandler_Rejects_Missing_Or_Bad_Token(t *testing.T) {
	srv := newServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dms"

	for _, suffix := range []string{"", "?token=nope"} {
		_, resp, err := websocket.DefaultDialer.Dial(url+suffix, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestHandler_Chat_Between_Two_Sockets(t *testing.T) {
	req := require.New(t)
	srv := newServer(t)

	bob := dial(t, srv, "bob-token")
	awaitView(t, bob, func(v session.View) bool { return v.State == "ready" })
	alice := dial(t, srv, "alice-token")
	awaitView(t, alice, func(v session.View) bool { return v.State == "ready" })

	req.NoError(alice.WriteJSON(ClientFrame{Type: frameStartChat, Email: "bob@example.com"}))
	v := awaitView(t, alice, func(v session.View) bool { return v.SelectedID != "" && v.Peer != nil })
	req.Equal("Bob", v.Peer.Name)

	req.NoError(alice.WriteJSON(ClientFrame{Type: frameSend, Text: "hi bob"}))
	v = awaitView(t, bob, func(v session.View) bool { return len(v.Messages) == 1 })
	req.Equal("hi bob", v.Messages[0].Text)
	req.False(v.Messages[0].Mine)
	req.Equal("Alice", v.Peer.Name)

	req.NoError(bob.WriteJSON(ClientFrame{Type: frameSignOut}))
	v = awaitView(t, bob, func(v session.View) bool { return v.State == "unauthenticated" })
	req.Empty(v.Conversations)
}

func TestHandler_Unknown_Frame(t *testing.T) {
	srv := newServer(t)
	conn := dial(t, srv, "alice-token")
	awaitView(t, conn, func(v session.View) bool { return v.State == "ready" })

	require.NoError(t, conn.WriteJSON(ClientFrame{Type: "dance"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var frame ServerFrame
		require.NoError(t, conn.ReadJSON(&frame))
		if frame.Type == frameError {
			require.Contains(t, frame.Error, "dance")
			return
		}
	}
}

type recordingController struct {
	calls []string
}

func (c *recordingController) Select(id string)      { c.calls = append(c.calls, "select:"+id) }
func (c *recordingController) StartChat(email string) { c.calls = append(c.calls, "start:"+email) }
func (c *recordingController) Send(text string)       { c.calls = append(c.calls, "send:"+text) }
func (c *recordingController) SetDraft(text string)   { c.calls = append(c.calls, "draft:"+text) }
func (c *recordingController) SignOut()               { c.calls = append(c.calls, "signout") }

func TestDispatch(t *testing.T) {
	c := &recordingController{}
	frames := []ClientFrame{
		{Type: frameSelect, ConversationID: "c1"},
		{Type: frameStartChat, Email: "b@x.com"},
		{Type: frameDraft, Text: "he"},
		{Type: frameSend, Text: "hello"},
		{Type: frameSignOut},
	}
	for _, f := range frames {
		require.NoError(t, dispatch(c, f))
	}
	require.Equal(t, []string{"select:c1", "start:b@x.com", "draft:he", "send:hello", "signout"}, c.calls)
	require.Error(t, dispatch(c, ClientFrame{Type: "nope"}))
}
