package dms

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vasu1712/scenyx-dms/internal/apperrors"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"github.com/Vasu1712/scenyx-dms/internal/models"
	"github.com/Vasu1712/scenyx-dms/internal/storage/memory"
	"github.com/gorilla/mux"
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

var identities = tokenVerifier{
	"alice": {ID: "alice", Email: "alice@example.com"},
	"bob":   {ID: "bob", Email: "bob@example.com"},
	"eve":   {ID: "eve", Email: "eve@example.com"},
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := broker.NewHub()
	go hub.Run(ctx)

	store := memory.NewDMStore(nil)
	dir := directory.New(store, logging.Discard())
	for _, id := range identities {
		_, err := dir.EnsureSelf(auth.WithIdentity(context.Background(), id))
		require.NoError(t, err)
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(identities))
	RegisterDMRoutes(api, &DMHandler{
		Registry: conversation.NewRegistry(store, dir, hub, logging.Discard()),
		Messages: message.NewStore(store, hub, logging.Discard()),
	})
	return r
}

func call(t *testing.T, h http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func startChat(t *testing.T, h http.Handler, token, email string) models.Conversation {
	t.Helper()
	rec := call(t, h, http.MethodPost, "/api/v1/dms/start", token, map[string]string{"email": email})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&conv))
	return conv
}

func TestDMRoutes_Conversation_Flow(t *testing.T) {
	req := require.New(t)
	h := newRouter(t)

	conv := startChat(t, h, "alice", "bob@example.com")
	again := startChat(t, h, "bob", "ALICE@example.com")
	req.Equal(conv.ID, again.ID)

	rec := call(t, h, http.MethodPost, "/api/v1/dms/"+conv.ID+"/messages", "alice", map[string]string{"text": "hello"})
	req.Equal(http.StatusCreated, rec.Code)

	rec = call(t, h, http.MethodPost, "/api/v1/dms/"+conv.ID+"/messages", "bob", map[string]string{"text": "   "})
	req.Equal(http.StatusNoContent, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/dms/"+conv.ID+"/messages", "bob", nil)
	req.Equal(http.StatusOK, rec.Code)
	var msgs []models.Message
	req.NoError(json.NewDecoder(rec.Body).Decode(&msgs))
	req.Len(msgs, 1)
	req.Equal("hello", msgs[0].Text)
	req.Equal("alice", msgs[0].FromID)

	rec = call(t, h, http.MethodGet, "/api/v1/dms", "bob", nil)
	req.Equal(http.StatusOK, rec.Code)
	var convs []models.Conversation
	req.NoError(json.NewDecoder(rec.Body).Decode(&convs))
	req.Len(convs, 1)
	req.Equal("hello", convs[0].LastMessage.Text)
}

func TestDMRoutes_Errors(t *testing.T) {
	h := newRouter(t)
	conv := startChat(t, h, "alice", "bob@example.com")

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   any
		want   int
	}{
		{name: "unknown email", method: http.MethodPost, target: "/api/v1/dms/start", token: "alice", body: map[string]string{"email": "ghost@example.com"}, want: http.StatusNotFound},
		{name: "chat with self", method: http.MethodPost, target: "/api/v1/dms/start", token: "alice", body: map[string]string{"email": "alice@example.com"}, want: http.StatusBadRequest},
		{name: "missing email", method: http.MethodPost, target: "/api/v1/dms/start", token: "alice", body: map[string]string{}, want: http.StatusBadRequest},
		{name: "outsider reads", method: http.MethodGet, target: "/api/v1/dms/" + conv.ID + "/messages", token: "eve", want: http.StatusForbidden},
		{name: "outsider sends", method: http.MethodPost, target: "/api/v1/dms/" + conv.ID + "/messages", token: "eve", body: map[string]string{"text": "hi"}, want: http.StatusForbidden},
		{name: "unknown conversation", method: http.MethodGet, target: "/api/v1/dms/missing/messages", token: "alice", want: http.StatusNotFound},
		{name: "bad token", method: http.MethodGet, target: "/api/v1/dms", token: "mallory", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(t, h, tt.method, tt.target, tt.token, tt.body)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}
