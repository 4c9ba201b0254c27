package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/config"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"github.com/stretchr/testify/require"
)

func testConfig() config.Config {
	return config.Config{
		Port:            8080,
		StoreBackend:    config.StoreMemory,
		BrokerBackend:   config.BrokerHub,
		AuthProvider:    config.AuthJWT,
		JWTSecret:       "test-secret",
		JWTIssuer:       "scenyx-dms",
		CORSOrigins:     "http://127.0.0.1:5173",
		ShutdownTimeout: time.Second,
		WSSendBuffer:    16,
	}
}

func newTestRouter(t *testing.T, cfg config.Config) (http.Handler, *auth.JWTVerifier) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	log := logging.Discard()

	store, err := openStore(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	n, err := openNotifier(cfg, log)
	require.NoError(t, err)
	go n.run(ctx)
	t.Cleanup(n.close)

	verifier, err := newVerifier(ctx, cfg)
	require.NoError(t, err)
	jwtVerifier := verifier.(*auth.JWTVerifier)

	dir := directory.New(store, log)
	registry := conversation.NewRegistry(store, dir, n.notifier, log)
	messages := message.NewStore(store, n.notifier, log)
	return newRouter(cfg, log, verifier, dir, registry, messages), jwtVerifier
}

func TestRouter(t *testing.T) {
	h, verifier := newTestRouter(t, testConfig())
	token, err := verifier.IssueToken(auth.Identity{ID: "alice", Email: "alice@example.com"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		target string
		token  string
		body   string
		want   int
	}{
		{name: "health", method: http.MethodGet, target: "/healthz", want: http.StatusOK},
		{name: "api without token", method: http.MethodGet, target: "/api/v1/dms", want: http.StatusUnauthorized},
		{name: "ensure me", method: http.MethodPut, target: "/api/v1/users/me", token: token, want: http.StatusOK},
		{name: "list", method: http.MethodGet, target: "/api/v1/dms", token: token, want: http.StatusOK},
		{name: "start unknown", method: http.MethodPost, target: "/api/v1/dms/start", token: token, body: `{"email":"ghost@example.com"}`, want: http.StatusNotFound},
		{name: "websocket without token", method: http.MethodGet, target: "/ws/dms", want: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, target: "/nope", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_CORS_Preflight(t *testing.T) {
	h, _ := newTestRouter(t, testConfig())
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/dms/start", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "http://127.0.0.1:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOpenStore_Badger(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = config.StoreBadger
	cfg.BadgerPath = t.TempDir()

	store, err := openStore(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
