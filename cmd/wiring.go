package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Vasu1712/scenyx-dms/internal/api/dms"
	"github.com/Vasu1712/scenyx-dms/internal/api/httpio"
	"github.com/Vasu1712/scenyx-dms/internal/api/users"
	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/broker"
	"github.com/Vasu1712/scenyx-dms/internal/config"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"github.com/Vasu1712/scenyx-dms/internal/middleware"
	"github.com/Vasu1712/scenyx-dms/internal/storage"
	"github.com/Vasu1712/scenyx-dms/internal/storage/badgerstore"
	"github.com/Vasu1712/scenyx-dms/internal/storage/firestorestore"
	"github.com/Vasu1712/scenyx-dms/internal/storage/memory"
	"github.com/Vasu1712/scenyx-dms/internal/storage/postgres"
	"github.com/Vasu1712/scenyx-dms/internal/ws"
	"github.com/gorilla/mux"
	"github.com/valkey-io/valkey-go"
)

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Store, error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		s, err := postgres.NewPostgresDMStore(ctx, cfg.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreBadger:
		s, err := badgerstore.Open(cfg.BadgerPath, nil, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreFirestore:
		s, err := firestorestore.New(ctx, cfg.FirestoreProjectID, nil, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return memory.NewDMStore(nil), nil
	}
}

type notifier struct {
	notifier broker.Notifier
	run      func(ctx context.Context)
	close    func()
}

func openNotifier(cfg config.Config, log *slog.Logger) (*notifier, error) {
	if cfg.BrokerBackend == config.BrokerValkey {
		client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{cfg.ValkeyAddr}})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to valkey: %w", err)
		}
		return &notifier{
			notifier: broker.NewValkeyNotifier(client, log),
			run:      func(context.Context) {},
			close:    client.Close,
		}, nil
	}
	hub := broker.NewHub()
	return &notifier{notifier: hub, run: hub.Run, close: func() {}}, nil
}

func newVerifier(ctx context.Context, cfg config.Config) (auth.Verifier, error) {
	if cfg.AuthProvider == config.AuthFirebase {
		v, err := auth.NewFirebaseVerifier(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
	v, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func newRouter(
	cfg config.Config,
	log *slog.Logger,
	verifier auth.Verifier,
	dir *directory.Directory,
	registry *conversation.Registry,
	messages *message.Store,
) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpio.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Middleware(verifier))
	dms.RegisterDMRoutes(api, &dms.DMHandler{Registry: registry, Messages: messages})
	users.RegisterUserRoutes(api, &users.UserHandler{Directory: dir})

	wsHandler := ws.NewHandler(dir, registry, messages, cfg.AllowedOrigins(), cfg.WSSendBuffer)
	r.Handle("/ws/dms", auth.Middleware(verifier)(wsHandler)).Methods(http.MethodGet)

	return middleware.RequestLogger(log)(middleware.CORS(cfg.AllowedOrigins())(r))
}
