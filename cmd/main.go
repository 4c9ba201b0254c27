package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Vasu1712/scenyx-dms/internal/config"
	"github.com/Vasu1712/scenyx-dms/internal/conversation"
	"github.com/Vasu1712/scenyx-dms/internal/directory"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/message"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing store", slog.String("backend", cfg.StoreBackend))
		if err := store.Close(); err != nil {
			log.Error("failed to close store", slog.String(logging.ErrorMsgField, err.Error()))
		}
	}()

	n, err := openNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer n.close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		return err
	}

	dir := directory.New(store, log)
	registry := conversation.NewRegistry(store, dir, n.notifier, log)
	messages := message.NewStore(store, n.notifier, log)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg, log, verifier, dir, registry, messages),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n.run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("server started", slog.String("addr", srv.Addr),
			slog.String("store", cfg.StoreBackend),
			slog.String("broker", cfg.BrokerBackend),
			slog.String("auth", cfg.AuthProvider))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
