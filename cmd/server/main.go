package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/astromechza/todo-sync/pkg/api"
	"github.com/astromechza/todo-sync/pkg/config"
	"github.com/astromechza/todo-sync/pkg/hub"
	"github.com/astromechza/todo-sync/pkg/logging"
	"github.com/astromechza/todo-sync/pkg/service"
	"github.com/astromechza/todo-sync/pkg/store"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format, "todosync"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("Opening database", "driver", cfg.Database.Driver)
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	var svc *service.Service
	h := hub.New(hub.AuthorizerFunc(func(ctx context.Context, identity string, listID int64) error {
		return svc.AuthorizeListTopic(ctx, identity, listID)
	}), hub.Options{SendBuffer: cfg.Hub.SendBuffer, PingInterval: cfg.Hub.PingInterval})
	svc = service.New(st, h, service.WithOwnerEnforcement(cfg.EnforceListOwner))
	if !svc.OwnerEnforced() {
		slog.Warn("list owner is not enforced: any authenticated identity may edit or delete a list by id")
	}

	router, err := api.NewRouter(svc, h, st, api.Options{
		Identity: api.IdentityOptions{
			JWTSecret: []byte(cfg.Auth.JWTSecret),
			Header:    cfg.Auth.IdentityHeader,
		},
		BaseContext: ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: router}
	wg := new(sync.WaitGroup)

	serveErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("listening", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exit:
		slog.Info("Signal caught", "sig", sig)
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("server listen failed: %w", err)
	}

	// hijacked websocket connections are not tracked by Shutdown
	cancel()
	h.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "err", err)
		_ = httpServer.Close()
	}
	wg.Wait()
	slog.Info("stopped")
	return nil
}
