package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/astromechza/todo-sync/pkg/config"
	"github.com/astromechza/todo-sync/pkg/logging"
	"github.com/astromechza/todo-sync/pkg/store"
	"github.com/astromechza/todo-sync/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	identityVar := flag.String("identity", "", "draw the lists this identity owns or is shared on")
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Format, "sharegraph"); err != nil {
		return err
	}
	if *identityVar == "" {
		return fmt.Errorf("-identity is required")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	lists, err := st.ListsFor(ctx, *identityVar)
	if err != nil {
		return fmt.Errorf("failed to load lists: %w", err)
	}
	for _, l := range lists {
		slog.Info("list", "id", l.ID, "name", l.Name, "owner", l.Owner, "shared", l.SharedWith.String(), "tasks", len(l.Tasks))
	}

	svgPath, err := viz.RenderToTemp(lists)
	if err != nil {
		return err
	}
	slog.Info("rendered", "lists", len(lists), "path", "file://"+svgPath)
	return nil
}
