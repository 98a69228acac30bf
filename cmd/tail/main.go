package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"

	"github.com/astromechza/todo-sync/pkg/config"
	"github.com/astromechza/todo-sync/pkg/hub"
	"github.com/astromechza/todo-sync/pkg/logging"
	"github.com/astromechza/todo-sync/pkg/tail"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", config.DefaultAddr, "the address of the server")
	identityVar := flag.String("identity", "", "identity to send in the identity header")
	headerVar := flag.String("identity-header", config.DefaultIdentityHeader, "header carrying the identity")
	tokenVar := flag.String("token", os.Getenv("TODOSYNC_TOKEN"), "bearer token, used instead of the identity header")
	listsVar := flag.String("lists", "", "comma separated list ids to follow")
	logLevelVar := flag.String("log-level", "warn", "log level")
	flag.Parse()

	if err := logging.Setup(os.Stderr, *logLevelVar, "text", "tail"); err != nil {
		return err
	}
	if *identityVar == "" && *tokenVar == "" {
		return fmt.Errorf("one of -identity or -token is required")
	}
	listIDs, err := parseListIDs(*listsVar)
	if err != nil {
		return err
	}

	u := url.URL{Scheme: "ws", Host: *addrVar, Path: "/api/hub"}
	header := http.Header{}
	if *tokenVar != "" {
		header.Set("Authorization", "Bearer "+*tokenVar)
	} else {
		header.Set(*headerVar, *identityVar)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	requests := []hub.Request{{Action: hub.ActionJoinUser}}
	for _, id := range listIDs {
		requests = append(requests, hub.Request{Action: hub.ActionJoinList, ListID: id})
	}
	for _, req := range requests {
		if err := conn.WriteJSON(req); err != nil {
			return fmt.Errorf("failed to send %s: %w", req.Action, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames := make(chan hub.Frame, 16)
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		for {
			var f hub.Frame
			if err := conn.ReadJSON(&f); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Error("failed to read", "err", err)
				}
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-exit:
			slog.Info("Signal caught", "sig", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	label := *identityVar
	if label == "" {
		label = "(token)"
	}
	program := tea.NewProgram(tail.New(label, frames), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	interrupted := ctx.Err() != nil

	cancel()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	wg.Wait()
	if runErr != nil && !interrupted {
		return runErr
	}
	return nil
}

func parseListIDs(raw string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid list id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}
