package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// Conn is one subscribed client.
type Conn struct {
	ID       string
	Identity string

	send      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	ws        *websocket.Conn

	// topics is guarded by Hub.mu.
	topics map[string]struct{}
}

func newConn(identity string, buffer int) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		Identity: identity,
		send:     make(chan []byte, buffer),
		closed:   make(chan struct{}),
		topics:   make(map[string]struct{}),
	}
}

// enqueue never blocks; it reports false when the frame was dropped.
func (c *Conn) enqueue(payload []byte) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Conn) reply(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		slog.Error("failed to encode frame", "conn", c.ID, "err", err)
		return
	}
	if !c.enqueue(payload) {
		slog.Warn("dropped reply for slow connection", "conn", c.ID, "type", f.Type)
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// Request is every client to server message.
type Request struct {
	Action string `json:"action"`
	ListID int64  `json:"listId,omitempty"`
}

const (
	ActionJoinList  = "join_list"
	ActionLeaveList = "leave_list"
	ActionJoinUser  = "join_user"
	ActionLeaveUser = "leave_user"
)

// Serve runs the read and write loops for an upgraded websocket until either side closes or ctx ends.
// Memberships are dropped when it returns.
func (h *Hub) Serve(ctx context.Context, ws *websocket.Conn, identity string) error {
	c := newConn(identity, h.opts.SendBuffer)
	c.ws = ws
	h.register(c)
	defer h.unregister(c)
	defer c.close()
	slog.Info("connected", "conn", c.ID, "identity", identity)

	pongWait := h.opts.PingInterval * 2
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	var readErr error
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.close()
		for {
			if err := h.readAndHandle(ctx, c); err != nil {
				readErr = err
				return
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer c.close()
		t := time.NewTicker(h.opts.PingInterval)
		defer t.Stop()
		for {
			select {
			case payload := <-c.send:
				_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
					slog.Error("failed to write message", "conn", c.ID, "err", err)
					return
				}
			case <-t.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
					slog.Error("failed to ping", "conn", c.ID, "err", err)
					return
				}
			case <-c.closed:
				return
			case <-ctx.Done():
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(h.opts.WriteTimeout))
				return
			}
		}
	}()

	wg.Wait()
	slog.Info("disconnected", "conn", c.ID, "identity", identity)
	if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return fmt.Errorf("connection closed: %w", readErr)
	}
	return nil
}

func (h *Hub) readAndHandle(ctx context.Context, c *Conn) error {
	mt, p, err := c.ws.ReadMessage()
	if err != nil {
		return err
	}
	switch mt {
	case websocket.TextMessage:
		var req Request
		if err := json.Unmarshal(p, &req); err != nil {
			c.reply(Frame{Type: FrameError, Message: "malformed request"})
			return nil
		}
		h.handle(ctx, c, req)
	default:
	}
	return nil
}

func (h *Hub) handle(ctx context.Context, c *Conn, req Request) {
	switch req.Action {
	case ActionJoinList:
		topic := todo.ListTopic(req.ListID)
		if err := h.authorizeList(ctx, c.Identity, req.ListID); err != nil {
			c.reply(Frame{Type: FrameError, Topic: topic, Message: err.Error()})
			return
		}
		h.join(c, topic)
		c.reply(Frame{Type: FrameJoined, Topic: topic})
	case ActionLeaveList:
		topic := todo.ListTopic(req.ListID)
		h.leave(c, topic)
		c.reply(Frame{Type: FrameLeft, Topic: topic})
	case ActionJoinUser:
		topic := todo.UserTopic(c.Identity)
		h.join(c, topic)
		c.reply(Frame{Type: FrameJoined, Topic: topic})
	case ActionLeaveUser:
		topic := todo.UserTopic(c.Identity)
		h.leave(c, topic)
		c.reply(Frame{Type: FrameLeft, Topic: topic})
	default:
		c.reply(Frame{Type: FrameError, Message: fmt.Sprintf("unknown action %q", req.Action)})
	}
}

func (h *Hub) authorizeList(ctx context.Context, identity string, listID int64) error {
	if listID <= 0 {
		return todo.ErrNotFound
	}
	if h.authorizer == nil {
		return nil
	}
	return h.authorizer.AuthorizeListTopic(ctx, identity, listID)
}
