// Package hub is a websocket publish/subscribe relay. Connections join list topics and their own user
// topic; Publish fans an event out to whoever is subscribed at that moment. Delivery is at most once:
// a connection whose queue is full misses the event and is expected to re-fetch.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Authorizer decides whether identity may join the topic of a list.
type Authorizer interface {
	AuthorizeListTopic(ctx context.Context, identity string, listID int64) error
}

type AuthorizerFunc func(ctx context.Context, identity string, listID int64) error

func (f AuthorizerFunc) AuthorizeListTopic(ctx context.Context, identity string, listID int64) error {
	return f(ctx, identity, listID)
}

type Options struct {
	// SendBuffer is the number of frames queued per connection before events are dropped.
	SendBuffer   int
	PingInterval time.Duration
	WriteTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:   64,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

type Hub struct {
	opts       Options
	authorizer Authorizer

	mu     sync.RWMutex
	topics map[string]map[*Conn]struct{}
	conns  map[*Conn]struct{}
}

func New(authorizer Authorizer, opts Options) *Hub {
	defaults := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	return &Hub{
		opts:       opts,
		authorizer: authorizer,
		topics:     make(map[string]map[*Conn]struct{}),
		conns:      make(map[*Conn]struct{}),
	}
}

// Frame is every server to client message.
type Frame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Event   string `json:"event,omitempty"`
	Args    []any  `json:"args,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	FrameEvent  = "event"
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameError  = "error"
)

// Publish sends event to every current subscriber of topic without blocking.
func (h *Hub) Publish(topic, event string, args ...any) {
	if args == nil {
		args = []any{}
	}
	payload, err := json.Marshal(Frame{Type: FrameEvent, Topic: topic, Event: event, Args: args})
	if err != nil {
		slog.Error("failed to encode event", "topic", topic, "event", event, "err", err)
		return
	}

	h.mu.RLock()
	subscribers := make([]*Conn, 0, len(h.topics[topic]))
	for c := range h.topics[topic] {
		subscribers = append(subscribers, c)
	}
	h.mu.RUnlock()

	for _, c := range subscribers {
		if !c.enqueue(payload) {
			slog.Warn("dropped event for slow connection", "conn", c.ID, "topic", topic, "event", event)
		}
	}
	slog.Debug("published", "topic", topic, "event", event, "subscribers", len(subscribers))
}

func (h *Hub) register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// unregister drops c from the hub and from every topic it joined.
func (h *Hub) unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
	for topic := range c.topics {
		h.removeLocked(c, topic)
	}
	c.topics = map[string]struct{}{}
}

func (h *Hub) join(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.topics[topic]
	if !ok {
		members = make(map[*Conn]struct{})
		h.topics[topic] = members
	}
	members[c] = struct{}{}
	c.topics[topic] = struct{}{}
}

func (h *Hub) leave(c *Conn, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c, topic)
	delete(c.topics, topic)
}

// Revoke unsubscribes every connection of identity from topic. Each one is sent a left frame.
func (h *Hub) Revoke(topic, identity string) {
	h.evict(topic, func(c *Conn) bool { return c.Identity == identity })
}

// CloseTopic unsubscribes every member of topic, sending each a left frame.
func (h *Hub) CloseTopic(topic string) {
	h.evict(topic, func(*Conn) bool { return true })
}

func (h *Hub) evict(topic string, match func(*Conn) bool) {
	h.mu.Lock()
	var evicted []*Conn
	for c := range h.topics[topic] {
		if match(c) {
			evicted = append(evicted, c)
		}
	}
	for _, c := range evicted {
		h.removeLocked(c, topic)
		delete(c.topics, topic)
	}
	h.mu.Unlock()

	for _, c := range evicted {
		c.reply(Frame{Type: FrameLeft, Topic: topic})
	}
	if len(evicted) > 0 {
		slog.Info("evicted from topic", "topic", topic, "conns", len(evicted))
	}
}

func (h *Hub) removeLocked(c *Conn, topic string) {
	if members, ok := h.topics[topic]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
}

type Stats struct {
	Connections int `json:"connections"`
	Topics      int `json:"topics"`
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{Connections: len(h.conns), Topics: len(h.topics)}
}

// Close disconnects every connection.
func (h *Hub) Close() {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
}
