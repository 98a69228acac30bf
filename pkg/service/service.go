// Package service applies list and task mutations and mirrors each one to connected clients.
//
// Every mutation follows the same sequence: validate input, load and authorize, persist, then publish
// to the affected topics. Publishing happens after the store call succeeds and never fails the mutation.
package service

import (
	"context"
	"strings"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// Store is the persistence contract the service depends on. Missing records are todo.ErrNotFound and
// version mismatches on update are todo.ErrConflict.
type Store interface {
	InsertList(ctx context.Context, l *todo.List) error
	GetList(ctx context.Context, id int64) (*todo.List, error)
	GetListWithTasks(ctx context.Context, id int64) (*todo.List, error)
	ListExists(ctx context.Context, id int64) (bool, error)
	UpdateList(ctx context.Context, l *todo.List) error
	DeleteList(ctx context.Context, id int64) error
	ListsFor(ctx context.Context, identity string) ([]*todo.List, error)

	InsertTask(ctx context.Context, t *todo.Task) error
	GetTask(ctx context.Context, id int64) (*todo.Task, *todo.List, error)
	UpdateTask(ctx context.Context, t *todo.Task) error
	DeleteTask(ctx context.Context, id int64) error
}

// Notifier delivers a named event with positional arguments to every current subscriber of topic.
// Delivery is best effort.
type Notifier interface {
	Publish(topic, event string, args ...any)
	// Revoke unsubscribes identity from topic.
	Revoke(topic, identity string)
	// CloseTopic unsubscribes everyone from topic.
	CloseTopic(topic string)
}

type Service struct {
	store        Store
	notifier     Notifier
	enforceOwner bool
}

type Option func(*Service)

// WithOwnerEnforcement restricts list edit and delete to the list owner. Without it any identity that
// knows a list id may edit or delete it.
func WithOwnerEnforcement(enabled bool) Option {
	return func(s *Service) {
		s.enforceOwner = enabled
	}
}

func New(store Store, notifier Notifier, opts ...Option) *Service {
	s := &Service{store: store, notifier: notifier}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OwnerEnforced reports whether list edit and delete are restricted to the owner.
func (s *Service) OwnerEnforced() bool {
	return s.enforceOwner
}

func requireIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return todo.ErrForbidden
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &todo.ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

// optionalText normalizes whitespace-only input to unset.
func optionalText(v string) string {
	if strings.TrimSpace(v) == "" {
		return ""
	}
	return v
}
