package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// ListInput carries the client-settable list fields. SharedWith is the comma separated form.
type ListInput struct {
	Name       string
	SharedWith string
}

// CreateList persists a new list owned by identity. Any owner the client may have supplied is ignored.
func (s *Service) CreateList(ctx context.Context, identity string, in ListInput) (*todo.List, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	l := &todo.List{
		Name:       strings.TrimSpace(in.Name),
		Owner:      identity,
		SharedWith: todo.ParseShares(in.SharedWith),
	}
	if err := s.store.InsertList(ctx, l); err != nil {
		return nil, err
	}
	slog.Info("list created", "list", l.ID, "owner", l.Owner, "shared", len(l.SharedWith))

	s.notifier.Publish(todo.UserTopic(l.Owner), todo.EventListCreated, l.ID, l.Name, l.Owner)
	for _, recipient := range l.SharedWith {
		s.notifier.Publish(todo.UserTopic(recipient), todo.EventListShared, l.ID, l.Name, l.Owner)
	}
	return l, nil
}

// UpdateList renames and re-shares a list. Identities added to the share set are told the list was
// shared with them and removed ones are told it was unshared; viewers of the list always get the new
// sharing string. Removed identities lose their subscription to the list topic before anything is published.
func (s *Service) UpdateList(ctx context.Context, identity string, id int64, in ListInput) (*todo.List, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	l, err := s.store.GetList(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.enforceOwner && !todo.IsOwner(l, identity) {
		return nil, todo.ErrForbidden
	}

	oldName := l.Name
	oldShared := l.SharedWith
	l.Name = strings.TrimSpace(in.Name)
	l.SharedWith = todo.ParseShares(in.SharedWith)

	if err := s.store.UpdateList(ctx, l); err != nil {
		if !errors.Is(err, todo.ErrConflict) {
			return nil, err
		}
		exists, existsErr := s.store.ListExists(ctx, id)
		if existsErr != nil {
			return nil, existsErr
		}
		if !exists {
			return nil, todo.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update list %d: %w", id, err)
	}
	slog.Info("list updated", "list", l.ID, "by", identity)

	topic := todo.ListTopic(l.ID)
	removed := l.SharedWith.Removed(oldShared)
	for _, r := range removed {
		if !todo.CanAccess(l, r) {
			s.notifier.Revoke(topic, r)
		}
	}
	if oldName != l.Name {
		s.notifier.Publish(topic, todo.EventListUpdated, l.ID, l.Name)
	}
	s.notifier.Publish(topic, todo.EventListSharingUpdated, l.ID, l.SharedWith.String())
	for _, added := range l.SharedWith.Added(oldShared) {
		s.notifier.Publish(todo.UserTopic(added), todo.EventListShared, l.ID, l.Name, l.Owner)
	}
	for _, r := range removed {
		s.notifier.Publish(todo.UserTopic(r), todo.EventListUnshared, l.ID)
	}
	return l, nil
}

// DeleteList removes a list and its tasks. Deleting a list that does not exist is not an error and
// publishes nothing.
func (s *Service) DeleteList(ctx context.Context, identity string, id int64) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	l, err := s.store.GetList(ctx, id)
	if errors.Is(err, todo.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	if s.enforceOwner && !todo.IsOwner(l, identity) {
		return todo.ErrForbidden
	}

	shared := l.SharedWith
	if err := s.store.DeleteList(ctx, id); errors.Is(err, todo.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	slog.Info("list deleted", "list", id, "by", identity)

	s.notifier.Publish(todo.ListTopic(id), todo.EventListDeleted, id)
	s.notifier.CloseTopic(todo.ListTopic(id))
	for _, recipient := range shared {
		s.notifier.Publish(todo.UserTopic(recipient), todo.EventListDeleted, id)
	}
	return nil
}

// ListsFor returns the lists identity owns or is shared on, newest first.
func (s *Service) ListsFor(ctx context.Context, identity string) ([]*todo.List, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	return s.store.ListsFor(ctx, identity)
}

// GetList returns the list with its tasks if identity may access it.
func (s *Service) GetList(ctx context.Context, identity string, id int64) (*todo.List, error) {
	l, err := s.store.GetListWithTasks(ctx, id)
	if err != nil {
		return nil, err
	}
	if !todo.CanAccess(l, identity) {
		return nil, todo.ErrForbidden
	}
	return l, nil
}

// AuthorizeListTopic decides whether identity may subscribe to a list's topic.
func (s *Service) AuthorizeListTopic(ctx context.Context, identity string, id int64) error {
	l, err := s.store.GetList(ctx, id)
	if err != nil {
		return err
	}
	if !todo.CanAccess(l, identity) {
		return todo.ErrForbidden
	}
	return nil
}
