package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// TaskInput carries the fields of a new task. Blank optional fields are stored as unset and an
// unparseable due date is dropped.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	AssignedTo  string
}

// TaskPatch describes an edit. Title can be replaced but never cleared. For the other fields Keep
// leaves the value alone, Clear or a blank value unsets it, and a value sets it. A due date that does
// not parse leaves the previous value in place.
type TaskPatch struct {
	Title       todo.Patch[string]
	Description todo.Patch[string]
	DueDate     todo.Patch[string]
	AssignedTo  todo.Patch[string]
}

// loadTask fetches a task and checks identity against its parent list.
func (s *Service) loadTask(ctx context.Context, identity string, id int64) (*todo.Task, *todo.List, error) {
	t, l, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !todo.CanAccess(l, identity) {
		return nil, nil, todo.ErrForbidden
	}
	return t, l, nil
}

func (s *Service) AddTask(ctx context.Context, identity string, listID int64, in TaskInput) (*todo.Task, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	l, err := s.store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if !todo.CanAccess(l, identity) {
		return nil, todo.ErrForbidden
	}

	t := &todo.Task{
		ListID:      listID,
		Title:       in.Title,
		Description: optionalText(in.Description),
		AssignedTo:  optionalText(in.AssignedTo),
	}
	if strings.TrimSpace(in.DueDate) != "" {
		if d, err := todo.ParseDueDate(in.DueDate); err != nil {
			slog.Debug("ignoring due date", "list", listID, "err", err)
		} else {
			t.DueDate = &d
		}
	}
	if err := s.store.InsertTask(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("task added", "list", listID, "task", t.ID, "by", identity)

	s.notifier.Publish(todo.ListTopic(listID), todo.EventTaskAdded,
		t.ListID, t.ID, t.Title, t.Description, t.DueDateString(), t.AssignedTo)
	return t, nil
}

// ToggleTask flips the completion flag.
func (s *Service) ToggleTask(ctx context.Context, identity string, id int64) (*todo.Task, error) {
	t, _, err := s.loadTask(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	t.Completed = !t.Completed
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("task toggled", "task", t.ID, "completed", t.Completed, "by", identity)

	s.notifier.Publish(todo.ListTopic(t.ListID), todo.EventTaskToggled, t.ID, t.Completed)
	return t, nil
}

func (s *Service) UpdateTask(ctx context.Context, identity string, id int64, patch TaskPatch) (*todo.Task, error) {
	t, _, err := s.loadTask(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if title, ok := patch.Title.Value(); ok && strings.TrimSpace(title) != "" {
		t.Title = title
	}
	t.Description = applyText(t.Description, patch.Description)
	t.AssignedTo = applyText(t.AssignedTo, patch.AssignedTo)
	t.DueDate = applyDate(t.DueDate, patch.DueDate)

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, err
	}
	slog.Info("task updated", "task", t.ID, "by", identity)

	s.notifier.Publish(todo.ListTopic(t.ListID), todo.EventTaskUpdated,
		t.ID, t.Title, t.Description, t.DueDateString(), t.AssignedTo, t.Completed)
	return t, nil
}

// DeleteTask removes the task and returns it as it was.
func (s *Service) DeleteTask(ctx context.Context, identity string, id int64) (*todo.Task, error) {
	t, _, err := s.loadTask(ctx, identity, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return nil, err
	}
	slog.Info("task deleted", "list", t.ListID, "task", t.ID, "by", identity)

	s.notifier.Publish(todo.ListTopic(t.ListID), todo.EventTaskDeleted, t.ListID, t.ID)
	return t, nil
}

func applyText(current string, p todo.Patch[string]) string {
	if p.IsClear() {
		return ""
	}
	if v, ok := p.Value(); ok {
		return optionalText(v)
	}
	return current
}

func applyDate(current *time.Time, p todo.Patch[string]) *time.Time {
	if p.IsClear() {
		return nil
	}
	raw, ok := p.Value()
	if !ok {
		return current
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d, err := todo.ParseDueDate(raw)
	if err != nil {
		slog.Debug("ignoring due date", "err", err)
		return current
	}
	return &d
}
