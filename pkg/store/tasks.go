package store

import (
	"context"
	"fmt"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// InsertTask persists t and fills in its id and version. A missing parent list surfaces as a driver
// foreign key error; callers are expected to have loaded the list first.
func (s *Store) InsertTask(ctx context.Context, t *todo.Task) error {
	if err := s.database.QueryRowContext(
		ctx,
		`INSERT INTO todo_tasks (list_id, title, description, due_date, completed, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, version`,
		t.ListID, t.Title, nullable(t.Description), nullable(t.DueDateString()), t.Completed, nullable(t.AssignedTo),
	).Scan(&t.ID, &t.Version); err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// GetTask loads a task together with its parent list.
func (s *Store) GetTask(ctx context.Context, id int64) (*todo.Task, *todo.List, error) {
	t, err := scanTask(s.database.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM todo_tasks WHERE id = $1`, id))
	if err != nil {
		return nil, nil, notFound(err)
	}
	l, err := s.GetList(ctx, t.ListID)
	if err != nil {
		return nil, nil, err
	}
	return t, l, nil
}

// UpdateTask writes every mutable field under the same version check as UpdateList. The parent list
// is never rewritten.
func (s *Store) UpdateTask(ctx context.Context, t *todo.Task) error {
	res, err := s.database.ExecContext(
		ctx,
		`UPDATE todo_tasks SET title = $1, description = $2, due_date = $3, completed = $4, assigned_to = $5, version = version + 1
		WHERE id = $6 AND version = $7`,
		t.Title, nullable(t.Description), nullable(t.DueDateString()), t.Completed, nullable(t.AssignedTo), t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if err := expectOne(res, todo.ErrConflict); err != nil {
		return err
	}
	t.Version++
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.database.ExecContext(ctx, `DELETE FROM todo_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return expectOne(res, todo.ErrNotFound)
}
