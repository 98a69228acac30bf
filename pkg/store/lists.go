package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/astromechza/todo-sync/pkg/todo"
)

// InsertList persists l and fills in its id and version.
func (s *Store) InsertList(ctx context.Context, l *todo.List) error {
	if err := s.database.QueryRowContext(
		ctx,
		`INSERT INTO todo_lists (name, owner, shared_with) VALUES ($1, $2, $3) RETURNING id, version`,
		l.Name, l.Owner, l.SharedWith.String(),
	).Scan(&l.ID, &l.Version); err != nil {
		return fmt.Errorf("failed to insert list: %w", err)
	}
	return nil
}

func (s *Store) GetList(ctx context.Context, id int64) (*todo.List, error) {
	l, err := scanList(s.database.QueryRowContext(ctx, `SELECT `+listColumns+` FROM todo_lists WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// GetListWithTasks loads the list and its tasks ordered by id.
func (s *Store) GetListWithTasks(ctx context.Context, id int64) (*todo.List, error) {
	l, err := s.GetList(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachTasks(ctx, []*todo.List{l}); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Store) ListExists(ctx context.Context, id int64) (bool, error) {
	var n int
	if err := s.database.QueryRowContext(ctx, `SELECT COUNT(*) FROM todo_lists WHERE id = $1`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to query list: %w", err)
	}
	return n > 0, nil
}

// UpdateList writes name and sharing if the stored version still matches l.Version, otherwise it
// returns todo.ErrConflict. On success l.Version is advanced.
func (s *Store) UpdateList(ctx context.Context, l *todo.List) error {
	res, err := s.database.ExecContext(
		ctx,
		`UPDATE todo_lists SET name = $1, shared_with = $2, version = version + 1 WHERE id = $3 AND version = $4`,
		l.Name, l.SharedWith.String(), l.ID, l.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update list: %w", err)
	}
	if err := expectOne(res, todo.ErrConflict); err != nil {
		return err
	}
	l.Version++
	return nil
}

// DeleteList removes the list; its tasks go with it through the foreign key.
func (s *Store) DeleteList(ctx context.Context, id int64) error {
	res, err := s.database.ExecContext(ctx, `DELETE FROM todo_lists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return expectOne(res, todo.ErrNotFound)
}

// ListsFor returns every list identity owns or is shared on, newest first, with tasks attached.
// The LIKE clause only narrows candidates; membership is decided exactly in Go.
func (s *Store) ListsFor(ctx context.Context, identity string) ([]*todo.List, error) {
	rows, err := s.database.QueryContext(
		ctx,
		`SELECT `+listColumns+` FROM todo_lists WHERE owner = $1 OR shared_with LIKE $2 ESCAPE '\' ORDER BY id DESC`,
		identity, "%"+escapeLike(identity)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "err", err)
		}
	}(rows)

	out := make([]*todo.List, 0)
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		if todo.CanAccess(l, identity) {
			out = append(out, l)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lists: %w", err)
	}
	if err := s.attachTasks(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) attachTasks(ctx context.Context, lists []*todo.List) error {
	if len(lists) == 0 {
		return nil
	}
	byID := make(map[int64]*todo.List, len(lists))
	placeholders := make([]string, 0, len(lists))
	args := make([]any, 0, len(lists))
	for i, l := range lists {
		l.Tasks = []todo.Task{}
		byID[l.ID] = l
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, l.ID)
	}
	rows, err := s.database.QueryContext(
		ctx,
		`SELECT `+taskColumns+` FROM todo_tasks WHERE list_id IN (`+strings.Join(placeholders, ", ")+`) ORDER BY id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to query tasks: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "err", err)
		}
	}(rows)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return fmt.Errorf("failed to scan task: %w", err)
		}
		if l, ok := byID[t.ListID]; ok {
			l.Tasks = append(l.Tasks, *t)
		}
	}
	return rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match itself literally inside a LIKE pattern using '\' as the escape character.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
