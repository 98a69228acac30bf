// Package store persists lists and tasks through database/sql. Both sqlite3 and postgres are supported;
// queries use $N placeholders, which both drivers accept.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/astromechza/todo-sync/pkg/todo"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Store struct {
	database *sql.DB
	driver   string
}

// Open connects to the database and ensures the tables exist.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Store{database: db, driver: driver}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN turns on foreign keys for every pooled connection, which ON DELETE CASCADE depends on.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_foreign_keys") || strings.Contains(dsn, "_fk=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_foreign_keys=on&_busy_timeout=5000"
}

func (s *Store) init(ctx context.Context) error {
	statements := sqliteSchema
	if s.driver == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := s.database.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	slog.Info("Ensured initial tables exist", "driver", s.driver)
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS todo_lists (
		id integer primary key autoincrement,
		name text not null,
		owner text not null,
		shared_with text not null default '',
		version integer not null default 1
	)`,
	`CREATE TABLE IF NOT EXISTS todo_tasks (
		id integer primary key autoincrement,
		list_id integer not null references todo_lists(id) on delete cascade,
		title text not null,
		description text,
		due_date text,
		completed boolean not null default false,
		assigned_to text,
		version integer not null default 1
	)`,
	`CREATE INDEX IF NOT EXISTS todo_tasks_list_id ON todo_tasks(list_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS todo_lists (
		id bigserial primary key,
		name text not null,
		owner text not null,
		shared_with text not null default '',
		version bigint not null default 1
	)`,
	`CREATE TABLE IF NOT EXISTS todo_tasks (
		id bigserial primary key,
		list_id bigint not null references todo_lists(id) on delete cascade,
		title text not null,
		description text,
		due_date text,
		completed boolean not null default false,
		assigned_to text,
		version bigint not null default 1
	)`,
	`CREATE INDEX IF NOT EXISTS todo_tasks_list_id ON todo_tasks(list_id)`,
}

func (s *Store) Ping(ctx context.Context) error {
	return s.database.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.database.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

const listColumns = `id, name, owner, shared_with, version`

func scanList(row scanner) (*todo.List, error) {
	var l todo.List
	var shared string
	if err := row.Scan(&l.ID, &l.Name, &l.Owner, &shared, &l.Version); err != nil {
		return nil, err
	}
	l.SharedWith = todo.ParseShares(shared)
	return &l, nil
}

const taskColumns = `id, list_id, title, description, due_date, completed, assigned_to, version`

func scanTask(row scanner) (*todo.Task, error) {
	var t todo.Task
	var description, dueDate, assignedTo sql.NullString
	if err := row.Scan(&t.ID, &t.ListID, &t.Title, &description, &dueDate, &t.Completed, &assignedTo, &t.Version); err != nil {
		return nil, err
	}
	t.Description = description.String
	t.AssignedTo = assignedTo.String
	if dueDate.Valid && dueDate.String != "" {
		d, err := todo.ParseDueDate(dueDate.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decode due date of task %d: %w", t.ID, err)
		}
		t.DueDate = &d
	}
	return &t, nil
}

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return todo.ErrNotFound
	}
	return err
}

// expectOne maps an update that touched no rows to ErrConflict.
func expectOne(res sql.Result, ifNone error) error {
	r, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count rows affected: %w", err)
	}
	if r == 0 {
		return ifNone
	}
	return nil
}
