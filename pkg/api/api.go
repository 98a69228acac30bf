// Package api exposes the list and task operations over HTTP and upgrades /api/hub to the
// notification websocket.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/astromechza/todo-sync/pkg/hub"
	"github.com/astromechza/todo-sync/pkg/service"
	"github.com/astromechza/todo-sync/pkg/todo"
)

// Service is the subset of the mutation service the handlers call.
type Service interface {
	CreateList(ctx context.Context, identity string, in service.ListInput) (*todo.List, error)
	UpdateList(ctx context.Context, identity string, id int64, in service.ListInput) (*todo.List, error)
	DeleteList(ctx context.Context, identity string, id int64) error
	ListsFor(ctx context.Context, identity string) ([]*todo.List, error)
	GetList(ctx context.Context, identity string, id int64) (*todo.List, error)

	AddTask(ctx context.Context, identity string, listID int64, in service.TaskInput) (*todo.Task, error)
	ToggleTask(ctx context.Context, identity string, id int64) (*todo.Task, error)
	UpdateTask(ctx context.Context, identity string, id int64, patch service.TaskPatch) (*todo.Task, error)
	DeleteTask(ctx context.Context, identity string, id int64) (*todo.Task, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Identity IdentityOptions
	// BaseContext outlives individual requests; websocket sessions end when it is cancelled.
	BaseContext context.Context
}

type server struct {
	svc      Service
	hub      *hub.Hub
	db       Pinger
	schemas  *schemas
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// NewRouter wires every route. db may be nil, in which case /healthz only reports the hub.
func NewRouter(svc Service, h *hub.Hub, db Pinger, opts Options) (http.Handler, error) {
	sc, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	s := &server{
		svc:      svc,
		hub:      h,
		db:       db,
		schemas:  sc,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		baseCtx:  baseCtx,
	}

	r := mux.NewRouter()
	r.Use(accessLog)
	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.health)

	a := r.PathPrefix("/api").Subrouter()
	a.Use(identityMiddleware(opts.Identity))
	a.Methods(http.MethodGet).Path("/lists").HandlerFunc(s.listLists)
	a.Methods(http.MethodPost).Path("/lists").HandlerFunc(s.createList)
	a.Methods(http.MethodGet).Path("/lists/{id:[0-9]+}").HandlerFunc(s.getList)
	a.Methods(http.MethodPut).Path("/lists/{id:[0-9]+}").HandlerFunc(s.updateList)
	a.Methods(http.MethodDelete).Path("/lists/{id:[0-9]+}").HandlerFunc(s.deleteList)
	a.Methods(http.MethodPost).Path("/lists/{id:[0-9]+}/tasks").HandlerFunc(s.addTask)
	a.Methods(http.MethodPost).Path("/tasks/{id:[0-9]+}/toggle").HandlerFunc(s.toggleTask)
	a.Methods(http.MethodPatch).Path("/tasks/{id:[0-9]+}").HandlerFunc(s.updateTask)
	a.Methods(http.MethodDelete).Path("/tasks/{id:[0-9]+}").HandlerFunc(s.deleteTask)
	a.Methods(http.MethodGet).Path("/hub").HandlerFunc(s.serveHub)
	return r, nil
}
