package api

import (
	"log/slog"
	"net/http"

	"github.com/astromechza/todo-sync/pkg/service"
	"github.com/astromechza/todo-sync/pkg/todo"
)

type listBody struct {
	Name       string `json:"name"`
	SharedWith string `json:"sharedWith"`
}

type addTaskBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	AssignedTo  string `json:"assignedTo"`
}

type updateTaskBody struct {
	Title       todo.Patch[string] `json:"title"`
	Description todo.Patch[string] `json:"description"`
	DueDate     todo.Patch[string] `json:"dueDate"`
	AssignedTo  todo.Patch[string] `json:"assignedTo"`
}

func badRequest(writer http.ResponseWriter, err error) {
	slog.Debug("rejected body", "err", err)
	writeJSON(writer, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func (s *server) health(writer http.ResponseWriter, request *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(request.Context()); err != nil {
			slog.Error("health check failed", "err", err)
			writeJSON(writer, http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
			return
		}
	}
	writeJSON(writer, http.StatusOK, s.hub.Stats())
}

func (s *server) listLists(writer http.ResponseWriter, request *http.Request) {
	lists, err := s.svc.ListsFor(request.Context(), IdentityFrom(request.Context()))
	if err != nil {
		writeError(writer, err)
		return
	}
	out := make([]listDetailJSON, 0, len(lists))
	for _, l := range lists {
		out = append(out, toListDetailJSON(l))
	}
	writeJSON(writer, http.StatusOK, out)
}

func (s *server) createList(writer http.ResponseWriter, request *http.Request) {
	var body listBody
	if err := decodeBody(request, s.schemas.list, &body); err != nil {
		badRequest(writer, err)
		return
	}
	l, err := s.svc.CreateList(request.Context(), IdentityFrom(request.Context()), service.ListInput{
		Name:       body.Name,
		SharedWith: body.SharedWith,
	})
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusCreated, toListJSON(l))
}

func (s *server) getList(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	l, err := s.svc.GetList(request.Context(), IdentityFrom(request.Context()), id)
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, toListDetailJSON(l))
}

func (s *server) updateList(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	var body listBody
	if err := decodeBody(request, s.schemas.list, &body); err != nil {
		badRequest(writer, err)
		return
	}
	l, err := s.svc.UpdateList(request.Context(), IdentityFrom(request.Context()), id, service.ListInput{
		Name:       body.Name,
		SharedWith: body.SharedWith,
	})
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, toListJSON(l))
}

func (s *server) deleteList(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	if err := s.svc.DeleteList(request.Context(), IdentityFrom(request.Context()), id); err != nil {
		writeError(writer, err)
		return
	}
	writer.WriteHeader(http.StatusNoContent)
}

func (s *server) addTask(writer http.ResponseWriter, request *http.Request) {
	listID, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	var body addTaskBody
	if err := decodeBody(request, s.schemas.taskCreate, &body); err != nil {
		badRequest(writer, err)
		return
	}
	t, err := s.svc.AddTask(request.Context(), IdentityFrom(request.Context()), listID, service.TaskInput{
		Title:       body.Title,
		Description: body.Description,
		DueDate:     body.DueDate,
		AssignedTo:  body.AssignedTo,
	})
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusCreated, toTaskJSON(t))
}

func (s *server) toggleTask(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	t, err := s.svc.ToggleTask(request.Context(), IdentityFrom(request.Context()), id)
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, toTaskJSON(t))
}

func (s *server) updateTask(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	var body updateTaskBody
	if err := decodeBody(request, s.schemas.taskUpdate, &body); err != nil {
		badRequest(writer, err)
		return
	}
	t, err := s.svc.UpdateTask(request.Context(), IdentityFrom(request.Context()), id, service.TaskPatch{
		Title:       body.Title,
		Description: body.Description,
		DueDate:     body.DueDate,
		AssignedTo:  body.AssignedTo,
	})
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, toTaskJSON(t))
}

func (s *server) deleteTask(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		writeError(writer, err)
		return
	}
	t, err := s.svc.DeleteTask(request.Context(), IdentityFrom(request.Context()), id)
	if err != nil {
		writeError(writer, err)
		return
	}
	writeJSON(writer, http.StatusOK, map[string]int64{"listId": t.ListID})
}

func (s *server) serveHub(writer http.ResponseWriter, request *http.Request) {
	identity := IdentityFrom(request.Context())
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()
	if err := s.hub.Serve(s.baseCtx, conn, identity); err != nil {
		slog.Error("hub session ended", "identity", identity, "err", err)
	}
}
