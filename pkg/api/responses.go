package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/astromechza/todo-sync/pkg/todo"
)

type errorBody struct {
	Error string `json:"error"`
}

type listJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	OwnerEmail string `json:"ownerEmail"`
	SharedWith string `json:"sharedWith"`
}

type listDetailJSON struct {
	listJSON
	Tasks []taskJSON `json:"tasks"`
}

// taskJSON mirrors the task payloads clients already handle: unset optional fields are null.
type taskJSON struct {
	ID          int64   `json:"id"`
	ListID      int64   `json:"listId"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	AssignedTo  *string `json:"assignedTo"`
	IsCompleted bool    `json:"isCompleted"`
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func toListJSON(l *todo.List) listJSON {
	return listJSON{ID: l.ID, Name: l.Name, OwnerEmail: l.Owner, SharedWith: l.SharedWith.String()}
}

func toListDetailJSON(l *todo.List) listDetailJSON {
	out := listDetailJSON{listJSON: toListJSON(l), Tasks: make([]taskJSON, 0, len(l.Tasks))}
	for i := range l.Tasks {
		out.Tasks = append(out.Tasks, toTaskJSON(&l.Tasks[i]))
	}
	return out
}

func toTaskJSON(t *todo.Task) taskJSON {
	return taskJSON{
		ID:          t.ID,
		ListID:      t.ListID,
		Title:       t.Title,
		Description: optional(t.Description),
		DueDate:     optional(t.DueDateString()),
		AssignedTo:  optional(t.AssignedTo),
		IsCompleted: t.Completed,
	}
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		slog.Error("failed to write response", "err", err)
	}
}

// writeError maps service errors onto status codes. Anything unrecognised is a 500 and is logged.
func writeError(writer http.ResponseWriter, err error) {
	var ve *todo.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(writer, http.StatusBadRequest, errorBody{Error: ve.Error()})
	case errors.Is(err, todo.ErrForbidden):
		writeJSON(writer, http.StatusForbidden, errorBody{Error: "forbidden"})
	case errors.Is(err, todo.ErrNotFound):
		writeJSON(writer, http.StatusNotFound, errorBody{Error: "not found"})
	default:
		slog.Error("request failed", "err", err)
		writeJSON(writer, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func pathID(request *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(request)["id"], 10, 64)
	if err != nil {
		return 0, &todo.ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return id, nil
}
