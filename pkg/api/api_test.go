package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"github.com/astromechza/todo-sync/pkg/hub"
	"github.com/astromechza/todo-sync/pkg/service"
	"github.com/astromechza/todo-sync/pkg/store"
	"github.com/astromechza/todo-sync/pkg/todo"
)

const (
	owner          = "owner@x.com"
	sharee         = "a@x.com"
	nobody         = "nobody@z.com"
	identityHeader = "X-User-Email"
)

type testEnv struct {
	srv *httptest.Server
	hub *hub.Hub
}

func newTestEnv(t *testing.T, identity IdentityOptions) *testEnv {
	t.Helper()
	st, err := store.Open(context.Background(), store.DriverSQLite, filepath.Join(t.TempDir(), "api.sqlite3"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	var svc *service.Service
	h := hub.New(hub.AuthorizerFunc(func(ctx context.Context, identity string, listID int64) error {
		return svc.AuthorizeListTopic(ctx, identity, listID)
	}), hub.DefaultOptions())
	svc = service.New(st, h)

	router, err := NewRouter(svc, h, st, Options{Identity: identity})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return &testEnv{srv: srv, hub: h}
}

func (e *testEnv) do(t *testing.T, identity, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if identity != "" {
		req.Header.Set(identityHeader, identity)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

func decode[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func headerIdentity() IdentityOptions {
	return IdentityOptions{Header: identityHeader}
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	status, body := e.do(t, "", http.MethodGet, "/healthz", nil)
	if status != http.StatusOK {
		t.Fatalf("status %d: %s", status, body)
	}
	if s := decode[hub.Stats](t, body); s.Connections != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestRequiresIdentity(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	for _, identity := range []string{"", "not-an-email"} {
		status, _ := e.do(t, identity, http.MethodGet, "/api/lists", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("identity %q: got %d", identity, status)
		}
	}
}

func TestListLifecycle(t *testing.T) {
	e := newTestEnv(t, headerIdentity())

	status, body := e.do(t, owner, http.MethodPost, "/api/lists", map[string]any{
		"name": "Groceries", "sharedWith": "a@x.com, a@x.com", "ownerEmail": "mallory@x.com",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %s", status, body)
	}
	created := decode[listJSON](t, body)
	if created.OwnerEmail != owner || created.SharedWith != sharee {
		t.Fatalf("unexpected list %+v", created)
	}
	path := fmt.Sprintf("/api/lists/%d", created.ID)

	status, body = e.do(t, sharee, http.MethodGet, "/api/lists", nil)
	if status != http.StatusOK {
		t.Fatalf("list: %d %s", status, body)
	}
	if lists := decode[[]listDetailJSON](t, body); len(lists) != 1 || lists[0].Tasks == nil {
		t.Fatalf("unexpected lists %s", body)
	}

	if status, _ = e.do(t, nobody, http.MethodGet, path, nil); status != http.StatusForbidden {
		t.Errorf("outsider get: got %d", status)
	}

	status, body = e.do(t, owner, http.MethodPut, path, map[string]any{"name": "Food", "sharedWith": nil})
	if status != http.StatusOK {
		t.Fatalf("update: %d %s", status, body)
	}
	if updated := decode[listJSON](t, body); updated.Name != "Food" || updated.SharedWith != "" {
		t.Errorf("unexpected update %+v", updated)
	}

	if status, _ = e.do(t, owner, http.MethodDelete, path, nil); status != http.StatusNoContent {
		t.Errorf("delete: got %d", status)
	}
	if status, _ = e.do(t, owner, http.MethodGet, path, nil); status != http.StatusNotFound {
		t.Errorf("get after delete: got %d", status)
	}
}

func TestBodyValidation(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed", "/api/lists", "{"},
		{"missing name", "/api/lists", `{"sharedWith":"a@x.com"}`},
		{"empty name", "/api/lists", `{"name":""}`},
		{"unknown field", "/api/lists", `{"name":"x","colour":"red"}`},
		{"wrong type", "/api/lists", `{"name":5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if status, body := e.do(t, owner, http.MethodPost, tt.path, tt.body); status != http.StatusBadRequest {
				t.Errorf("got %d: %s", status, body)
			}
		})
	}
}

func TestTaskLifecycle(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	_, body := e.do(t, owner, http.MethodPost, "/api/lists", map[string]any{"name": "Chores", "sharedWith": sharee})
	l := decode[listJSON](t, body)

	status, body := e.do(t, sharee, http.MethodPost, fmt.Sprintf("/api/lists/%d/tasks", l.ID), map[string]any{
		"title": "Sweep", "dueDate": "2024-03-01", "assignedTo": nil,
	})
	if status != http.StatusCreated {
		t.Fatalf("add: %d %s", status, body)
	}
	task := decode[taskJSON](t, body)
	if task.ListID != l.ID || task.DueDate == nil || *task.DueDate != "2024-03-01" || task.Description != nil {
		t.Fatalf("unexpected task %s", body)
	}
	taskPath := fmt.Sprintf("/api/tasks/%d", task.ID)

	if status, _ = e.do(t, nobody, http.MethodPost, taskPath+"/toggle", nil); status != http.StatusForbidden {
		t.Errorf("outsider toggle: got %d", status)
	}
	status, body = e.do(t, owner, http.MethodPost, taskPath+"/toggle", nil)
	if status != http.StatusOK || !decode[taskJSON](t, body).IsCompleted {
		t.Fatalf("toggle: %d %s", status, body)
	}

	status, body = e.do(t, owner, http.MethodPatch, taskPath, `{"description":"under the sofa","dueDate":null}`)
	if status != http.StatusOK {
		t.Fatalf("patch: %d %s", status, body)
	}
	patched := decode[taskJSON](t, body)
	if patched.Title != "Sweep" || patched.DueDate != nil || patched.Description == nil || !patched.IsCompleted {
		t.Errorf("unexpected patch result %s", body)
	}

	status, body = e.do(t, owner, http.MethodDelete, taskPath, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: %d %s", status, body)
	}
	if got := decode[map[string]int64](t, body)["listId"]; got != l.ID {
		t.Errorf("delete returned list %d", got)
	}
	if status, _ = e.do(t, owner, http.MethodDelete, taskPath, nil); status != http.StatusNotFound {
		t.Errorf("second delete: got %d", status)
	}
	if status, _ = e.do(t, owner, http.MethodPost, "/api/lists/999/tasks", `{"title":"x"}`); status != http.StatusNotFound {
		t.Errorf("missing list: got %d", status)
	}
}

func TestJWTIdentity(t *testing.T) {
	secret := []byte("test-secret")
	e := newTestEnv(t, IdentityOptions{JWTSecret: secret, Header: identityHeader})

	sign := func(key []byte, claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"email claim", sign(secret, jwt.MapClaims{"email": owner}), http.StatusOK},
		{"subject fallback", sign(secret, jwt.MapClaims{"sub": owner}), http.StatusOK},
		{"wrong key", sign([]byte("other"), jwt.MapClaims{"email": owner}), http.StatusUnauthorized},
		{"expired", sign(secret, jwt.MapClaims{"email": owner, "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"no token", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/lists", nil)
			// the header is ignored once a secret is configured
			req.Header.Set(identityHeader, owner)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			_ = resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("got %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStripBearer(t *testing.T) {
	for in, want := range map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"abc":         "abc",
		"":            "",
	} {
		if got := stripBearer(in); got != want {
			t.Errorf("stripBearer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHubThroughRouter(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	_, body := e.do(t, owner, http.MethodPost, "/api/lists", map[string]any{"name": "Trip"})
	l := decode[listJSON](t, body)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/hub"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous dial should be rejected, got %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{identityHeader: []string{sharee}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	read := func() hub.Frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f hub.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinUser})
	if f := read(); f.Type != hub.FrameJoined {
		t.Fatalf("join_user: %+v", f)
	}
	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinList, ListID: l.ID})
	if f := read(); f.Type != hub.FrameError {
		t.Fatalf("join of unshared list should fail: %+v", f)
	}

	path := fmt.Sprintf("/api/lists/%d", l.ID)
	if status, body := e.do(t, owner, http.MethodPut, path, map[string]any{"name": "Trip", "sharedWith": sharee}); status != http.StatusOK {
		t.Fatalf("share: %d %s", status, body)
	}
	if f := read(); f.Event != todo.EventListShared {
		t.Fatalf("expected share event, got %+v", f)
	}
	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinList, ListID: l.ID})
	if f := read(); f.Type != hub.FrameJoined {
		t.Fatalf("join_list after share: %+v", f)
	}
}

func TestUnshareEndsListSubscription(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	_, body := e.do(t, owner, http.MethodPost, "/api/lists", map[string]any{"name": "Plans", "sharedWith": sharee})
	l := decode[listJSON](t, body)
	path := fmt.Sprintf("/api/lists/%d", l.ID)
	topic := todo.ListTopic(l.ID)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/hub"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{identityHeader: []string{sharee}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	read := func() hub.Frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f hub.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		return f
	}

	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinUser})
	read()
	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinList, ListID: l.ID})
	if f := read(); f.Type != hub.FrameJoined || f.Topic != topic {
		t.Fatalf("join_list: %+v", f)
	}

	if status, body := e.do(t, owner, http.MethodPut, path, map[string]any{"name": "Plans", "sharedWith": ""}); status != http.StatusOK {
		t.Fatalf("unshare: %d %s", status, body)
	}
	if f := read(); f.Type != hub.FrameLeft || f.Topic != topic {
		t.Fatalf("expected left frame, got %+v", f)
	}
	if f := read(); f.Event != todo.EventListUnshared {
		t.Fatalf("expected unshare event, got %+v", f)
	}

	if status, body := e.do(t, owner, http.MethodPost, path+"/tasks", map[string]any{"title": "secret plan"}); status != http.StatusCreated {
		t.Fatalf("add task: %d %s", status, body)
	}
	// the next frame the former sharee sees is the re-share, not the task
	if status, body := e.do(t, owner, http.MethodPut, path, map[string]any{"name": "Plans", "sharedWith": sharee}); status != http.StatusOK {
		t.Fatalf("reshare: %d %s", status, body)
	}
	if f := read(); f.Event != todo.EventListShared {
		t.Fatalf("expected share event, got %+v", f)
	}
}

func TestDeleteEndsListSubscription(t *testing.T) {
	e := newTestEnv(t, headerIdentity())
	_, body := e.do(t, owner, http.MethodPost, "/api/lists", map[string]any{"name": "Trip"})
	l := decode[listJSON](t, body)

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/api/hub"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{identityHeader: []string{owner}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(hub.Request{Action: hub.ActionJoinList, ListID: l.ID})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f hub.Frame
	if err := conn.ReadJSON(&f); err != nil || f.Type != hub.FrameJoined {
		t.Fatalf("join_list: %+v %v", f, err)
	}

	if status, _ := e.do(t, owner, http.MethodDelete, fmt.Sprintf("/api/lists/%d", l.ID), nil); status != http.StatusNoContent {
		t.Fatalf("delete: got %d", status)
	}
	for _, want := range []string{hub.FrameEvent, hub.FrameLeft} {
		f = hub.Frame{}
		if err := conn.ReadJSON(&f); err != nil || f.Type != want {
			t.Fatalf("want %s frame, got %+v %v", want, f, err)
		}
	}
	if s := e.hub.Stats(); s.Topics != 0 {
		t.Errorf("topics remain: %+v", s)
	}
}
