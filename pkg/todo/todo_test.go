package todo

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseShares(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Shares
	}{
		{"empty", "", Shares{}},
		{"only separators", " , ,,", Shares{}},
		{"single", "a@x.com", Shares{"a@x.com"}},
		{"trim dedupe", "a@x.com, b@y.com,,a@x.com", Shares{"a@x.com", "b@y.com"}},
		{"case sensitive", "A@x.com,a@x.com", Shares{"A@x.com", "a@x.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseShares(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseShares(%q): got %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestSharesString(t *testing.T) {
	s := ParseShares(" b@y.com ,a@x.com,b@y.com")
	if got := s.String(); got != "b@y.com,a@x.com" {
		t.Errorf("String: got %q", got)
	}
	if got := ParseShares(s.String()); !reflect.DeepEqual(got, s) {
		t.Errorf("reparse: got %q, want %q", got, s)
	}
}

func TestSharesDiff(t *testing.T) {
	old := ParseShares("a,b")
	next := ParseShares("b,c")
	if got := next.Added(old); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Added: got %q", got)
	}
	if got := next.Removed(old); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Removed: got %q", got)
	}
}

func TestCanAccess(t *testing.T) {
	list := &List{Owner: "owner@x.com", SharedWith: ParseShares("friend@x.com, other@y.com")}
	tests := []struct {
		identity string
		access   bool
		owner    bool
	}{
		{"owner@x.com", true, true},
		{"friend@x.com", true, false},
		{"other@y.com", true, false},
		{"Friend@x.com", false, false},
		{"friend", false, false},
		{"stranger@z.com", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			if got := CanAccess(list, tt.identity); got != tt.access {
				t.Errorf("CanAccess: got %v, want %v", got, tt.access)
			}
			if got := IsOwner(list, tt.identity); got != tt.owner {
				t.Errorf("IsOwner: got %v, want %v", got, tt.owner)
			}
		})
	}
	if CanAccess(nil, "owner@x.com") {
		t.Error("CanAccess(nil) should be false")
	}
}

func TestPatchUnmarshal(t *testing.T) {
	var body struct {
		Title       Patch[string] `json:"title"`
		Description Patch[string] `json:"description"`
		AssignedTo  Patch[string] `json:"assignedTo"`
	}
	if err := json.Unmarshal([]byte(`{"description":"","assignedTo":null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Title.IsKeep() {
		t.Error("absent title should be keep")
	}
	if v, ok := body.Description.Value(); !ok || v != "" {
		t.Errorf("description: got %q, %v", v, ok)
	}
	if !body.AssignedTo.IsClear() {
		t.Error("null assignee should clear")
	}
	if err := json.Unmarshal([]byte(`{"title":3}`), &body); err == nil {
		t.Error("expected type error")
	}
}

func TestParseDueDate(t *testing.T) {
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2026-03-14", " 2026-03-14 ", "2026-03-14T09:30:00Z", "2026-03-14T09:30", "03/14/2026"} {
		got, err := ParseDueDate(raw)
		if err != nil {
			t.Errorf("ParseDueDate(%q): %v", raw, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDueDate(%q): got %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseDueDate("next tuesday"); err == nil {
		t.Error("expected error")
	}
	if got := FormatDate(&want); got != "2026-03-14" {
		t.Errorf("FormatDate: got %q", got)
	}
	if got := FormatDate(nil); got != "" {
		t.Errorf("FormatDate(nil): got %q", got)
	}
}

func TestTopics(t *testing.T) {
	if got := ListTopic(42); got != "42" {
		t.Errorf("ListTopic: got %q", got)
	}
	if got := UserTopic("a@x.com"); got != "user_a@x.com" {
		t.Errorf("UserTopic: got %q", got)
	}
}
