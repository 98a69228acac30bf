// Package todo holds the list and task model shared by the store, the service and the hub.
package todo

import "time"

// List is a named collection of tasks owned by one identity and optionally shared with others.
type List struct {
	ID         int64
	Name       string
	Owner      string
	SharedWith Shares
	// Version is bumped by the store on every update and used to detect concurrent modification.
	Version int64
	Tasks   []Task
}

// Task belongs to exactly one list. Empty Description and AssignedTo mean unset.
type Task struct {
	ID          int64
	ListID      int64
	Title       string
	Description string
	DueDate     *time.Time
	Completed   bool
	AssignedTo  string
	Version     int64
}

// DueDateString returns the due date as YYYY-MM-DD, or "" when unset.
func (t *Task) DueDateString() string {
	return FormatDate(t.DueDate)
}
