// Package view computes filtered and grouped projections of a task
// collection. Every function is pure: it reads a snapshot, never mutates
// it, and is recomputed on demand rather than memoized across mutations.
package view

import (
	"strings"
	"time"

	"github.com/tandemhq/tandem/task"
	"github.com/tandemhq/tandem/team"
)

// Lanes is the fixed left-to-right order of the status partition.
var Lanes = []task.Status{
	task.StatusPending,
	task.StatusInProgress,
	task.StatusComplete,
	task.StatusCancelled,
}

// PartitionByStatus splits tasks into one sub-list per status. The partition
// is stable: each lane preserves its items' positions from the parent
// collection.
func PartitionByStatus(tasks []task.Task) map[task.Status][]task.Task {
	out := make(map[task.Status][]task.Task, len(Lanes))
	for _, t := range tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// sameDay reports whether a and b fall on the same calendar date in b's
// location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DueToday returns the tasks due on now's calendar date. Tasks without a
// due date never match a time window.
func DueToday(tasks []task.Task, now time.Time) []task.Task {
	var out []task.Task
	for _, t := range tasks {
		if t.DueDate != nil && sameDay(*t.DueDate, now) {
			out = append(out, t)
		}
	}
	return out
}

// DueBetween returns the tasks whose due date falls inside the inclusive
// [from, to] calendar-day window.
func DueBetween(tasks []task.Task, from, to time.Time) []task.Task {
	loc := from.Location()
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, loc)

	var out []task.Task
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		d := t.DueDate.In(loc)
		if !d.Before(start) && !d.After(end) {
			out = append(out, t)
		}
	}
	return out
}

// DueThisWeek returns the tasks due in the seven-day window starting on
// now's calendar date.
func DueThisWeek(tasks []task.Task, now time.Time) []task.Task {
	return DueBetween(tasks, now, now.AddDate(0, 0, 6))
}

// ByAssignee returns the tasks assigned to the member whose resolved display
// name matches name. The team.Unassigned sentinel selects unassigned tasks
// as their own bucket.
func ByAssignee(tasks []task.Task, dir team.Directory, name string) []task.Task {
	var out []task.Task
	for _, t := range tasks {
		if dir.Resolve(t.AssignedTo) == name {
			out = append(out, t)
		}
	}
	return out
}

// Search returns the tasks whose name or description contains query,
// case-insensitively. An empty query matches everything.
func Search(tasks []task.Task, query string) []task.Task {
	if query == "" {
		return append([]task.Task(nil), tasks...)
	}
	q := strings.ToLower(query)
	var out []task.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
		}
	}
	return out
}

// Filter is the set of active projections. Zero-valued fields are inactive;
// the active ones combine with logical AND, so each is independently
// testable and no filter removes an item that matches all others on its own.
type Filter struct {
	Status   task.Status
	Assignee string // resolved display name, or team.Unassigned
	Query    string
	DueFrom  time.Time
	DueTo    time.Time
}

// Apply evaluates the filter against tasks, preserving collection order.
func Apply(tasks []task.Task, dir team.Directory, f Filter) []task.Task {
	out := append([]task.Task(nil), tasks...)
	if f.Status != "" {
		out = PartitionByStatus(out)[f.Status]
	}
	if f.Assignee != "" {
		out = ByAssignee(out, dir, f.Assignee)
	}
	if f.Query != "" {
		out = Search(out, f.Query)
	}
	if !f.DueFrom.IsZero() && !f.DueTo.IsZero() {
		out = DueBetween(out, f.DueFrom, f.DueTo)
	}
	return out
}
