// Package task defines the task model shared by the domain store, the
// derived views, and the timeline aggregator.
package task

import (
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
	StatusCancelled  Status = "cancelled"
)

// Priority orders tasks for display and filtering.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a locally owned work item with a single due instant.
// Invariant: CompletedAt is non-nil exactly when Status is complete.
type Task struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	AssignedTo  string     `json:"assigned_to,omitempty"` // member ID, empty when unassigned
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EntityID implements store.Entity.
func (t Task) EntityID() string { return t.ID }

func validStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Validate checks the fields required before a task may be sent to the
// backend. It runs before any network call.
func Validate(t Task) error {
	if t.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if t.Status != "" && !validStatus(t.Status) {
		return fmt.Errorf("invalid task status %q", t.Status)
	}
	if t.Priority != "" && !validPriority(t.Priority) {
		return fmt.Errorf("invalid task priority %q", t.Priority)
	}
	return nil
}

// Normalize reconciles the completion timestamp with the status. A task
// entering complete is stamped with now; a task in any other status has no
// completion timestamp.
func Normalize(t Task, now time.Time) Task {
	switch {
	case t.Status == StatusComplete && t.CompletedAt == nil:
		ts := now
		t.CompletedAt = &ts
	case t.Status != StatusComplete:
		t.CompletedAt = nil
	}
	return t
}
