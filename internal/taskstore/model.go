// Package taskstore persists the task-list document that drives the loop.
package taskstore

import (
	"fmt"
	"strings"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Valid task status values.
const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// validStatuses contains all valid status values for quick lookup.
var validStatuses = map[TaskStatus]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
	StatusBlocked:    true,
}

// IsValid returns true if the status is a valid TaskStatus value.
func (s TaskStatus) IsValid() bool {
	return validStatuses[s]
}

// allowedTransitions lists the status changes a task may go through.
// Tasks are never deleted, so there is no terminal "removed" state.
var allowedTransitions = map[TaskStatus]map[TaskStatus]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusCompleted:  true,
		StatusBlocked:    true,
	},
	StatusInProgress: {
		StatusPending:   true,
		StatusCompleted: true,
		StatusBlocked:   true,
	},
	StatusBlocked: {
		StatusPending:    true,
		StatusInProgress: true,
	},
	StatusCompleted: {
		StatusPending: true,
	},
}

// Task is one line item of the task list.
type Task struct {
	// ID is the identifier written before the colon (e.g. "T3").
	ID string `json:"id"`

	// Description is the free text after the ID.
	Description string `json:"description"`

	// Status is derived from the section the task is listed under.
	Status TaskStatus `json:"status"`

	// Order is the position of the task in the document.
	Order int `json:"order"`
}

// Validate checks that the task has all required fields and valid values.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("task description is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("task status is invalid: %q", t.Status)
	}
	return nil
}

// Transition moves the task identified by id to status to.
// At most one task may be in progress: moving a task to in_progress while a
// different task already holds that status fails with ErrAnotherInProgress.
func Transition(tasks []*Task, id string, to TaskStatus) error {
	if !to.IsValid() {
		return &TransitionError{ID: id, To: to, Err: ErrInvalidTransition}
	}

	var target *Task
	for _, t := range tasks {
		if t.ID == id {
			target = t
			break
		}
	}
	if target == nil {
		return &NotFoundError{ID: id}
	}
	if target.Status == to {
		return nil
	}

	if !allowedTransitions[target.Status][to] {
		return &TransitionError{ID: id, From: target.Status, To: to, Err: ErrInvalidTransition}
	}

	if to == StatusInProgress {
		for _, t := range tasks {
			if t.ID != id && t.Status == StatusInProgress {
				return &TransitionError{ID: id, From: target.Status, To: to, Holder: t.ID, Err: ErrAnotherInProgress}
			}
		}
	}

	target.Status = to
	return nil
}
