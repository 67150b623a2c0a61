package loop

import (
	"fmt"
	"sort"

	"github.com/yarlson/ralph-gates/internal/taskstore"
)

// reconcile merges the worker's edits to the task list into the document the
// loop wrote before the iteration. Header run state stays with the loop,
// removed tasks are restored, new tasks enter as pending, and a task only
// becomes completed when gatesPassed. Status changes go through
// taskstore.Transition; rejected ones are kept out and reported in notes.
func reconcile(before, after *taskstore.Document, gatesPassed bool, completedIDs []string) (*taskstore.Document, []string) {
	var notes []string

	if after == nil {
		return before.Clone(), []string{"task list could not be parsed after the iteration; previous version restored"}
	}

	final := after.Clone()
	final.Header.Status = before.Header.Status
	final.Header.Iteration = before.Header.Iteration

	desired := make(map[string]taskstore.TaskStatus, len(after.Tasks))
	afterByID := make(map[string]*taskstore.Task, len(after.Tasks))
	for _, t := range after.Tasks {
		afterByID[t.ID] = t
		desired[t.ID] = t.Status
	}
	for _, id := range completedIDs {
		if _, ok := afterByID[id]; ok {
			desired[id] = taskstore.StatusCompleted
			continue
		}
		if _, err := before.Task(id); err == nil {
			desired[id] = taskstore.StatusCompleted
		}
	}

	// Start from the statuses the loop knows about.
	tasks := make([]*taskstore.Task, 0, len(before.Tasks)+len(after.Tasks))
	known := make(map[string]bool, len(before.Tasks))
	maxOrder := -1
	for _, b := range before.Tasks {
		t := *b
		if a, ok := afterByID[b.ID]; ok && a.Description != "" {
			t.Description = a.Description
		} else if !ok {
			notes = append(notes, fmt.Sprintf("task %s was removed from the task list and has been restored", b.ID))
		}
		tasks = append(tasks, &t)
		known[b.ID] = true
		maxOrder = max(maxOrder, t.Order)
	}
	for _, a := range after.Tasks {
		if known[a.ID] {
			continue
		}
		maxOrder++
		tasks = append(tasks, &taskstore.Task{
			ID:          a.ID,
			Description: a.Description,
			Status:      taskstore.StatusPending,
			Order:       maxOrder,
		})
		delete(desired, a.ID)
		notes = append(notes, fmt.Sprintf("new task %s added as pending", a.ID))
	}

	// Apply moves out of in_progress before moves into it so a worker that
	// finishes one task and starts the next is not rejected.
	apply := func(wantInProgress bool) {
		for _, t := range tasks {
			to, ok := desired[t.ID]
			if !ok || to == t.Status || (to == taskstore.StatusInProgress) != wantInProgress {
				continue
			}
			if to == taskstore.StatusCompleted && !gatesPassed {
				notes = append(notes, fmt.Sprintf("task %s not marked completed: blocking gates failed", t.ID))
				continue
			}
			if err := taskstore.Transition(tasks, t.ID, to); err != nil {
				notes = append(notes, fmt.Sprintf("task %s status change rejected: %v", t.ID, err))
			}
		}
	}
	apply(false)
	apply(true)

	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	final.Tasks = tasks
	return final, notes
}
