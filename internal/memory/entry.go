// Package memory persists learnings extracted from worker output and renders
// them back into the next iteration's context.
package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Category classifies a learning entry.
type Category string

const (
	CategoryDiscovery        Category = "discovery"
	CategoryPattern          Category = "pattern"
	CategoryFix              Category = "fix"
	CategorySuccess          Category = "success"
	CategoryBlocker          Category = "blocker"
	CategoryIterationFailure Category = "iteration_failure"
)

var validCategories = map[Category]bool{
	CategoryDiscovery:        true,
	CategoryPattern:          true,
	CategoryFix:              true,
	CategorySuccess:          true,
	CategoryBlocker:          true,
	CategoryIterationFailure: true,
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	return validCategories[c]
}

// Entry is one persisted learning.
type Entry struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Text      string    `json:"text"`
	Error     string    `json:"error,omitempty"`
	Fix       string    `json:"fix,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	Spec      string    `json:"spec,omitempty"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Files     []string  `json:"files,omitempty"`
}

// Validate checks the entry before it is persisted.
func (e Entry) Validate() error {
	if !e.Category.IsValid() {
		return fmt.Errorf("invalid category %q", e.Category)
	}
	if strings.TrimSpace(e.Text) == "" {
		return errors.New("entry text is required")
	}
	return nil
}
