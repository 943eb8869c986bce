// Package queue defines the task event payload exchanged over the message
// broker and the consumer that processes it.
package queue

import "time"

// Event types published for task writes.
const (
	TaskCreated  = "task.created"
	TaskUpdated  = "task.updated"
	TaskDeleted  = "task.deleted"
	TaskArchived = "task.archived"
)

// TaskEvent is published after a task write.  It carries the category ids
// on both sides of the write so consumers can recount without querying the
// task itself.
type TaskEvent struct {
	Type          string    `json:"type"`
	TaskID        string    `json:"task_id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Status        string    `json:"status"`
	OldCategoryID string    `json:"old_category_id,omitempty"`
	NewCategoryID string    `json:"new_category_id,omitempty"`
	IsArchived    bool      `json:"is_archived"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Categories returns the distinct non-empty category ids referenced by the
// event.
func (e TaskEvent) Categories() []string {
	var out []string
	if e.OldCategoryID != "" {
		out = append(out, e.OldCategoryID)
	}
	if e.NewCategoryID != "" && e.NewCategoryID != e.OldCategoryID {
		out = append(out, e.NewCategoryID)
	}
	return out
}
