package model

import (
	"math"
	"strings"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Task is the primary work item.  It is always owned by exactly one user
// and may reference one of that user's categories.  Comments, subtasks,
// attachments and reminders are embedded in the task document.
//
// Fields:
//  ID             – primary key (UUID string).
//  UserID         – owner of the task.
//  CategoryID     – optional category reference; empty when detached.
//  AssignedTo     – optional user the task is assigned to.
//  Deadline       – optional due date; must be in the future when created.
//  StartDate      – when work on the task started (defaults to creation time).
//  CompletedAt    – set exactly while Status is completed.
//  Progression    – completion percentage in the range 0..100.
//  IsArchived     – archived tasks are hidden from listings by default.
type Task struct {
	ID             string       `json:"id" bson:"_id"`
	Title          string       `json:"title" bson:"title"`
	Description    string       `json:"description" bson:"description"`
	Status         Status       `json:"status" bson:"status"`
	Priority       Priority     `json:"priority" bson:"priority"`
	CategoryID     string       `json:"category,omitempty" bson:"category,omitempty"`
	UserID         string       `json:"user" bson:"user"`
	AssignedTo     string       `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	Deadline       *time.Time   `json:"deadline" bson:"deadline"`
	StartDate      *time.Time   `json:"startDate" bson:"startDate"`
	CompletedAt    *time.Time   `json:"completedAt" bson:"completedAt"`
	EstimatedHours float64      `json:"estimatedHours" bson:"estimatedHours"`
	ActualHours    float64      `json:"actualHours" bson:"actualHours"`
	Tags           []string     `json:"tags" bson:"tags"`
	Attachments    []Attachment `json:"attachments" bson:"attachments"`
	Comments       []Comment    `json:"comments" bson:"comments"`
	Subtasks       []Subtask    `json:"subtasks" bson:"subtasks"`
	Reminders      []Reminder   `json:"reminders" bson:"reminders"`
	IsArchived     bool         `json:"isArchived" bson:"isArchived"`
	ArchivedAt     *time.Time   `json:"archivedAt" bson:"archivedAt"`
	Progression    int          `json:"progression" bson:"progression"`
	CreatedAt      time.Time    `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// Attachment is a file linked to a task.
type Attachment struct {
	FileName   string    `json:"fileName" bson:"fileName"`
	FileURL    string    `json:"fileUrl" bson:"fileUrl"`
	FileSize   int64     `json:"fileSize" bson:"fileSize"`
	UploadedAt time.Time `json:"uploadedAt" bson:"uploadedAt"`
}

// Comment is a note left on a task by a user.
type Comment struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"user" bson:"user"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Subtask is a checklist item inside a task.
type Subtask struct {
	ID          string     `json:"id" bson:"id"`
	Title       string     `json:"title" bson:"title"`
	IsCompleted bool       `json:"isCompleted" bson:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt" bson:"completedAt"`
}

// Reminder is a scheduled notification for a task.
type Reminder struct {
	Date    time.Time `json:"date" bson:"date"`
	Message string    `json:"message,omitempty" bson:"message,omitempty"`
	IsSent  bool      `json:"isSent" bson:"isSent"`
}

// IsOverdue reports whether the task has a deadline that passed before now
// and is not completed.  It is computed on read and never stored.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline) && t.Status != StatusCompleted
}

// DaysUntilDeadline returns the number of days (rounded up) until the
// deadline, or nil when the task has none.  Negative values mean overdue.
func (t *Task) DaysUntilDeadline(now time.Time) *int {
	if t.Deadline == nil {
		return nil
	}
	days := int(math.Ceil(t.Deadline.Sub(now).Hours() / 24))
	return &days
}

// SubtaskCompletionRate returns the rounded percentage of completed subtasks.
func (t *Task) SubtaskCompletionRate() int {
	if len(t.Subtasks) == 0 {
		return 0
	}
	done := 0
	for _, s := range t.Subtasks {
		if s.IsCompleted {
			done++
		}
	}
	return int(math.Round(float64(done) / float64(len(t.Subtasks)) * 100))
}

// CompletedSubtasks counts subtasks marked as completed.
func (t *Task) CompletedSubtasks() int {
	n := 0
	for _, s := range t.Subtasks {
		if s.IsCompleted {
			n++
		}
	}
	return n
}

// NormalizeTags trims and lowercases tags, dropping empty entries.  The
// result is never nil so that it serializes as an empty array.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// EnsureCollections replaces nil embedded slices with empty ones.
func (t *Task) EnsureCollections() {
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}
	if t.Comments == nil {
		t.Comments = []Comment{}
	}
	if t.Subtasks == nil {
		t.Subtasks = []Subtask{}
	}
	if t.Reminders == nil {
		t.Reminders = []Reminder{}
	}
}
