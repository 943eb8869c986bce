package model

import (
	"testing"
	"time"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestApplyStatusTransitionEnteringCompleted(t *testing.T) {
	task := &Task{Status: StatusInProgress, Progression: 40}
	ApplyStatusTransition(task, StatusCompleted, now)

	if task.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", task.Status)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(now) {
		t.Fatalf("completedAt = %v, want %v", task.CompletedAt, now)
	}
	if task.Progression != 100 {
		t.Fatalf("progression = %d, want 100", task.Progression)
	}
}

func TestApplyStatusTransitionKeepsExistingCompletedAt(t *testing.T) {
	earlier := now.Add(-48 * time.Hour)
	task := &Task{Status: StatusPending, CompletedAt: &earlier}
	ApplyStatusTransition(task, StatusCompleted, now)

	if !task.CompletedAt.Equal(earlier) {
		t.Fatalf("completedAt overwritten: %v", task.CompletedAt)
	}
}

func TestApplyStatusTransitionLeavingCompleted(t *testing.T) {
	tests := []struct {
		name     string
		next     Status
		progress int
		want     int
	}{
		{"to in-progress resets full progress", StatusInProgress, 100, 50},
		{"to pending resets full progress", StatusPending, 100, 0},
		{"to cancelled resets full progress", StatusCancelled, 100, 0},
		{"partial progress kept", StatusInProgress, 70, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := now.Add(-time.Hour)
			task := &Task{Status: StatusCompleted, CompletedAt: &done, Progression: tt.progress}
			ApplyStatusTransition(task, tt.next, now)
			if task.CompletedAt != nil {
				t.Fatalf("completedAt not cleared")
			}
			if task.Progression != tt.want {
				t.Fatalf("progression = %d, want %d", task.Progression, tt.want)
			}
		})
	}
}

func TestApplyStatusTransitionBetweenOpenStatusesKeepsProgress(t *testing.T) {
	tests := []struct {
		from, to Status
	}{
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusPending},
		{StatusPending, StatusCancelled},
	}
	for _, tt := range tests {
		task := &Task{Status: tt.from, Progression: 100}
		ApplyStatusTransition(task, tt.to, now)
		if task.Status != tt.to || task.Progression != 100 {
			t.Fatalf("%s -> %s: status=%s progression=%d, want progression 100", tt.from, tt.to, task.Status, task.Progression)
		}
		if task.CompletedAt != nil {
			t.Fatalf("%s -> %s: completedAt should stay nil", tt.from, tt.to)
		}
	}
}

func TestApplyStatusTransitionSameStatusIsNoop(t *testing.T) {
	done := now.Add(-time.Hour)
	task := &Task{Status: StatusCompleted, CompletedAt: &done, Progression: 100}
	ApplyStatusTransition(task, StatusCompleted, now)
	ApplyStatusTransition(task, StatusCompleted, now.Add(time.Hour))

	if !task.CompletedAt.Equal(done) || task.Progression != 100 {
		t.Fatalf("repeated transition changed task: %+v", task)
	}

	pending := &Task{Status: StatusPending, Progression: 20}
	ApplyStatusTransition(pending, StatusPending, now)
	if pending.CompletedAt != nil || pending.Progression != 20 {
		t.Fatalf("pending -> pending changed task: %+v", pending)
	}
}

func TestApplyArchive(t *testing.T) {
	task := &Task{}
	ApplyArchive(task, true, now)
	if !task.IsArchived || task.ArchivedAt == nil {
		t.Fatalf("archive not applied: %+v", task)
	}
	ApplyArchive(task, true, now.Add(time.Hour))
	if !task.ArchivedAt.Equal(now) {
		t.Fatalf("archivedAt moved on repeated archive")
	}
	ApplyArchive(task, false, now)
	if task.IsArchived || task.ArchivedAt != nil {
		t.Fatalf("unarchive not applied: %+v", task)
	}
}

func TestToggleSubtask(t *testing.T) {
	task := &Task{Subtasks: []Subtask{{ID: "a", Title: "one"}, {ID: "b", Title: "two"}}}
	if !ToggleSubtask(task, "a", now) {
		t.Fatalf("toggle returned false for existing subtask")
	}
	if !task.Subtasks[0].IsCompleted || task.Subtasks[0].CompletedAt == nil {
		t.Fatalf("subtask not completed: %+v", task.Subtasks[0])
	}
	if got := task.SubtaskCompletionRate(); got != 50 {
		t.Fatalf("completion rate = %d, want 50", got)
	}
	ToggleSubtask(task, "a", now)
	if task.Subtasks[0].IsCompleted || task.Subtasks[0].CompletedAt != nil {
		t.Fatalf("subtask not reopened: %+v", task.Subtasks[0])
	}
	if ToggleSubtask(task, "missing", now) {
		t.Fatalf("toggle returned true for unknown subtask")
	}
}

func TestDerivedAccessors(t *testing.T) {
	past := now.Add(-36 * time.Hour)
	future := now.Add(36 * time.Hour)

	overdue := &Task{Status: StatusPending, Deadline: &past}
	if !overdue.IsOverdue(now) {
		t.Fatalf("expected overdue")
	}
	if d := overdue.DaysUntilDeadline(now); d == nil || *d != -1 {
		t.Fatalf("days until past deadline = %v, want -1", d)
	}

	completed := &Task{Status: StatusCompleted, Deadline: &past}
	if completed.IsOverdue(now) {
		t.Fatalf("completed task reported overdue")
	}

	upcoming := &Task{Deadline: &future}
	if d := upcoming.DaysUntilDeadline(now); d == nil || *d != 2 {
		t.Fatalf("days until deadline = %v, want 2", d)
	}

	none := &Task{}
	if none.IsOverdue(now) || none.DaysUntilDeadline(now) != nil || none.SubtaskCompletionRate() != 0 {
		t.Fatalf("task without deadline or subtasks has derived values")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"  Go ", "", "API"})
	if len(got) != 2 || got[0] != "go" || got[1] != "api" {
		t.Fatalf("NormalizeTags = %v", got)
	}
	if NormalizeTags(nil) == nil {
		t.Fatalf("NormalizeTags(nil) returned nil")
	}
}

func TestDefaultCategories(t *testing.T) {
	n := 0
	cats := DefaultCategories("u1", now, func() string { n++; return string(rune('a' + n)) })
	if len(cats) != 5 {
		t.Fatalf("got %d defaults, want 5", len(cats))
	}
	want := []string{"Personal", "Work", "Shopping", "Health", "Learning"}
	for i, c := range cats {
		if c.Name != want[i] || !c.IsDefault || c.UserID != "u1" || c.SortOrder != i+1 {
			t.Fatalf("default %d = %+v", i, c)
		}
	}
}
