package model

import "time"

// ApplyStatusTransition moves t to next and applies the completion rules.
//
// Entering completed stamps CompletedAt (only when it is not already set)
// and forces Progression to 100.  Leaving completed clears CompletedAt and,
// when Progression was 100, resets it to 50 for in-progress or 0 otherwise.
// Moves between non-completed statuses keep Progression as it is.
// Setting the current status again changes nothing.
func ApplyStatusTransition(t *Task, next Status, now time.Time) {
	if next == "" || next == t.Status {
		return
	}
	wasCompleted := t.Status == StatusCompleted
	t.Status = next
	if next == StatusCompleted {
		if t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
		t.Progression = 100
		return
	}
	t.CompletedAt = nil
	if wasCompleted && t.Progression == 100 {
		if next == StatusInProgress {
			t.Progression = 50
		} else {
			t.Progression = 0
		}
	}
}

// ApplyArchive sets the archive flag and keeps ArchivedAt in step with it.
func ApplyArchive(t *Task, archived bool, now time.Time) {
	if archived == t.IsArchived {
		return
	}
	t.IsArchived = archived
	if archived {
		if t.ArchivedAt == nil {
			ts := now
			t.ArchivedAt = &ts
		}
		return
	}
	t.ArchivedAt = nil
}

// ToggleSubtask flips the completion flag of the subtask with the given id.
// It returns false when no such subtask exists.
func ToggleSubtask(t *Task, subtaskID string, now time.Time) bool {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID != subtaskID {
			continue
		}
		s := &t.Subtasks[i]
		s.IsCompleted = !s.IsCompleted
		if s.IsCompleted {
			ts := now
			s.CompletedAt = &ts
		} else {
			s.CompletedAt = nil
		}
		return true
	}
	return false
}
