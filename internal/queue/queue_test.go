package queue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

type recordingRecounter struct {
	user string
	ids  []string
}

func (r *recordingRecounter) Refresh(_ context.Context, userID string, ids ...string) {
	r.user = userID
	r.ids = append(r.ids, ids...)
}

type recordingInvalidator struct{ users []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func TestProcessorAppendsAndRecounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "activity.log")
	rc := &recordingRecounter{}
	inv := &recordingInvalidator{}
	p := &Processor{LogPath: path, Recounter: rc, Cache: inv}

	ev := TaskEvent{
		Type:          TaskUpdated,
		TaskID:        "t1",
		UserID:        "u1",
		Title:         "Write report",
		Status:        "completed",
		OldCategoryID: "c1",
		NewCategoryID: "c2",
		OccurredAt:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	body, err := sonic.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := p.Handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"[2024-05-01T10:00:00Z] task.updated", "task_id=t1", `title="Write report"`, "category=c2", "previous_category=c1"} {
		if !strings.Contains(line, want) {
			t.Fatalf("log line %q missing %q", line, want)
		}
	}
	if rc.user != "u1" || len(rc.ids) != 2 || rc.ids[0] != "c1" || rc.ids[1] != "c2" {
		t.Fatalf("unexpected recount %s %v", rc.user, rc.ids)
	}
	if len(inv.users) != 1 || inv.users[0] != "u1" {
		t.Fatalf("recount should invalidate u1's cached responses, got %v", inv.users)
	}
}

func TestProcessorSkipsInvalidationWithoutCategories(t *testing.T) {
	inv := &recordingInvalidator{}
	p := &Processor{
		LogPath:   filepath.Join(t.TempDir(), "activity.log"),
		Recounter: &recordingRecounter{},
		Cache:     inv,
	}
	body, err := sonic.Marshal(TaskEvent{Type: TaskCreated, TaskID: "t2", UserID: "u1", Title: "Loose task"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := p.Handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(inv.users) != 0 {
		t.Fatalf("an uncategorized event should not invalidate, got %v", inv.users)
	}
}

func TestProcessorRejectsGarbage(t *testing.T) {
	p := &Processor{}
	if err := p.Handle(context.Background(), []byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	if err := p.Handle(context.Background(), []byte(`{"task_id":"t1"}`)); err == nil {
		t.Fatalf("expected error for an event without type")
	}
}

func TestEventCategoriesDeduplicates(t *testing.T) {
	if got := (TaskEvent{OldCategoryID: "c1", NewCategoryID: "c1"}).Categories(); len(got) != 1 {
		t.Fatalf("expected one category, got %v", got)
	}
	if got := (TaskEvent{}).Categories(); len(got) != 0 {
		t.Fatalf("expected none, got %v", got)
	}
}
