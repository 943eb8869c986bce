package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/database"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/repository/sqlstore"
	"github.com/iliyamo/task-management-api/internal/service"
)

type recordingInvalidator struct{ users []string }

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.users = append(r.users, userID)
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "sched.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	logger, _ := test.NewNullLogger()
	if err := database.Migrate(db, "sqlite", logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	s := sqlstore.New(db)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestSweepArchivesOldCompletedTasks(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	logger, hook := test.NewNullLogger()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cat := &model.Category{
		ID: uuid.NewString(), UserID: "u1", Name: "Chores", NameKey: model.NameKey("Chores"),
		Color: model.DefaultCategoryColor, Icon: model.DefaultCategoryIcon, IsActive: true,
		Settings: model.DefaultCategorySettings(), CreatedAt: now, UpdatedAt: now,
	}
	cat.Settings.AutoArchive = true
	cat.Settings.AutoArchiveDays = 7
	manual := &model.Category{
		ID: uuid.NewString(), UserID: "u1", Name: "Manual", NameKey: model.NameKey("Manual"),
		Color: model.DefaultCategoryColor, Icon: model.DefaultCategoryIcon, IsActive: true,
		Settings: model.DefaultCategorySettings(), CreatedAt: now, UpdatedAt: now,
	}
	for _, c := range []*model.Category{cat, manual} {
		if err := s.Categories.Create(ctx, c); err != nil {
			t.Fatalf("create category: %v", err)
		}
	}

	mk := func(title, categoryID string, status model.Status, completedDaysAgo int) {
		task := &model.Task{
			ID: uuid.NewString(), UserID: "u1", CategoryID: categoryID, Title: title,
			Status: status, Priority: model.PriorityMedium, CreatedAt: now, UpdatedAt: now,
		}
		if status == model.StatusCompleted {
			done := now.AddDate(0, 0, -completedDaysAgo)
			task.CompletedAt = &done
			task.Progression = 100
		}
		task.EnsureCollections()
		if err := s.Tasks.Create(ctx, task); err != nil {
			t.Fatalf("create task: %v", err)
		}
	}
	mk("old done", cat.ID, model.StatusCompleted, 10)
	mk("fresh done", cat.ID, model.StatusCompleted, 2)
	mk("open", cat.ID, model.StatusPending, 0)
	mk("manual old done", manual.ID, model.StatusCompleted, 30)

	inv := &recordingInvalidator{}
	a := &AutoArchiver{
		Tasks:      s.Tasks,
		Categories: s.Categories,
		Counter:    service.NewCategoryCounter(s.Categories, logger),
		Cache:      inv,
		Log:        logger,
		Now:        func() time.Time { return now },
	}
	res, err := a.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Categories != 1 || res.Archived != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	visible, total, err := s.Tasks.List(ctx, query.TaskQuery{UserID: "u1", CategoryID: cat.ID, Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 visible tasks, got %d", total)
	}
	for _, v := range visible {
		if v.Title == "old done" {
			t.Fatalf("old completed task should be archived")
		}
	}
	got, err := s.Categories.GetByIDAndOwner(ctx, cat.ID, "u1")
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if got.TaskCount != 2 {
		t.Fatalf("category count should be refreshed to 2, got %d", got.TaskCount)
	}
	if e := hook.LastEntry(); e == nil || e.Message != "scheduler.auto_archive.archived" {
		t.Fatalf("expected archive log entry, got %+v", e)
	}

	if len(inv.users) != 1 || inv.users[0] != "u1" {
		t.Fatalf("archiving should invalidate u1's cached responses, got %v", inv.users)
	}

	res, err = a.Sweep(ctx)
	if err != nil || res.Archived != 0 {
		t.Fatalf("second sweep should archive nothing, got %+v %v", res, err)
	}
	if len(inv.users) != 1 {
		t.Fatalf("an empty sweep must not invalidate, got %v", inv.users)
	}
}

func TestScheduleAutoArchiveDisabled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New(config.SchedulerConfig{Timezone: "Not/AZone"}, logger)
	ok, err := ScheduleAutoArchive(s, config.SchedulerConfig{}, &AutoArchiver{})
	if err != nil || ok {
		t.Fatalf("disabled sweeper must not be scheduled: %v %v", ok, err)
	}
	ok, err = ScheduleAutoArchive(s, config.SchedulerConfig{AutoArchiveEnabled: true, AutoArchiveInterval: time.Minute}, &AutoArchiver{})
	if err != nil || !ok {
		t.Fatalf("enabled sweeper should be scheduled: %v %v", ok, err)
	}
	if _, err := s.Every(0, "bad", func(context.Context) error { return nil }); err == nil {
		t.Fatalf("a zero interval must be rejected")
	}
}
