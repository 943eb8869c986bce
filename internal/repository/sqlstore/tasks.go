package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/stats"
)

const taskColumns = "id,user_id,category_id,assigned_to,title,description,status,priority,deadline,start_date," +
	"completed_at,estimated_hours,actual_hours,tags,attachments,comments,subtasks,reminders,is_archived," +
	"archived_at,progression,created_at,updated_at"

// TaskRepo persists tasks in the 'tasks' table.
type TaskRepo struct{ DB *sql.DB }

// tagSep separates tags in the tag_text column that keyword search runs
// against, so a match never spans two tags.
const tagSep = "\x1f"

// taskRow holds the encoded column values of a task.
type taskRow struct {
	tags, attachments, comments, subtasks, reminders string
	tagText                                          string
}

func encodeTask(t *model.Task) (taskRow, error) {
	var (
		row taskRow
		err error
	)
	if row.tags, err = encodeJSON(t.Tags); err != nil {
		return row, err
	}
	row.tagText = tagSep + strings.Join(t.Tags, tagSep) + tagSep
	if row.attachments, err = encodeJSON(t.Attachments); err != nil {
		return row, err
	}
	if row.comments, err = encodeJSON(t.Comments); err != nil {
		return row, err
	}
	if row.subtasks, err = encodeJSON(t.Subtasks); err != nil {
		return row, err
	}
	if row.reminders, err = encodeJSON(t.Reminders); err != nil {
		return row, err
	}
	return row, nil
}

// Create inserts t.
func (r *TaskRepo) Create(ctx context.Context, t *model.Task) error {
	row, err := encodeTask(t)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO tasks ("+taskColumns+",tag_text) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		t.ID, t.UserID, nullString(t.CategoryID), nullString(t.AssignedTo), t.Title, t.Description,
		string(t.Status), string(t.Priority), nullTime(t.Deadline), nullTime(t.StartDate), nullTime(t.CompletedAt),
		t.EstimatedHours, t.ActualHours, row.tags, row.attachments, row.comments, row.subtasks, row.reminders,
		t.IsArchived, nullTime(t.ArchivedAt), t.Progression, dbTime(t.CreatedAt), dbTime(t.UpdatedAt), row.tagText)
	return err
}

// GetByIDAndOwner fetches a task owned by userID.
func (r *TaskRepo) GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Task, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id=? AND user_id=? LIMIT 1", id, userID)
	return scanTask(row)
}

// Update writes every mutable column of t, scoped to its owner.
func (r *TaskRepo) Update(ctx context.Context, t *model.Task) error {
	row, err := encodeTask(t)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET category_id=?, assigned_to=?, title=?, description=?, status=?, priority=?,
		 deadline=?, start_date=?, completed_at=?, estimated_hours=?, actual_hours=?, tags=?, attachments=?,
		 comments=?, subtasks=?, reminders=?, is_archived=?, archived_at=?, progression=?, updated_at=?, tag_text=?
		 WHERE id=? AND user_id=?`,
		nullString(t.CategoryID), nullString(t.AssignedTo), t.Title, t.Description, string(t.Status),
		string(t.Priority), nullTime(t.Deadline), nullTime(t.StartDate), nullTime(t.CompletedAt),
		t.EstimatedHours, t.ActualHours, row.tags, row.attachments, row.comments, row.subtasks, row.reminders,
		t.IsArchived, nullTime(t.ArchivedAt), t.Progression, dbTime(t.UpdatedAt), row.tagText, t.ID, t.UserID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a task owned by userID.
func (r *TaskRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// taskWhere translates a TaskQuery; the owner predicate always comes first.
func taskWhere(q query.TaskQuery) *where {
	w := &where{}
	w.add("user_id = ?", q.UserID)
	if !q.IncludeArchived {
		w.add("is_archived = ?", false)
	}
	if q.Keyword != "" {
		p := query.LikePattern(q.Keyword)
		if strings.Contains(q.Keyword, tagSep) {
			w.add("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", p, p)
		} else {
			w.add("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!' OR LOWER(tag_text) LIKE ? ESCAPE '!')", p, p, p)
		}
	}
	if q.Status != "" {
		w.add("status = ?", string(q.Status))
	}
	if q.Priority != "" {
		w.add("priority = ?", string(q.Priority))
	}
	if q.CategoryID != "" {
		w.add("category_id = ?", q.CategoryID)
	}
	if q.DueBefore != nil {
		w.add("deadline <= ?", dbTime(*q.DueBefore))
	}
	if q.DueAfter != nil {
		w.add("deadline >= ?", dbTime(*q.DueAfter))
	}
	return w
}

// List counts the matching tasks and returns the requested page, newest first.
func (r *TaskRepo) List(ctx context.Context, q query.TaskQuery) ([]*model.Task, int64, error) {
	w := taskWhere(q)
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := query.NewPage(q.Page, q.PageSize, total)
	args := append(append([]any{}, w.args...), page.Size, page.Skip())
	tasks, err := r.queryTasks(ctx,
		"SELECT "+taskColumns+" FROM tasks"+w.String()+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// ListOverdue returns up to limit non-archived, unfinished tasks whose
// deadline passed, earliest deadline first.
func (r *TaskRepo) ListOverdue(ctx context.Context, userID string, now time.Time, limit int) ([]*model.Task, error) {
	return r.queryTasks(ctx,
		"SELECT "+taskColumns+` FROM tasks
		 WHERE user_id=? AND is_archived=? AND deadline IS NOT NULL AND deadline < ? AND status <> ?
		 ORDER BY deadline ASC LIMIT ?`,
		userID, false, dbTime(now), string(model.StatusCompleted), limit)
}

func (r *TaskRepo) queryTasks(ctx context.Context, stmt string, args ...any) ([]*model.Task, error) {
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UserStats streams the owner's non-archived tasks through an Accumulator.
func (r *TaskRepo) UserStats(ctx context.Context, userID string, now time.Time) (stats.Raw, error) {
	return r.accumulate(ctx, now, "user_id=? AND is_archived=?", userID, false)
}

// CategoryStats is UserStats restricted to one category.
func (r *TaskRepo) CategoryStats(ctx context.Context, userID, categoryID string, now time.Time) (stats.Raw, error) {
	return r.accumulate(ctx, now, "user_id=? AND category_id=? AND is_archived=?", userID, categoryID, false)
}

func (r *TaskRepo) accumulate(ctx context.Context, now time.Time, cond string, args ...any) (stats.Raw, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT status, deadline, start_date, completed_at, estimated_hours, actual_hours, progression
		 FROM tasks WHERE `+cond, args...)
	if err != nil {
		return stats.Raw{}, err
	}
	defer rows.Close()

	acc := stats.NewAccumulator(now)
	for rows.Next() {
		var (
			t                              model.Task
			status                         string
			deadline, started, completedAt sql.NullTime
		)
		if err := rows.Scan(&status, &deadline, &started, &completedAt, &t.EstimatedHours, &t.ActualHours, &t.Progression); err != nil {
			return stats.Raw{}, err
		}
		t.Status = model.Status(status)
		t.Deadline = timePtr(deadline)
		t.StartDate = timePtr(started)
		t.CompletedAt = timePtr(completedAt)
		acc.Add(&t)
	}
	return acc.Raw(), rows.Err()
}

// DetachCategory clears the category reference of the owner's tasks.
func (r *TaskRepo) DetachCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE tasks SET category_id=NULL, updated_at=? WHERE user_id=? AND category_id=?",
		dbTime(time.Now()), userID, categoryID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ArchiveCompletedBefore archives completed tasks finished before cutoff.
func (r *TaskRepo) ArchiveCompletedBefore(ctx context.Context, userID, categoryID string, cutoff, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE tasks SET is_archived=?, archived_at=?, updated_at=?
		 WHERE user_id=? AND category_id=? AND status=? AND is_archived=? AND completed_at IS NOT NULL AND completed_at < ?`,
		true, dbTime(now), dbTime(now), userID, categoryID, string(model.StatusCompleted), false, dbTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanTask(s scanner) (*model.Task, error) {
	var (
		t                                                model.Task
		categoryID, assignedTo                           sql.NullString
		status, priority                                 string
		deadline, startDate, completedAt, archivedAt     sql.NullTime
		tags, attachments, comments, subtasks, reminders string
	)
	err := s.Scan(&t.ID, &t.UserID, &categoryID, &assignedTo, &t.Title, &t.Description, &status, &priority,
		&deadline, &startDate, &completedAt, &t.EstimatedHours, &t.ActualHours, &tags, &attachments, &comments,
		&subtasks, &reminders, &t.IsArchived, &archivedAt, &t.Progression, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	t.CategoryID = categoryID.String
	t.AssignedTo = assignedTo.String
	t.Status = model.Status(status)
	t.Priority = model.Priority(priority)
	t.Deadline = timePtr(deadline)
	t.StartDate = timePtr(startDate)
	t.CompletedAt = timePtr(completedAt)
	t.ArchivedAt = timePtr(archivedAt)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	for _, f := range []struct {
		src string
		dst any
	}{
		{tags, &t.Tags},
		{attachments, &t.Attachments},
		{comments, &t.Comments},
		{subtasks, &t.Subtasks},
		{reminders, &t.Reminders},
	} {
		if err := decodeJSON(f.src, f.dst); err != nil {
			return nil, err
		}
	}
	t.EnsureCollections()
	return &t, nil
}
