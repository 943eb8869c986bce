package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
)

const categoryColumns = "id,user_id,name,name_key,description,color,icon,is_default,is_active,sort_order,task_count," +
	"default_priority,default_estimated_hours,auto_archive,auto_archive_days,created_at,updated_at"

// CategoryRepo persists categories in the 'categories' table.
type CategoryRepo struct{ DB *sql.DB }

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCategory(ctx context.Context, db execer, c *model.Category) error {
	_, err := db.ExecContext(ctx,
		"INSERT INTO categories ("+categoryColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		c.ID, c.UserID, c.Name, model.NameKey(c.Name), c.Description, c.Color, c.Icon, c.IsDefault, c.IsActive,
		c.SortOrder, c.TaskCount, string(c.Settings.DefaultPriority), c.Settings.DefaultEstimatedHours,
		c.Settings.AutoArchive, c.Settings.AutoArchiveDays, dbTime(c.CreatedAt), dbTime(c.UpdatedAt))
	if err != nil && isDuplicate(err) {
		return repository.ErrDuplicate
	}
	return err
}

// Create inserts c.  A name already used by the owner yields ErrDuplicate.
func (r *CategoryRepo) Create(ctx context.Context, c *model.Category) error {
	return insertCategory(ctx, r.DB, c)
}

// CreateMany inserts cs in one transaction.
func (r *CategoryRepo) CreateMany(ctx context.Context, cs []*model.Category) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, c := range cs {
		if err := insertCategory(ctx, tx, c); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetByIDAndOwner fetches a category owned by userID.
func (r *CategoryRepo) GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Category, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE id=? AND user_id=? LIMIT 1", id, userID)
	return scanCategory(row)
}

// Update writes the mutable columns of c.  taskCount is left untouched.
func (r *CategoryRepo) Update(ctx context.Context, c *model.Category) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE categories SET name=?, name_key=?, description=?, color=?, icon=?, is_default=?, is_active=?,
		 sort_order=?, default_priority=?, default_estimated_hours=?, auto_archive=?, auto_archive_days=?, updated_at=?
		 WHERE id=? AND user_id=?`,
		c.Name, model.NameKey(c.Name), c.Description, c.Color, c.Icon, c.IsDefault, c.IsActive, c.SortOrder,
		string(c.Settings.DefaultPriority), c.Settings.DefaultEstimatedHours, c.Settings.AutoArchive,
		c.Settings.AutoArchiveDays, dbTime(c.UpdatedAt), c.ID, c.UserID)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return expectOne(res)
}

// Delete removes a category owned by userID.
func (r *CategoryRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM categories WHERE id=? AND user_id=?", id, userID)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func categoryWhere(q query.CategoryQuery) *where {
	w := &where{}
	w.add("user_id = ?", q.UserID)
	if q.Keyword != "" {
		p := query.LikePattern(q.Keyword)
		w.add("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", p, p)
	}
	if q.IsActive != nil {
		w.add("is_active = ?", *q.IsActive)
	}
	if q.IsDefault != nil {
		w.add("is_default = ?", *q.IsDefault)
	}
	return w
}

// List returns the owner's categories by sort order, then newest first.
func (r *CategoryRepo) List(ctx context.Context, q query.CategoryQuery) ([]*model.Category, int64, error) {
	w := categoryWhere(q)
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	stmt := "SELECT " + categoryColumns + " FROM categories" + w.String() + " ORDER BY sort_order ASC, created_at DESC, id"
	args := w.args
	if q.Paged {
		page := query.NewPage(q.Page, q.PageSize, total)
		stmt += " LIMIT ? OFFSET ?"
		args = append(append([]any{}, w.args...), page.Size, page.Skip())
	}
	cats, err := r.queryCategories(ctx, stmt, args...)
	if err != nil {
		return nil, 0, err
	}
	return cats, total, nil
}

// ExistsByName reports whether the owner has a category named name
// (case-insensitively) other than excludeID.
func (r *CategoryRepo) ExistsByName(ctx context.Context, userID, name, excludeID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE user_id=? AND name_key=? AND id<>?",
		userID, model.NameKey(name), excludeID).Scan(&n)
	return n > 0, err
}

// HasDefaults reports whether the owner already has a default category.
func (r *CategoryRepo) HasDefaults(ctx context.Context, userID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM categories WHERE user_id=? AND is_default=?", userID, true).Scan(&n)
	return n > 0, err
}

// RefreshTaskCount recounts non-archived tasks and writes only task_count.
func (r *CategoryRepo) RefreshTaskCount(ctx context.Context, id, userID string) (int64, error) {
	var count int64
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE user_id=? AND category_id=? AND is_archived=?",
		userID, id, false).Scan(&count); err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE categories SET task_count=? WHERE id=? AND user_id=?", count, id, userID)
	if err != nil {
		return 0, err
	}
	if err := expectOne(res); err != nil {
		return 0, err
	}
	return count, nil
}

// ListAutoArchive returns every category with auto-archive enabled.
func (r *CategoryRepo) ListAutoArchive(ctx context.Context) ([]*model.Category, error) {
	return r.queryCategories(ctx,
		"SELECT "+categoryColumns+" FROM categories WHERE auto_archive=? ORDER BY user_id, id", true)
}

// ListAll returns every category of every user.
func (r *CategoryRepo) ListAll(ctx context.Context) ([]*model.Category, error) {
	return r.queryCategories(ctx, "SELECT "+categoryColumns+" FROM categories ORDER BY user_id, id")
}

func (r *CategoryRepo) queryCategories(ctx context.Context, stmt string, args ...any) ([]*model.Category, error) {
	rows, err := r.DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := []*model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

func scanCategory(s scanner) (*model.Category, error) {
	var (
		c        model.Category
		priority string
	)
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.NameKey, &c.Description, &c.Color, &c.Icon, &c.IsDefault,
		&c.IsActive, &c.SortOrder, &c.TaskCount, &priority, &c.Settings.DefaultEstimatedHours,
		&c.Settings.AutoArchive, &c.Settings.AutoArchiveDays, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	c.Settings.DefaultPriority = model.Priority(priority)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}
