package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
)

const userColumns = "id,name,email,password_hash,avatar,is_admin,is_active,is_email_verified,last_login,preferences,created_at,updated_at"

// UserRepo persists users in the 'users' table.
type UserRepo struct{ DB *sql.DB }

// Create inserts u.  A taken email yields repository.ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	prefs, err := encodeJSON(u.Preferences)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?,?)",
		u.ID, u.Name, model.NormalizeEmail(u.Email), u.PasswordHash, u.Avatar, u.IsAdmin, u.IsActive,
		u.IsEmailVerified, nullTime(u.LastLogin), prefs, dbTime(u.CreatedAt), dbTime(u.UpdatedAt))
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return scanUser(row)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.DB.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", model.NormalizeEmail(email))
	return scanUser(row)
}

// Update writes every mutable column of u.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	prefs, err := encodeJSON(u.Preferences)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, password_hash=?, avatar=?, is_admin=?, is_active=?,
		 is_email_verified=?, last_login=?, preferences=?, updated_at=? WHERE id=?`,
		u.Name, model.NormalizeEmail(u.Email), u.PasswordHash, u.Avatar, u.IsAdmin, u.IsActive,
		u.IsEmailVerified, nullTime(u.LastLogin), prefs, dbTime(u.UpdatedAt), u.ID)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return expectOne(res)
}

// List returns one page of users matching the keyword over name and email.
func (r *UserRepo) List(ctx context.Context, q query.UserQuery) ([]*model.User, int64, error) {
	w := &where{}
	if q.Keyword != "" {
		p := query.LikePattern(q.Keyword)
		w.add("(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!')", p, p)
	}
	var total int64
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+w.String(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page := query.NewPage(q.Page, q.PageSize, total)
	args := append(append([]any{}, w.args...), page.Size, page.Skip())
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users"+w.String()+" ORDER BY created_at DESC, id LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx, "UPDATE users SET last_login=? WHERE id=?", dbTime(at), id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u         model.User
		lastLogin sql.NullTime
		prefs     string
	)
	err := s.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.IsAdmin, &u.IsActive,
		&u.IsEmailVerified, &lastLogin, &prefs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.LastLogin = timePtr(lastLogin)
	u.Preferences = model.DefaultPreferences()
	if err := decodeJSON(prefs, &u.Preferences); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

// expectOne maps a zero-row write to repository.ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
