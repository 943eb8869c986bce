package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/avatar"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/utils"
)

// UserHandler serves the profile endpoints and admin user management.
type UserHandler struct{ Deps }

func NewUserHandler(d Deps) *UserHandler { return &UserHandler{Deps: d} }

type notificationsReq struct {
	Email             *bool `json:"email"`
	DeadlineReminders *bool `json:"deadlineReminders"`
	TaskUpdates       *bool `json:"taskUpdates"`
}

type preferencesReq struct {
	Theme         *string           `json:"theme" validate:"omitempty,oneof=light dark system"`
	Notifications *notificationsReq `json:"notifications"`
	DateFormat    *string           `json:"dateFormat" validate:"omitempty,oneof=MM/DD/YYYY DD/MM/YYYY YYYY-MM-DD"`
	Timezone      *string           `json:"timezone" validate:"omitempty,max=64"`
}

// apply merges the supplied fields into p.
func (r *preferencesReq) apply(p *model.Preferences) {
	if r == nil {
		return
	}
	if r.Theme != nil {
		p.Theme = *r.Theme
	}
	if r.DateFormat != nil {
		p.DateFormat = *r.DateFormat
	}
	if r.Timezone != nil {
		p.Timezone = *r.Timezone
	}
	if n := r.Notifications; n != nil {
		if n.Email != nil {
			p.Notifications.Email = *n.Email
		}
		if n.DeadlineReminders != nil {
			p.Notifications.DeadlineReminders = *n.DeadlineReminders
		}
		if n.TaskUpdates != nil {
			p.Notifications.TaskUpdates = *n.TaskUpdates
		}
	}
}

type profileReq struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=50"`
	Email       *string         `json:"email" validate:"omitempty,email"`
	Password    *string         `json:"password" validate:"omitempty,min=6"`
	Avatar      *string         `json:"avatar" validate:"omitempty,url"`
	Preferences *preferencesReq `json:"preferences"`
}

func (r *profileReq) normalize() {
	if r.Name != nil {
		*r.Name = strings.TrimSpace(*r.Name)
	}
	if r.Email != nil {
		*r.Email = model.NormalizeEmail(*r.Email)
	}
}

type adminUserReq struct {
	Name        *string         `json:"name" validate:"omitempty,min=1,max=50"`
	Email       *string         `json:"email" validate:"omitempty,email"`
	Avatar      *string         `json:"avatar" validate:"omitempty,url"`
	Preferences *preferencesReq `json:"preferences"`
	IsAdmin     *bool           `json:"isAdmin"`
	IsActive    *bool           `json:"isActive"`
}

func (r *adminUserReq) normalize() {
	p := r.profile()
	p.normalize()
}

// profile views the profile fields of the request.  Admins cannot set
// another user's password.
func (r *adminUserReq) profile() *profileReq {
	return &profileReq{Name: r.Name, Email: r.Email, Avatar: r.Avatar, Preferences: r.Preferences}
}

// GetProfile returns the authenticated user.
func (h *UserHandler) GetProfile(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.CurrentUser(c))
}

// UpdateProfile applies a partial update to the authenticated user.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.loadUser(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	if err := h.applyProfile(ctx, u, &req); err != nil {
		return err
	}
	if err := h.save(ctx, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// UpdatePreferences merges the supplied preferences.
func (h *UserHandler) UpdatePreferences(c echo.Context) error {
	var req preferencesReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.loadUser(ctx, middleware.UserID(c))
	if err != nil {
		return err
	}
	req.apply(&u.Preferences)
	if err := h.save(ctx, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Preferences updated successfully",
		"preferences": u.Preferences,
	})
}

// Stats returns the task rollup of the authenticated user.
func (h *UserHandler) Stats(c echo.Context) error {
	u := middleware.CurrentUser(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	now := h.now()
	raw, err := h.Store.Tasks.UserStats(ctx, u.ID, now)
	if err != nil {
		return apperror.Internal("compute user stats failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":        echo.Map{"id": u.ID, "name": u.Name, "email": u.Email},
		"stats":       raw.UserStats(),
		"generatedAt": now,
	})
}

// AvatarVariations lists avatar styles for ?name= or the user's own name.
func (h *UserHandler) AvatarVariations(c echo.Context) error {
	name := strings.TrimSpace(c.QueryParam("name"))
	if name == "" {
		name = middleware.CurrentUser(c).Name
	}
	variations := avatar.Variations(name)
	return c.JSON(http.StatusOK, echo.Map{
		"name":       name,
		"variations": variations,
		"totalCount": len(variations),
	})
}

type userPage struct {
	Users []*model.User `json:"users"`
	query.Page
}

// List returns users matching ?keyword= over name and email (admin).
func (h *UserHandler) List(c echo.Context) error {
	q := query.ParseUserQuery(c.QueryParams())
	ctx, cancel := requestCtx(c)
	defer cancel()

	users, total, err := h.Store.Users.List(ctx, q)
	if err != nil {
		return apperror.Internal("list users failed", err)
	}
	return c.JSON(http.StatusOK, userPage{Users: userList(users), Page: query.NewPage(q.Page, q.PageSize, total)})
}

// Get returns one user by id (admin).
func (h *UserHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	u, err := h.loadUser(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Update applies a partial update to any user (admin).
func (h *UserHandler) Update(c echo.Context) error {
	var req adminUserReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.loadUser(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if err := h.applyProfile(ctx, u, req.profile()); err != nil {
		return err
	}
	if req.IsAdmin != nil {
		u.IsAdmin = *req.IsAdmin
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if err := h.save(ctx, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

// Delete deactivates a user and revokes their refresh tokens (admin).
// Admin accounts cannot be deleted.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.loadUser(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return apperror.BadRequest("Cannot delete admin user")
	}
	u.IsActive = false
	if err := h.save(ctx, u); err != nil {
		return err
	}
	if err := h.Store.Tokens.RevokeAllForUser(ctx, u.ID); err != nil {
		return apperror.Internal("revoke refresh tokens failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "User account deactivated",
		"userId":        u.ID,
		"deactivatedAt": u.UpdatedAt,
	})
}

// Activate reactivates a deactivated user (admin).
func (h *UserHandler) Activate(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.loadUser(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	u.IsActive = true
	if err := h.save(ctx, u); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "User account reactivated",
		"userId":        u.ID,
		"reactivatedAt": u.UpdatedAt,
	})
}

func (h *UserHandler) loadUser(ctx context.Context, id string) (*model.User, error) {
	u, err := h.Store.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, apperror.Internal("load user failed", err)
	}
	return u, nil
}

// applyProfile copies the supplied fields onto u.  The avatar is
// regenerated when the name changes unless a new avatar is supplied.
func (h *UserHandler) applyProfile(ctx context.Context, u *model.User, req *profileReq) error {
	if req.Email != nil && *req.Email != u.Email {
		other, err := h.Store.Users.GetByEmail(ctx, *req.Email)
		switch {
		case err == nil && other.ID != u.ID:
			return apperror.BadRequest("Email already in use")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return apperror.Internal("lookup user failed", err)
		}
		u.Email = *req.Email
	}
	req.Preferences.apply(&u.Preferences)

	nameChanged := req.Name != nil && *req.Name != u.Name
	if req.Name != nil {
		u.Name = *req.Name
	}
	switch {
	case req.Avatar != nil:
		u.Avatar = avatar.Resolve(*req.Avatar, u.Name, u.Preferences.Theme)
	case nameChanged:
		u.Avatar = avatar.Resolve("", u.Name, u.Preferences.Theme)
	}

	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password, h.Cfg.BcryptCost)
		if err != nil {
			return apperror.Internal("hash password failed", err)
		}
		u.PasswordHash = hash
	}
	return nil
}

func (h *UserHandler) save(ctx context.Context, u *model.User) error {
	u.UpdatedAt = h.now()
	if err := h.Store.Users.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return apperror.BadRequest("Email already in use")
		case errors.Is(err, repository.ErrNotFound):
			return apperror.NotFound("User not found")
		}
		return apperror.Internal("update user failed", err)
	}
	return nil
}
