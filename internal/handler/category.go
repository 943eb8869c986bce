package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/validation"
)

const (
	msgDefaultsExist   = "Default categories already exist for this user"
	msgDuplicateName   = "Category with this name already exists"
	msgCategoryMissing = "Category not found"
)

// CategoryHandler serves the category endpoints.
type CategoryHandler struct{ Deps }

func NewCategoryHandler(d Deps) *CategoryHandler { return &CategoryHandler{Deps: d} }

// ----- DTOs -----

type settingsReq struct {
	DefaultPriority       *model.Priority `json:"defaultPriority" validate:"omitempty,oneof=low medium high urgent"`
	DefaultEstimatedHours *float64        `json:"defaultEstimatedHours" validate:"omitempty,gte=0"`
	AutoArchive           *bool           `json:"autoArchive"`
	AutoArchiveDays       *int            `json:"autoArchiveDays" validate:"omitempty,gte=1"`
}

// apply merges the supplied settings into s.
func (r *settingsReq) apply(s *model.CategorySettings) {
	if r == nil {
		return
	}
	if r.DefaultPriority != nil {
		s.DefaultPriority = *r.DefaultPriority
	}
	if r.DefaultEstimatedHours != nil {
		s.DefaultEstimatedHours = *r.DefaultEstimatedHours
	}
	if r.AutoArchive != nil {
		s.AutoArchive = *r.AutoArchive
	}
	if r.AutoArchiveDays != nil {
		s.AutoArchiveDays = *r.AutoArchiveDays
	}
}

type categoryReq struct {
	Name        *string      `json:"name" validate:"omitempty,max=50"`
	Description *string      `json:"description" validate:"omitempty,max=200"`
	Color       *string      `json:"color" validate:"omitempty,color"`
	Icon        *string      `json:"icon" validate:"omitempty,max=30"`
	SortOrder   *int         `json:"sortOrder"`
	IsActive    *bool        `json:"isActive"`
	Settings    *settingsReq `json:"settings"`
}

func (r *categoryReq) normalize() {
	for _, s := range []*string{r.Name, r.Description, r.Icon, r.Color} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

// apply copies the supplied fields onto cat.  Empty strings leave the name,
// color and icon unchanged.
func (r *categoryReq) apply(cat *model.Category) {
	if r.Name != nil && *r.Name != "" {
		cat.Name = *r.Name
		cat.NameKey = model.NameKey(*r.Name)
	}
	if r.Description != nil {
		cat.Description = *r.Description
	}
	if r.Color != nil && *r.Color != "" {
		cat.Color = *r.Color
	}
	if r.Icon != nil && *r.Icon != "" {
		cat.Icon = *r.Icon
	}
	if r.SortOrder != nil {
		cat.SortOrder = *r.SortOrder
	}
	if r.IsActive != nil {
		cat.IsActive = *r.IsActive
	}
	r.Settings.apply(&cat.Settings)
}

// List returns the user's categories ordered by sortOrder, newest first
// within the same order.  Paging applies only when requested.
func (h *CategoryHandler) List(c echo.Context) error {
	q := query.ParseCategoryQuery(middleware.UserID(c), c.QueryParams())
	ctx, cancel := requestCtx(c)
	defer cancel()

	cats, total, err := h.Store.Categories.List(ctx, q)
	if err != nil {
		return apperror.Internal("list categories failed", err)
	}
	resp := echo.Map{"categories": categoryList(cats), "total": total}
	if q.Paged {
		p := query.NewPage(q.Page, q.PageSize, total)
		resp["page"], resp["pages"], resp["hasMore"] = p.Page, p.Pages, p.HasMore
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns one category.
func (h *CategoryHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cat)
}

// Create adds a category.  Names are unique per user regardless of case.
func (h *CategoryHandler) Create(c echo.Context) error {
	var req categoryReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name == nil || *req.Name == "" {
		return validation.New("name", "Category name is required")
	}
	uid := middleware.UserID(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	exists, err := h.Store.Categories.ExistsByName(ctx, uid, *req.Name, "")
	if err != nil {
		return apperror.Internal("check category name failed", err)
	}
	if exists {
		return apperror.BadRequest(msgDuplicateName)
	}

	now := h.now()
	cat := &model.Category{
		ID:        newID(),
		UserID:    uid,
		Color:     model.DefaultCategoryColor,
		Icon:      model.DefaultCategoryIcon,
		IsActive:  true,
		Settings:  model.DefaultCategorySettings(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(cat)
	if err := h.Store.Categories.Create(ctx, cat); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.BadRequest(msgDuplicateName)
		}
		return apperror.Internal("create category failed", err)
	}
	return c.JSON(http.StatusCreated, cat)
}

// Update applies a partial update; settings are merged field by field.
func (h *CategoryHandler) Update(c echo.Context) error {
	var req categoryReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	if req.Name != nil && *req.Name != "" && model.NameKey(*req.Name) != model.NameKey(cat.Name) {
		exists, err := h.Store.Categories.ExistsByName(ctx, cat.UserID, *req.Name, cat.ID)
		if err != nil {
			return apperror.Internal("check category name failed", err)
		}
		if exists {
			return apperror.BadRequest(msgDuplicateName)
		}
	}
	req.apply(cat)
	if err := h.save(ctx, cat); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cat)
}

// Delete removes a non-default category.  Its tasks are kept and detached.
func (h *CategoryHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	if cat.IsDefault {
		return apperror.BadRequest("Cannot delete default category")
	}
	affected, err := h.Store.Tasks.DetachCategory(ctx, cat.UserID, cat.ID)
	if err != nil {
		return apperror.Internal("detach tasks failed", err)
	}
	if err := h.Store.Categories.Delete(ctx, cat.ID, cat.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound(msgCategoryMissing)
		}
		return apperror.Internal("delete category failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Category removed successfully",
		"deletedCategory": echo.Map{
			"id":            cat.ID,
			"name":          cat.Name,
			"tasksAffected": affected,
		},
	})
}

// Stats returns the rollup over the category's non-archived tasks.
func (h *CategoryHandler) Stats(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	raw, err := h.Store.Tasks.CategoryStats(ctx, cat.UserID, cat.ID, now)
	if err != nil {
		return apperror.Internal("compute category stats failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"category":    summarize(cat),
		"stats":       raw.CategoryStats(),
		"generatedAt": now,
	})
}

type categoryTasksPage struct {
	Category categorySummary `json:"category"`
	Tasks    []TaskView      `json:"tasks"`
	query.Page
}

// Tasks lists the tasks of one category with the task listing filters.
func (h *CategoryHandler) Tasks(c echo.Context) error {
	uid := middleware.UserID(c)
	q, err := query.ParseTaskQuery(uid, c.QueryParams())
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	q.CategoryID = cat.ID
	tasks, total, err := h.Store.Tasks.List(ctx, q)
	if err != nil {
		return apperror.Internal("list category tasks failed", err)
	}
	return c.JSON(http.StatusOK, categoryTasksPage{
		Category: summarize(cat),
		Tasks:    taskViews(tasks, h.now()),
		Page:     query.NewPage(q.Page, q.PageSize, total),
	})
}

// UpdateCount recomputes the cached task count of the category.
func (h *CategoryHandler) UpdateCount(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	count, err := h.Store.Categories.RefreshTaskCount(ctx, cat.ID, cat.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound(msgCategoryMissing)
		}
		return apperror.Internal("refresh task count failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  "Category task count updated successfully",
		"category": echo.Map{"id": cat.ID, "name": cat.Name, "taskCount": count},
	})
}

// ToggleActive flips the active flag.
func (h *CategoryHandler) ToggleActive(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	cat, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	cat.IsActive = !cat.IsActive
	if err := h.save(ctx, cat); err != nil {
		return err
	}
	msg := "Category deactivated successfully"
	if cat.IsActive {
		msg = "Category activated successfully"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":  msg,
		"category": echo.Map{"id": cat.ID, "name": cat.Name, "isActive": cat.IsActive},
	})
}

// CreateDefaults creates the five default categories.  It refuses when the
// user already has any default category.
func (h *CategoryHandler) CreateDefaults(c echo.Context) error {
	uid := middleware.UserID(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	has, err := h.Store.Categories.HasDefaults(ctx, uid)
	if err != nil {
		return apperror.Internal("check default categories failed", err)
	}
	if has {
		return apperror.BadRequest(msgDefaultsExist)
	}
	cats := model.DefaultCategories(uid, h.now(), newID)
	if err := h.Store.Categories.CreateMany(ctx, cats); err != nil {
		switch {
		case errors.Is(err, repository.ErrDefaultsExist):
			return apperror.BadRequest(msgDefaultsExist)
		case errors.Is(err, repository.ErrDuplicate):
			return apperror.BadRequest(msgDuplicateName)
		}
		return apperror.Internal("create default categories failed", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message":    "Default categories created successfully",
		"categories": cats,
		"total":      len(cats),
	})
}

func (h *CategoryHandler) load(ctx context.Context, c echo.Context) (*model.Category, error) {
	cat, err := h.Store.Categories.GetByIDAndOwner(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(msgCategoryMissing)
		}
		return nil, apperror.Internal("load category failed", err)
	}
	return cat, nil
}

func (h *CategoryHandler) save(ctx context.Context, cat *model.Category) error {
	cat.UpdatedAt = h.now()
	if err := h.Store.Categories.Update(ctx, cat); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return apperror.BadRequest(msgDuplicateName)
		case errors.Is(err, repository.ErrNotFound):
			return apperror.NotFound(msgCategoryMissing)
		}
		return apperror.Internal("update category failed", err)
	}
	return nil
}
