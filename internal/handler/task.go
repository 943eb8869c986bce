package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
	"github.com/iliyamo/task-management-api/internal/queue"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/validation"
)

const overdueLimit = 10

// TaskHandler serves the task endpoints.  Every lookup is scoped to the
// authenticated user.
type TaskHandler struct{ Deps }

func NewTaskHandler(d Deps) *TaskHandler { return &TaskHandler{Deps: d} }

// ----- DTOs -----

type reminderReq struct {
	Date    time.Time `json:"date" validate:"required"`
	Message string    `json:"message" validate:"max=200"`
}

type attachmentReq struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	FileURL  string `json:"fileUrl" validate:"required,url"`
	FileSize int64  `json:"fileSize" validate:"gte=0"`
}

type createTaskReq struct {
	Title          string          `json:"title" validate:"max=100"`
	Description    string          `json:"description" validate:"max=1000"`
	Status         model.Status    `json:"status" validate:"omitempty,oneof=pending in-progress completed cancelled"`
	Priority       model.Priority  `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	Category       string          `json:"category"`
	AssignedTo     string          `json:"assignedTo" validate:"omitempty,uuid"`
	Deadline       *time.Time      `json:"deadline"`
	StartDate      *time.Time      `json:"startDate"`
	EstimatedHours *float64        `json:"estimatedHours" validate:"omitempty,gte=0,lte=1000"`
	ActualHours    *float64        `json:"actualHours" validate:"omitempty,gte=0"`
	Tags           []string        `json:"tags" validate:"omitempty,dive,max=30"`
	Progression    *int            `json:"progression" validate:"omitempty,gte=0,lte=100"`
	Reminders      []reminderReq   `json:"reminders" validate:"omitempty,dive"`
	Attachments    []attachmentReq `json:"attachments" validate:"omitempty,dive"`
}

func (r *createTaskReq) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Tags = model.NormalizeTags(r.Tags)
}

// updateTaskReq is a partial update.  Title, status and priority are only
// replaced by non-empty values; the other fields are replaced whenever
// present.  An empty category detaches the task.
type updateTaskReq struct {
	Title          *string         `json:"title" validate:"omitempty,max=100"`
	Description    *string         `json:"description" validate:"omitempty,max=1000"`
	Status         *model.Status   `json:"status" validate:"omitempty,oneof=pending in-progress completed cancelled ''"`
	Priority       *model.Priority `json:"priority" validate:"omitempty,oneof=low medium high urgent ''"`
	Category       *string         `json:"category"`
	AssignedTo     *string         `json:"assignedTo"`
	Deadline       *time.Time      `json:"deadline"`
	EstimatedHours *float64        `json:"estimatedHours" validate:"omitempty,gte=0,lte=1000"`
	ActualHours    *float64        `json:"actualHours" validate:"omitempty,gte=0"`
	Tags           []string        `json:"tags" validate:"omitempty,dive,max=30"`
	Progression    *int            `json:"progression" validate:"omitempty,gte=0,lte=100"`
	Reminders      []reminderReq   `json:"reminders" validate:"omitempty,dive"`
}

func (r *updateTaskReq) normalize() {
	if r.Title != nil {
		*r.Title = strings.TrimSpace(*r.Title)
	}
	if r.Category != nil {
		*r.Category = strings.TrimSpace(*r.Category)
	}
	if r.Tags != nil {
		r.Tags = model.NormalizeTags(r.Tags)
	}
}

type commentReq struct {
	Text string `json:"text" validate:"max=500"`
}

type subtaskReq struct {
	Title string `json:"title" validate:"max=100"`
}

type taskPage struct {
	Tasks []TaskView `json:"tasks"`
	query.Page
}

// List returns the user's tasks, newest first, filtered by the query
// parameters.  Archived tasks are hidden unless includeArchived=true.
func (h *TaskHandler) List(c echo.Context) error {
	q, err := query.ParseTaskQuery(middleware.UserID(c), c.QueryParams())
	if err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	tasks, total, err := h.Store.Tasks.List(ctx, q)
	if err != nil {
		return apperror.Internal("list tasks failed", err)
	}
	return c.JSON(http.StatusOK, taskPage{
		Tasks: taskViews(tasks, h.now()),
		Page:  query.NewPage(q.Page, q.PageSize, total),
	})
}

// Get returns one task.
func (h *TaskHandler) Get(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, taskView(t, h.now()))
}

// Create adds a task for the authenticated user.  A referenced category
// must belong to the user and supplies the default priority and estimate.
func (h *TaskHandler) Create(c echo.Context) error {
	var req createTaskReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	req.normalize()
	if req.Title == "" {
		return validation.New("title", "Task title is required")
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	now := h.now()
	if req.Deadline != nil && !req.Deadline.After(now) {
		return validation.New("deadline", "Deadline must be in the future")
	}

	uid := middleware.UserID(c)
	ctx, cancel := requestCtx(c)
	defer cancel()

	t := &model.Task{
		ID:          newID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      model.StatusPending,
		Priority:    req.Priority,
		UserID:      uid,
		AssignedTo:  req.AssignedTo,
		Deadline:    utcPtr(req.Deadline),
		StartDate:   utcPtr(req.StartDate),
		Tags:        req.Tags,
		Reminders:   reminders(req.Reminders),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, a := range req.Attachments {
		t.Attachments = append(t.Attachments, model.Attachment{
			FileName: a.FileName, FileURL: a.FileURL, FileSize: a.FileSize, UploadedAt: now,
		})
	}
	if t.StartDate == nil {
		ts := now
		t.StartDate = &ts
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.Progression != nil {
		t.Progression = *req.Progression
	}

	if req.Category != "" {
		cat, err := h.ownedCategory(ctx, req.Category, uid)
		if err != nil {
			return err
		}
		t.CategoryID = cat.ID
		if t.Priority == "" {
			t.Priority = cat.Settings.DefaultPriority
		}
		if req.EstimatedHours == nil {
			t.EstimatedHours = cat.Settings.DefaultEstimatedHours
		}
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	model.ApplyStatusTransition(t, req.Status, now)
	t.EnsureCollections()

	if err := h.Store.Tasks.Create(ctx, t); err != nil {
		return apperror.Internal("create task failed", err)
	}
	h.refreshCounts(ctx, uid, t.CategoryID)
	h.publish(ctx, taskEvent(queue.TaskCreated, t, "", now))

	return c.JSON(http.StatusCreated, taskView(t, now))
}

// Update applies a partial update and runs the status transition rules.
// Both the previous and the new category are recounted.
func (h *TaskHandler) Update(c echo.Context) error {
	var req updateTaskReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	oldCategory := t.CategoryID

	if req.Title != nil && *req.Title != "" {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil && *req.Priority != "" {
		t.Priority = *req.Priority
	}
	if req.AssignedTo != nil {
		t.AssignedTo = strings.TrimSpace(*req.AssignedTo)
	}
	if req.Deadline != nil {
		if !req.Deadline.After(now) && (t.Deadline == nil || !req.Deadline.Equal(*t.Deadline)) {
			return validation.New("deadline", "Deadline must be in the future")
		}
		t.Deadline = utcPtr(req.Deadline)
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.Tags != nil {
		t.Tags = req.Tags
	}
	if req.Reminders != nil {
		t.Reminders = reminders(req.Reminders)
	}
	if req.Progression != nil {
		t.Progression = *req.Progression
	}
	if req.Category != nil && *req.Category != t.CategoryID {
		if *req.Category != "" {
			cat, err := h.ownedCategory(ctx, *req.Category, t.UserID)
			if err != nil {
				return err
			}
			t.CategoryID = cat.ID
		} else {
			t.CategoryID = ""
		}
	}
	if req.Status != nil && *req.Status != "" {
		model.ApplyStatusTransition(t, *req.Status, now)
	}

	if err := h.save(ctx, t, now); err != nil {
		return err
	}
	h.refreshCounts(ctx, t.UserID, oldCategory, t.CategoryID)
	h.publish(ctx, taskEvent(queue.TaskUpdated, t, oldCategory, now))

	return c.JSON(http.StatusOK, taskView(t, now))
}

// Delete removes a task and recounts its category.
func (h *TaskHandler) Delete(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	if err := h.Store.Tasks.Delete(ctx, t.ID, t.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		return apperror.Internal("delete task failed", err)
	}
	now := h.now()
	h.refreshCounts(ctx, t.UserID, t.CategoryID)
	h.publish(ctx, taskEvent(queue.TaskDeleted, t, t.CategoryID, now))

	return c.JSON(http.StatusOK, echo.Map{
		"message":     "Task removed successfully",
		"deletedTask": echo.Map{"id": t.ID, "title": t.Title},
	})
}

// Overdue returns up to ten overdue tasks, earliest deadline first.
func (h *TaskHandler) Overdue(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	now := h.now()
	tasks, err := h.Store.Tasks.ListOverdue(ctx, middleware.UserID(c), now, overdueLimit)
	if err != nil {
		return apperror.Internal("list overdue tasks failed", err)
	}
	views := taskViews(tasks, now)
	return c.JSON(http.StatusOK, echo.Map{"tasks": views, "count": len(views)})
}

// Stats returns the rollup over the user's non-archived tasks.
func (h *TaskHandler) Stats(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	now := h.now()
	raw, err := h.Store.Tasks.UserStats(ctx, middleware.UserID(c), now)
	if err != nil {
		return apperror.Internal("compute task stats failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"stats": raw.Stats(), "generatedAt": now})
}

// AddComment appends a comment by the authenticated user.
func (h *TaskHandler) AddComment(c echo.Context) error {
	var req commentReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return validation.New("text", "Comment text is required")
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	comment := model.Comment{ID: newID(), UserID: middleware.UserID(c), Text: req.Text, CreatedAt: now}
	t.Comments = append(t.Comments, comment)
	if err := h.save(ctx, t, now); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Comment added successfully", "comment": comment})
}

// ToggleArchive flips the archive flag and recounts the category, since
// archived tasks are not counted.
func (h *TaskHandler) ToggleArchive(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	model.ApplyArchive(t, !t.IsArchived, now)
	if err := h.save(ctx, t, now); err != nil {
		return err
	}
	h.refreshCounts(ctx, t.UserID, t.CategoryID)
	h.publish(ctx, taskEvent(queue.TaskArchived, t, t.CategoryID, now))

	msg := "Task unarchived successfully"
	if t.IsArchived {
		msg = "Task archived successfully"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": msg,
		"task":    echo.Map{"id": t.ID, "title": t.Title, "isArchived": t.IsArchived},
	})
}

// AddSubtask appends an open subtask.
func (h *TaskHandler) AddSubtask(c echo.Context) error {
	var req subtaskReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return validation.New("title", "Subtask title is required")
	}
	if err := validation.Struct(&req); err != nil {
		return err
	}
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	t.Subtasks = append(t.Subtasks, model.Subtask{ID: newID(), Title: req.Title})
	if err := h.save(ctx, t, now); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Subtask added successfully", "task": taskView(t, now)})
}

// ToggleSubtask flips the completion of one subtask.
func (h *TaskHandler) ToggleSubtask(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	t, err := h.load(ctx, c)
	if err != nil {
		return err
	}
	now := h.now()
	if !model.ToggleSubtask(t, c.Param("subtaskId"), now) {
		return apperror.NotFound("Subtask not found")
	}
	if err := h.save(ctx, t, now); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Subtask updated successfully", "task": taskView(t, now)})
}

func (h *TaskHandler) load(ctx context.Context, c echo.Context) (*model.Task, error) {
	t, err := h.Store.Tasks.GetByIDAndOwner(ctx, c.Param("id"), middleware.UserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Task not found")
		}
		return nil, apperror.Internal("load task failed", err)
	}
	return t, nil
}

func (h *TaskHandler) save(ctx context.Context, t *model.Task, now time.Time) error {
	t.UpdatedAt = now
	t.EnsureCollections()
	if err := h.Store.Tasks.Update(ctx, t); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("Task not found")
		}
		return apperror.Internal("update task failed", err)
	}
	return nil
}

// ownedCategory loads a category of userID.  A foreign or missing category
// is a 400 because it is part of the request body.
func (h *TaskHandler) ownedCategory(ctx context.Context, id, userID string) (*model.Category, error) {
	cat, err := h.Store.Categories.GetByIDAndOwner(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.BadRequest("Category not found")
		}
		return nil, apperror.Internal("load category failed", err)
	}
	return cat, nil
}

func taskEvent(typ string, t *model.Task, oldCategory string, now time.Time) queue.TaskEvent {
	ev := queue.TaskEvent{
		Type:          typ,
		TaskID:        t.ID,
		UserID:        t.UserID,
		Title:         t.Title,
		Status:        string(t.Status),
		OldCategoryID: oldCategory,
		NewCategoryID: t.CategoryID,
		IsArchived:    t.IsArchived,
		OccurredAt:    now,
	}
	if typ == queue.TaskDeleted {
		ev.NewCategoryID = ""
	}
	return ev
}

func reminders(rs []reminderReq) []model.Reminder {
	out := make([]model.Reminder, 0, len(rs))
	for _, r := range rs {
		out = append(out, model.Reminder{Date: r.Date.UTC(), Message: strings.TrimSpace(r.Message)})
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
