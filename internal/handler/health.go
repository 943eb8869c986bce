package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetaHandler serves the health check and the endpoint index.
type MetaHandler struct{ Deps }

func NewMetaHandler(d Deps) *MetaHandler { return &MetaHandler{Deps: d} }

// Health is used by load balancers and monitoring to verify the service
// is running.
func (h *MetaHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":      "OK",
		"message":     "Task Management API is running",
		"timestamp":   h.now(),
		"environment": h.Cfg.Env,
	})
}

// Index lists the endpoint groups of the API.
func (h *MetaHandler) Index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message": "Task Management API",
		"version": "1.0.0",
		"endpoints": echo.Map{
			"users": echo.Map{
				"register":         "POST /api/users",
				"login":            "POST /api/users/auth",
				"logout":           "POST /api/users/logout",
				"refresh":          "POST /api/users/refresh",
				"profile":          "GET|PUT /api/users/profile",
				"preferences":      "PUT /api/users/preferences",
				"stats":            "GET /api/users/stats",
				"avatarVariations": "GET /api/users/avatar-variations",
				"admin":            "GET /api/users, GET|PUT|DELETE /api/users/:id, PUT /api/users/:id/activate",
			},
			"tasks": echo.Map{
				"list":     "GET /api/tasks",
				"create":   "POST /api/tasks",
				"item":     "GET|PUT|DELETE /api/tasks/:id",
				"overdue":  "GET /api/tasks/overdue",
				"stats":    "GET /api/tasks/stats",
				"comments": "POST /api/tasks/:id/comments",
				"archive":  "PUT /api/tasks/:id/archive",
				"subtasks": "POST /api/tasks/:id/subtasks, PUT /api/tasks/:id/subtasks/:subtaskId/toggle",
			},
			"categories": echo.Map{
				"list":           "GET /api/categories",
				"create":         "POST /api/categories",
				"createDefaults": "POST /api/categories/create-defaults",
				"item":           "GET|PUT|DELETE /api/categories/:id",
				"stats":          "GET /api/categories/:id/stats",
				"tasks":          "GET /api/categories/:id/tasks",
				"updateCount":    "PUT /api/categories/:id/update-count",
				"toggleActive":   "PUT /api/categories/:id/toggle-active",
			},
			"health": "GET /api/health",
		},
	})
}
