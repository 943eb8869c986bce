// Package middleware holds the Echo middleware of the API: authentication,
// authorization, caching, rate limiting and request instrumentation.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/model"
)

// Context keys shared by middleware and handlers.
const (
	KeyUser      = "user"
	KeyUserID    = "user_id"
	KeyRole      = "role"
	KeyRequestID = "request_id"
)

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(KeyUser).(*model.User)
	return u
}

// UserID returns the authenticated user's id or "".
func UserID(c echo.Context) string {
	id, _ := c.Get(KeyUserID).(string)
	return id
}

// RequestID returns the id assigned by RequestID, or "".
func RequestID(c echo.Context) string {
	id, _ := c.Get(KeyRequestID).(string)
	return id
}
