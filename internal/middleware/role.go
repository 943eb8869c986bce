package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/model"
)

// RequireRole rejects requests whose role, set by JWTAuth, is not one of
// roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(KeyRole).(string)
			if !allowed[role] {
				return apperror.Forbidden("Not authorized as an admin")
			}
			return next(c)
		}
	}
}

// RequireAdmin allows active administrators only.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(model.RoleAdmin)
}
