package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
)

// ValidID answers 404 "Invalid id: <value>" when a named path parameter is
// not a UUID.  With no names it checks "id".
func ValidID(params ...string) echo.MiddlewareFunc {
	if len(params) == 0 {
		params = []string{"id"}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, p := range params {
				v := c.Param(p)
				if _, err := uuid.Parse(v); err != nil {
					return apperror.NotFound("Invalid id: " + v)
				}
			}
			return next(c)
		}
	}
}
