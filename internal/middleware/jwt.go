package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/utils"
)

// CookieName is the cookie carrying the access token.
const CookieName = "jwt"

// tokenFrom prefers the jwt cookie and falls back to a Bearer header.
func tokenFrom(c echo.Context) string {
	if ck, err := c.Cookie(CookieName); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// JWTAuth verifies the access token, loads its user and rejects deactivated
// accounts.  The user, its id and its role are stored on the context.  The
// role comes from the stored user so demotions apply immediately.
func JWTAuth(secret string, users repository.UserStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := tokenFrom(c)
			if raw == "" {
				return apperror.Unauthorized("Not authorized, no token provided")
			}
			sub, _, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return apperror.Unauthorized("Not authorized, token failed")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			u, err := users.GetByID(ctx, sub)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return apperror.Unauthorized("Not authorized, user not found")
				}
				return apperror.Internal("failed to load user", err)
			}
			if !u.IsActive {
				return apperror.Unauthorized("Account has been deactivated")
			}

			c.Set(KeyUser, u)
			c.Set(KeyUserID, u.ID)
			c.Set(KeyRole, u.Role())
			return next(c)
		}
	}
}
