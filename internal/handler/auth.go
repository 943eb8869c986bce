package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-management-api/internal/apperror"
	"github.com/iliyamo/task-management-api/internal/avatar"
	"github.com/iliyamo/task-management-api/internal/middleware"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/utils"
	"github.com/iliyamo/task-management-api/internal/validation"
)

// AuthHandler serves registration, login, logout and token refresh.
type AuthHandler struct{ Deps }

func NewAuthHandler(d Deps) *AuthHandler { return &AuthHandler{Deps: d} }

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

func (r *registerReq) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = model.NormalizeEmail(r.Email)
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *loginReq) normalize() { r.Email = model.NormalizeEmail(r.Email) }

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type authResp struct {
	*model.User
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

type tokenResp struct {
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates an account and signs the new user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if _, err := h.Store.Users.GetByEmail(ctx, req.Email); err == nil {
		return apperror.BadRequest("User already exists")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperror.Internal("lookup user failed", err)
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if err != nil {
		return apperror.Internal("hash password failed", err)
	}
	now := h.now()
	u := &model.User{
		ID:           newID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Avatar:       avatar.Resolve(req.Avatar, req.Name, "light"),
		IsActive:     true,
		Preferences:  model.DefaultPreferences(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.Store.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return apperror.BadRequest("User already exists")
		}
		return apperror.Internal("create user failed", err)
	}

	pair, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResp{User: u, Access: pair.Access, Refresh: pair.Refresh})
}

// Login verifies the credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	u, err := h.Store.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized("Invalid email or password")
		}
		return apperror.Internal("lookup user failed", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperror.Unauthorized("Invalid email or password")
	}
	if !u.IsActive {
		return apperror.Unauthorized("Account has been deactivated")
	}

	now := h.now()
	if err := h.Store.Users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return apperror.Internal("update last login failed", err)
	}
	u.LastLogin = &now

	pair, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResp{User: u, Access: pair.Access, Refresh: pair.Refresh})
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequest("Invalid request body")
	}
	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		return validation.New("refresh_token", "The field 'refresh_token' is required.")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	hash := utils.HashRefreshRaw(req.RefreshToken)
	uid, err := h.Store.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized("Invalid refresh token")
		}
		return apperror.Internal("validate refresh token failed", err)
	}
	u, err := h.Store.Users.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.Unauthorized("Invalid refresh token")
		}
		return apperror.Internal("lookup user failed", err)
	}
	if !u.IsActive {
		return apperror.Unauthorized("Account has been deactivated")
	}
	if err := h.Store.Tokens.RevokeByHash(ctx, hash); err != nil {
		return apperror.Internal("revoke refresh token failed", err)
	}

	pair, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pair)
}

// Logout clears the cookie.  A refresh token in the body is revoked; without
// one, every refresh token of the cookie's user is revoked.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)

	ctx, cancel := requestCtx(c)
	defer cancel()

	if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
		if err := h.Store.Tokens.RevokeByHash(ctx, utils.HashRefreshRaw(raw)); err != nil {
			return apperror.Internal("revoke refresh token failed", err)
		}
	} else if ck, err := c.Cookie(middleware.CookieName); err == nil && ck.Value != "" {
		if uid, _, err := utils.ParseAccessToken(h.Cfg.JWTSecret, ck.Value); err == nil {
			if err := h.Store.Tokens.RevokeAllForUser(ctx, uid); err != nil {
				return apperror.Internal("revoke refresh tokens failed", err)
			}
		}
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// issue creates an access and refresh token for u, stores the refresh hash
// and sets the access token cookie.
func (h *AuthHandler) issue(c echo.Context, u *model.User) (tokenResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role(), h.Cfg.AccessTTLMin)
	if err != nil {
		return tokenResp{}, apperror.Internal("issue access token failed", err)
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return tokenResp{}, apperror.Internal("issue refresh token failed", err)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Store.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return tokenResp{}, apperror.Internal("save refresh token failed", err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    access.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		Expires:  access.Exp,
	})
	return tokenResp{
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
