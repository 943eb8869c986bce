// Package router assembles the Echo server: global middleware, the error
// handler, the JSON codec and every route of the API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/handler"
	"github.com/iliyamo/task-management-api/internal/middleware"
)

// Options carries what New needs besides the handler dependencies.  A nil
// Redis client disables the response cache and the rate limiter.
type Options struct {
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// New builds the server for d.
func New(d handler.Deps, o Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = SonicSerializer{}
	e.HTTPErrorHandler = handler.ErrorHandler(d.Cfg.Debug || !d.Cfg.IsProduction(), d.Log)

	e.Use(
		middleware.RequestIDMiddleware(),
		middleware.Tracing(),
		middleware.RequestLogger(d.Log),
		echomw.Recover(),
		echomw.CORSWithConfig(echomw.CORSConfig{AllowCredentials: true}),
		middleware.NewTokenBucket(o.RateLimit, o.Redis, d.Log),
	)

	auth := middleware.JWTAuth(d.Cfg.JWTSecret, d.Store.Users)
	cache := middleware.NewRedisCache(o.Cache, o.Redis, d.Log)

	api := e.Group("/api")
	RegisterRoutes(e, api, handler.NewMetaHandler(d))
	RegisterUsers(api, handler.NewAuthHandler(d), handler.NewUserHandler(d), auth, cache)
	RegisterTasks(api, handler.NewTaskHandler(d), auth, cache)
	RegisterCategories(api, handler.NewCategoryHandler(d), auth, cache)
	return e
}

// RegisterRoutes registers the routes that need no authentication.
func RegisterRoutes(e *echo.Echo, api *echo.Group, h *handler.MetaHandler) {
	e.GET("/health", h.Health)
	api.GET("/health", h.Health)
	api.GET("", h.Index)
}

// RegisterUsers registers the auth endpoints, the profile endpoints and the
// admin user management under /api/users.
func RegisterUsers(api *echo.Group, a *handler.AuthHandler, h *handler.UserHandler, auth, cache echo.MiddlewareFunc) {
	g := api.Group("/users")
	g.POST("", a.Register)
	g.POST("/auth", a.Login)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)

	g.GET("/profile", h.GetProfile, auth, cache)
	g.PUT("/profile", h.UpdateProfile, auth, cache)
	g.PUT("/preferences", h.UpdatePreferences, auth, cache)
	g.GET("/stats", h.Stats, auth, cache)
	g.GET("/avatar-variations", h.AvatarVariations, auth, cache)

	admin := middleware.RequireAdmin()
	byID := []echo.MiddlewareFunc{auth, admin, middleware.ValidID(), cache}
	g.GET("", h.List, auth, admin, cache)
	g.GET("/:id", h.Get, byID...)
	g.PUT("/:id", h.Update, byID...)
	g.DELETE("/:id", h.Delete, byID...)
	g.PUT("/:id/activate", h.Activate, byID...)
}

// RegisterTasks registers the task endpoints under /api/tasks.
func RegisterTasks(api *echo.Group, h *handler.TaskHandler, auth, cache echo.MiddlewareFunc) {
	g := api.Group("/tasks", auth, cache)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/overdue", h.Overdue)
	g.GET("/stats", h.Stats)

	id := middleware.ValidID()
	g.GET("/:id", h.Get, id)
	g.PUT("/:id", h.Update, id)
	g.DELETE("/:id", h.Delete, id)
	g.POST("/:id/comments", h.AddComment, id)
	g.PUT("/:id/archive", h.ToggleArchive, id)
	g.POST("/:id/subtasks", h.AddSubtask, id)
	g.PUT("/:id/subtasks/:subtaskId/toggle", h.ToggleSubtask, middleware.ValidID("id", "subtaskId"))
}

// RegisterCategories registers the category endpoints under /api/categories.
func RegisterCategories(api *echo.Group, h *handler.CategoryHandler, auth, cache echo.MiddlewareFunc) {
	g := api.Group("/categories", auth, cache)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/create-defaults", h.CreateDefaults)

	id := middleware.ValidID()
	g.GET("/:id", h.Get, id)
	g.PUT("/:id", h.Update, id)
	g.DELETE("/:id", h.Delete, id)
	g.GET("/:id/stats", h.Stats, id)
	g.GET("/:id/tasks", h.Tasks, id)
	g.PUT("/:id/update-count", h.UpdateCount, id)
	g.PUT("/:id/toggle-active", h.ToggleActive, id)
}
