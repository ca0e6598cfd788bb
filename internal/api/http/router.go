package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/http/handlers"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Incidents      *handlers.IncidentsHandler
	Comments       *handlers.CommentsHandler
	Categories     *handlers.CategoriesHandler
	Priorities     *handlers.PrioritiesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	supportOnly := auth.RequireRole(domain.RoleSupport, domain.RoleAdmin)
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	incidents := app.Group("/incidents", cfg.AuthMiddleware.Handle, auth.RequireRole())
	incidents.Get("/stats", cfg.Incidents.Stats)
	incidents.Get("/", cfg.Incidents.List)
	incidents.Post("/", cfg.Incidents.Create)
	incidents.Get("/:id", cfg.Incidents.Get)
	incidents.Patch("/:id", supportOnly, cfg.Incidents.Update)
	incidents.Delete("/:id", adminOnly, cfg.Incidents.Delete)
	incidents.Post("/:id/status", supportOnly, cfg.Incidents.ChangeStatus)
	incidents.Post("/:id/assign", supportOnly, cfg.Incidents.Assign)
	incidents.Get("/:id/comments", cfg.Comments.List)
	incidents.Post("/:id/comments", cfg.Comments.Create)

	categories := app.Group("/categories", cfg.AuthMiddleware.Handle, auth.RequireRole())
	categories.Get("/", cfg.Categories.List)
	categories.Get("/:id", cfg.Categories.Get)
	categories.Post("/", adminOnly, cfg.Categories.Create)
	categories.Patch("/:id", adminOnly, cfg.Categories.Update)
	categories.Delete("/:id", adminOnly, cfg.Categories.Delete)

	priorities := app.Group("/priorities", cfg.AuthMiddleware.Handle, auth.RequireRole())
	priorities.Get("/", cfg.Priorities.List)
	priorities.Get("/:id", cfg.Priorities.Get)
	priorities.Post("/", adminOnly, cfg.Priorities.Create)
	priorities.Patch("/:id", adminOnly, cfg.Priorities.Update)
	priorities.Delete("/:id", adminOnly, cfg.Priorities.Delete)
}
