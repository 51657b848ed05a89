package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/dept-service/internal/api/http/handlers"
	"github.com/spec-kit/dept-service/internal/auth"
	"github.com/spec-kit/dept-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Departments    *handlers.DepartmentHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Every department route carries its own authority check.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Snapshot)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated(), cfg.Auth.Me)

	dept := app.Group("/dept", cfg.AuthMiddleware.Handle)
	dept.Get("/", auth.RequireAuthority(domain.AuthorityDeptQuery), cfg.Departments.Tree)
	dept.Get("/deptSelectTree", auth.RequireAuthenticated(), cfg.Departments.SelectTree)
	dept.Get("/:id", auth.RequireAuthority(domain.AuthorityDeptQuery), cfg.Departments.Get)
	dept.Post("/", auth.RequireAuthority(domain.AuthorityDeptAdd), cfg.Departments.Create)
	dept.Put("/", auth.RequireAuthority(domain.AuthorityDeptUpdate), cfg.Departments.Update)
	dept.Delete("/:ids", auth.RequireAuthority(domain.AuthorityDeptDelete), cfg.Departments.Delete)
}
