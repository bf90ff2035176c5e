package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/http/handlers"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Complaints     *handlers.ComplaintsHandler
	Officer        *handlers.OfficerHandler
	Admin          *handlers.AdminHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    fiber.Handler
	Metrics        fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", cfg.Metrics)
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/password/reset/request", cfg.Auth.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Auth.ConfirmPasswordReset)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	authProtected.Post("/password/change", cfg.Auth.ChangePassword)
	authProtected.Post("/logout", cfg.Auth.Logout)

	citizen := app.Group("/complaints", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleCitizen))
	if cfg.RateLimiter != nil {
		citizen.Post("", cfg.RateLimiter, cfg.Complaints.Create)
	} else {
		citizen.Post("", cfg.Complaints.Create)
	}
	citizen.Get("", cfg.Complaints.List)
	citizen.Get("/:id", cfg.Complaints.Get)
	citizen.Post("/:id/close", cfg.Complaints.Close)

	officer := app.Group("/officer/complaints", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleOfficer))
	officer.Get("", cfg.Officer.List)
	officer.Get("/:id", cfg.Officer.Get)
	officer.Post("/:id/accept", cfg.Officer.Accept)
	officer.Post("/:id/resolve", cfg.Officer.Resolve)
	officer.Post("/:id/send-back", cfg.Officer.SendBack)
	officer.Post("/:id/reject", cfg.Officer.Reject)
	officer.Post("/:id/comments", cfg.Officer.AddComment)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/complaints", cfg.Admin.ListComplaints)
	admin.Get("/complaints/:id", cfg.Admin.GetComplaint)
	admin.Post("/complaints/:id/assign", cfg.Admin.AssignComplaint)
	admin.Post("/complaints/:id/status", cfg.Admin.OverrideStatus)
	admin.Post("/complaints/:id/comments", cfg.Admin.AddComment)
	admin.Get("/complaints/:id/audit", cfg.Admin.ListComplaintAudit)
	admin.Get("/audit", cfg.Admin.ListRecentAudit)
	admin.Post("/users", cfg.Admin.ProvisionUser)
	admin.Get("/users", cfg.Admin.ListUsers)
	admin.Get("/users/officers", cfg.Admin.ListOfficers)
	admin.Patch("/users/:id/active", cfg.Admin.SetUserActive)
	admin.Get("/stats/dashboard", cfg.Admin.Dashboard)

	inbox := app.Group("/notifications", cfg.AuthMiddleware.Handle, auth.RequireRole())
	inbox.Get("", cfg.Notifications.List)
	inbox.Get("/unread-count", cfg.Notifications.UnreadCount)
	inbox.Post("/:id/read", cfg.Notifications.MarkRead)
	inbox.Post("/read-all", cfg.Notifications.MarkAllRead)
}
