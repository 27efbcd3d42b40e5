package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/chatcommerce/commerce-service/internal/api/http/handlers"
	"github.com/chatcommerce/commerce-service/internal/auth"
	"github.com/chatcommerce/commerce-service/internal/domain"
	"github.com/chatcommerce/commerce-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Products       *handlers.ProductsHandler
	Orders         *handlers.OrdersHandler
	CrmTickets     *handlers.CrmTicketsHandler
	Agents         *handlers.AgentsHandler
	Sweeps         *handlers.SweepsHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	// Group middleware covers the whole prefix; narrower role checks sit on routes.
	vendor := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	owner := auth.RequireRole(domain.RoleVendor, domain.RoleService)

	vendor.Get("/products", cfg.Products.List)
	vendor.Post("/products", cfg.Products.Create)
	vendor.Get("/products/:id", cfg.Products.Get)
	vendor.Put("/products/:id", cfg.Products.Update)
	vendor.Put("/products/:id/stock", cfg.Products.AdjustStock)

	vendor.Post("/orders/validate", cfg.Orders.Validate)
	vendor.Post("/orders", cfg.Orders.Create)
	vendor.Get("/orders", cfg.Orders.List)
	vendor.Get("/orders/:id", cfg.Orders.Get)
	vendor.Get("/orders/:id/audit", cfg.Orders.Audit)
	vendor.Post("/orders/:id/cancel", cfg.Orders.Cancel)
	vendor.Post("/orders/:id/payment/validate", cfg.Orders.ValidatePayment)
	vendor.Post("/orders/:id/payment", cfg.Orders.ConfirmPayment)

	crm := vendor.Group("/crm")
	crm.Post("/tickets", cfg.CrmTickets.Create)
	crm.Get("/tickets", cfg.CrmTickets.List)
	crm.Get("/tickets/:id", cfg.CrmTickets.Get)
	crm.Get("/tickets/:id/history", cfg.CrmTickets.History)
	crm.Post("/tickets/:id/assign", cfg.CrmTickets.Assign)
	crm.Post("/tickets/:id/status", cfg.CrmTickets.Transition)
	crm.Post("/tickets/:id/comments", cfg.CrmTickets.Comment)
	crm.Post("/escalations/run", cfg.CrmTickets.RunEscalations)
	crm.Get("/sla-policies", cfg.CrmTickets.ListPolicies)
	crm.Put("/sla-policies/:module", owner, cfg.CrmTickets.UpsertPolicy)
	crm.Get("/agents", cfg.Agents.List)
	crm.Post("/agents", owner, cfg.Agents.Create)
	crm.Patch("/agents/:id", owner, cfg.Agents.Update)

	vendor.Group("/webhooks", auth.RequireService()).Post("/payments", cfg.Orders.PaymentWebhook)
	vendor.Group("/internal", auth.RequireService()).Post("/sweeps/run", cfg.Sweeps.Run)
}
