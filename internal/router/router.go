package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/AlfRonDon/neurareport/internal/bus"
	"github.com/AlfRonDon/neurareport/internal/cache"
	"github.com/AlfRonDon/neurareport/internal/config"
	"github.com/AlfRonDon/neurareport/internal/handlers"
	"github.com/AlfRonDon/neurareport/internal/logging"
	"github.com/AlfRonDon/neurareport/internal/middleware"
	"github.com/AlfRonDon/neurareport/internal/registry"
	"github.com/AlfRonDon/neurareport/internal/services"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, reg registry.Manager,
	client services.BatchDiscoverer, store *cache.Store, pub bus.Publisher, cfg config.Config,
) *handlers.Handler {
	h := handlers.New(logger, reg, client, store, pub, cfg.Jobs.Subject)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// API key authentication middleware
	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", authMiddleware)

	// Template Registry Routes
	v1.Post("/templates", h.CreateTemplate)
	v1.Get("/templates", h.ListTemplates)
	v1.Get("/templates/:template_id", h.GetTemplate)
	v1.Delete("/templates/:template_id", h.DeleteTemplate)

	// Connection Registry Routes
	v1.Post("/connections", h.CreateConnection)
	v1.Get("/connections", h.ListConnections)
	v1.Delete("/connections/:connection_id", h.DeleteConnection)

	// Discovery Routes
	v1.Post("/discovery/run", h.RunDiscovery)
	v1.Get("/discovery/results", h.DiscoveryResults)
	v1.Get("/discovery/results/:template_id", h.DiscoveryResult)
	v1.Post("/discovery/results/:template_id/selection", h.ToggleSelection)
	v1.Post("/discovery/results/:template_id/resample", h.ApplyResample)
	v1.Delete("/discovery/results", h.ClearDiscovery)

	// Report Generation Routes
	v1.Post("/reports/generate", h.Generate)

	// Admin Routes (protected by API key)
	admin := app.Group("/admin", authMiddleware)
	admin.Get("/cache/stats", h.CacheStats)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, reg registry.Manager, client services.BatchDiscoverer,
	store *cache.Store, pub bus.Publisher, cfg config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "NeuraReport Discovery",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, reg, client, store, pub, cfg)

	return app
}
