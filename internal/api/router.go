package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/passbi/passbi_topology/internal/logger"
	"github.com/passbi/passbi_topology/internal/middleware"
)

// AppOptions configures the HTTP application
type AppOptions struct {
	// RateLimiter backs the export rate limit; nil disables it
	RateLimiter        middleware.Counter
	RateLimitPerMinute int
	AccessLog          bool
}

// NewApp creates the fiber application with every route registered
func NewApp(h *Handlers, opts AppOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "PassBI Topology API",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
	}))

	Register(app, h, opts)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "endpoint not found",
		})
	})

	return app
}

// Register mounts the topology routes on app
func Register(app *fiber.App, h *Handlers, opts AppOptions) {
	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Get("/stations", h.Stations)
	v1.Get("/stations/:id", h.Station)
	v1.Get("/connections", h.Connections)
	v1.Get("/routes", h.Routes)
	v1.Get("/routes/:id/servings", h.RouteServings)
	v1.Get("/path", h.Path)

	exports := v1.Group("/export", middleware.RateLimitMiddleware(opts.RateLimiter, opts.RateLimitPerMinute))
	exports.Get("/graphml", h.ExportGraphML)
	exports.Get("/cypher", h.ExportCypher)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "err", err)

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
