package server

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/archivehub/archivehub/internal/controllers"
	"github.com/archivehub/archivehub/internal/version"
)

type HTTPServerDependencies struct {
	ArchiveController *controllers.ArchiveController

	// BodyLimit caps the accepted request body in bytes. Zero keeps the
	// fiber default, which is far below a useful upload size.
	BodyLimit int64
}

func NewHTTPServer(deps HTTPServerDependencies) *fiber.App {
	config := fiber.Config{
		AppName: "archivehub",

		// Uploads are passed to the storage layer as a stream so large
		// files do not have to fit in memory.
		StreamRequestBody: true,
	}
	if deps.BodyLimit > 0 {
		config.BodyLimit = int(deps.BodyLimit)
	}

	router := fiber.New(config)

	router.Use(cors.New())
	router.Use(logger.New())

	// Health check endpoint (no authentication required)
	router.Get("/health", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":    "healthy",
			"service":   "archivehub",
			"version":   version.GetVersion(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	router.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := router.Group("/api")

	api.Get("/", deps.ArchiveController.Dispatch)
	api.Post("/", deps.ArchiveController.Dispatch)
	api.Delete("/", deps.ArchiveController.Dispatch)

	return router
}
