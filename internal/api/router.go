package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/visage-id/visage/internal/api/docs"
	"github.com/visage-id/visage/internal/api/handler"
	"github.com/visage-id/visage/internal/api/middleware"
	"github.com/visage-id/visage/internal/batch"
	"github.com/visage-id/visage/internal/cache"
	"github.com/visage-id/visage/internal/index"
	"github.com/visage-id/visage/internal/metrics"
	"github.com/visage-id/visage/internal/recognizer"
	"github.com/visage-id/visage/internal/vision"
)

// Dependencies carries the components built at startup. The router wires
// them to routes but does not own their lifecycles.
type Dependencies struct {
	Recognizer *recognizer.Recognizer
	Batch      *batch.Engine
	Index      *index.Index
	Cache      cache.ResultCache
	Provider   vision.Provider
	Metrics    *metrics.Metrics
	Registry   *prometheus.Registry
	DB         *pgxpool.Pool
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Visage API",
		// Base64 bodies inflate the 10MB image cap by a third.
		BodyLimit: 15 * 1024 * 1024,
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(middleware.Recover(r.logger))
	if r.deps != nil && r.deps.Metrics != nil {
		r.app.Use(r.deps.Metrics.Middleware())
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	// Only configure service routes if dependencies were provided
	if r.deps == nil {
		return
	}

	// Health endpoints
	healthHandler := handler.NewHealthHandler(r.deps.DB, r.deps.Cache, r.deps.Index, r.deps.Provider, r.logger)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/health/detailed", healthHandler.Detailed)

	// Prometheus exposition
	r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(r.deps.Registry, promhttp.HandlerOpts{})))

	recognitionHandler := handler.NewRecognitionHandler(r.deps.Recognizer, r.logger)
	batchHandler := handler.NewBatchHandler(r.deps.Batch, r.logger)
	adminHandler := handler.NewAdminHandler(r.deps.Recognizer, r.deps.Index, r.logger)

	recognition := r.app.Group("/recognition")

	// Core pipeline routes
	recognition.Post("/register", recognitionHandler.Register)
	recognition.Post("/recognize", recognitionHandler.Recognize)
	recognition.Put("/update", recognitionHandler.Update)

	// Batch routes
	recognition.Post("/batch", batchHandler.Create)
	recognition.Get("/batch", batchHandler.List)
	recognition.Get("/batch/:jobId", batchHandler.Get)

	// Index maintenance
	recognition.Post("/index/rebuild", adminHandler.RebuildIndex)
	recognition.Get("/index/stats", adminHandler.IndexStats)

	// Operational routes
	recognition.Get("/stats", adminHandler.Stats)
	recognition.Get("/settings", adminHandler.GetSettings)
	recognition.Put("/settings", adminHandler.UpdateSettings)
	recognition.Get("/logs", adminHandler.Logs)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}

// ShutdownWithTimeout closes the listener and waits up to d for in-flight
// requests before forcing connections closed.
func (r *Router) ShutdownWithTimeout(d time.Duration) error {
	return r.app.ShutdownWithTimeout(d)
}
