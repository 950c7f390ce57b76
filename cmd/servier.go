package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/Abraxas-365/auralis/pkg/config"
	"github.com/Abraxas-365/auralis/pkg/errx"
	"github.com/Abraxas-365/auralis/pkg/logx"
)

func main() {
	// 1. Initialize Logger
	switch getEnv("LOG_LEVEL", "info") {
	case "debug":
		logx.SetLevel(logx.LevelDebug)
	case "warn":
		logx.SetLevel(logx.LevelWarn)
	case "error":
		logx.SetLevel(logx.LevelError)
	default:
		logx.SetLevel(logx.LevelInfo)
	}

	logx.Info("🚀 Starting Auralis Transcription API...")

	// 2. Load Configuration and Build Container
	cfg := config.Load()
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 3. Create Fiber App
	app := fiber.New(fiber.Config{
		AppName:               "Auralis API",
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		BodyLimit:             int(cfg.Transcription.MaxUploadSize) + 1<<20, // uploads plus form overhead
		IdleTimeout:           120 * time.Second,
	})

	// 4. Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  getCORSOrigins(),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// 5. Health Check & Info Endpoints
	app.Get("/health", healthCheckHandler(container))
	app.Get("/", infoHandler)

	// 6. Register Routes
	container.AuthService.RegisterRoutes(app)
	logx.Info("✓ Auth routes registered")

	container.TranscriptHandlers.RegisterRoutes(app, container.AuthService.Middleware())
	logx.Info("✓ Transcript routes registered")

	// 7. 404 Handler
	app.Use(notFoundHandler)

	// 8. Start Workers and Server with Graceful Shutdown
	container.StartBackgroundServices()
	startServer(app, cfg)
}

// ============================================================================
// Handler Functions
// ============================================================================

// healthCheckHandler reports database, cache and worker pool health.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "auralis-api",
			"version": getEnv("APP_VERSION", "1.0.0"),
		}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["db_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		stats := container.JobPool.GetStats()
		health["jobs"] = fiber.Map{
			"running":      stats.IsRunning,
			"workers":      stats.Workers,
			"concurrency":  stats.Concurrency,
			"queue_length": stats.QueueLength,
			"processing":   stats.Processing,
		}
		if !stats.IsRunning {
			health["status"] = "degraded"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(health)
	}
}

// infoHandler returns basic API information
func infoHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service":     "Auralis API",
		"version":     getEnv("APP_VERSION", "1.0.0"),
		"description": "Audio transcription service with async processing",
		"endpoints": fiber.Map{
			"health":      "/health",
			"auth":        "/auth/*",
			"transcriptions": "/api/v1/transcriptions",
		},
	})
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"message":    "The requested endpoint does not exist",
		"request_id": c.Get("X-Request-ID"),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler converts internal errors to standard HTTP responses
func globalErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get("X-Request-ID"),
	}).Errorf("Request error: %v", err)

	// If it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		return c.Status(e.Code).JSON(fiber.Map{
			"error":      e.Message,
			"code":       "FIBER_ERROR",
			"status":     e.Code,
			"request_id": c.Get("X-Request-ID"),
		})
	}

	// If it's our custom errx.Error
	if e, ok := err.(*errx.Error); ok {
		response := fiber.Map{
			"error":      e.Message,
			"code":       e.Code,
			"type":       string(e.Type),
			"status":     e.HTTPStatus,
			"request_id": c.Get("X-Request-ID"),
		}

		if len(e.Details) > 0 {
			response["details"] = e.Details
		}

		if getEnv("DEBUG", "false") == "true" && e.Err != nil {
			response["underlying_error"] = e.Err.Error()
		}

		return c.Status(e.HTTPStatus).JSON(response)
	}

	// Default unknown error
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"type":       "INTERNAL",
		"code":       "INTERNAL_ERROR",
		"message":    "An unexpected error occurred",
		"request_id": c.Get("X-Request-ID"),
	})
}

// ============================================================================
// Utility Functions
// ============================================================================

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getCORSOrigins returns allowed CORS origins
func getCORSOrigins() string {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		return "*" // Default for development
	}
	return origins
}

// startServer starts the server with graceful shutdown
func startServer(app *fiber.App, cfg *config.Config) {
	go func() {
		logx.Infof("🚀 Server listening on port %d", cfg.App.Port)
		logx.Infof("💚 Health Check: http://localhost:%d/health", cfg.App.Port)

		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

// gracefulShutdown blocks until a termination signal, then drains the HTTP
// server. The container's Cleanup (deferred in main) stops the job pool so
// in-flight handlers finish before the process exits.
func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited successfully")
}
