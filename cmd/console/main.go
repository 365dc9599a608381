package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datacove/console/cmd/console/container"
	consolemiddleware "github.com/datacove/console/cmd/console/middleware"
	"github.com/datacove/console/cmd/console/routes"
	"github.com/datacove/console/common/bootstrap"
	"github.com/datacove/console/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, notifier)
	components, err := bootstrap.Setup(ctx, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap console: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e, components)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server
	startServer(e, components)
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(consolemiddleware.ExtractActor())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "console",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterDatasetRoutes(e, serviceContainer)
	routes.RegisterChangeRequestRoutes(e, serviceContainer)
	routes.RegisterVersionRoutes(e, serviceContainer)
	routes.RegisterAuditRoutes(e, serviceContainer)
}

// startServer runs the Echo handler behind the graceful-shutdown server
func startServer(e *echo.Echo, components *bootstrap.Components) {
	srv := server.New("console", components.Config.Service.Port, e, components.Logger)

	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
