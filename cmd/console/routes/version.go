package routes

import (
	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterVersionRoutes registers version history and time-travel routes
func RegisterVersionRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewVersionHandler(c)

	datasets := e.Group("/api/v1/datasets")
	{
		datasets.GET("/:id/versions", h.ListVersions)              // GET  /api/v1/datasets/:id/versions
		datasets.GET("/:id/calendar", h.GetCalendar)               // GET  /api/v1/datasets/:id/calendar
		datasets.GET("/:id/versions/:version", h.GetVersion)       // GET  /api/v1/datasets/:id/versions/:version
		datasets.POST("/:id/versions/:version/restore", h.Restore) // POST /api/v1/datasets/:id/versions/:version/restore
	}
}
