package routes

import (
	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterAuditRoutes registers the audit trail routes
func RegisterAuditRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewAuditHandler(c)

	e.GET("/api/v1/datasets/:id/audit", h.ListEvents) // GET /api/v1/datasets/:id/audit
	e.GET("/api/v1/audit/:audit_id", h.GetEvent)      // GET /api/v1/audit/:audit_id
}
