package routes

import (
	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterChangeRequestRoutes registers the review workflow routes
func RegisterChangeRequestRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewChangeRequestHandler(c)

	datasets := e.Group("/api/v1/datasets")
	{
		datasets.POST("/:id/change-requests", h.Submit) // POST /api/v1/datasets/:id/change-requests
		datasets.GET("/:id/change-requests", h.List)    // GET  /api/v1/datasets/:id/change-requests
	}

	crs := e.Group("/api/v1/change-requests")
	{
		crs.GET("/:cr_id", h.Get)                        // GET  /api/v1/change-requests/:cr_id
		crs.POST("/:cr_id/reviewers", h.AssignReviewers) // POST /api/v1/change-requests/:cr_id/reviewers
		crs.POST("/:cr_id/approve", h.Approve)           // POST /api/v1/change-requests/:cr_id/approve
		crs.POST("/:cr_id/reject", h.Reject)             // POST /api/v1/change-requests/:cr_id/reject
		crs.POST("/:cr_id/withdraw", h.Withdraw)         // POST /api/v1/change-requests/:cr_id/withdraw
	}
}
