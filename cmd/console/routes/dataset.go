package routes

import (
	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/handlers"
	"github.com/labstack/echo/v4"
)

// RegisterDatasetRoutes registers dataset lifecycle and schema/rule routes
func RegisterDatasetRoutes(e *echo.Echo, c *container.Container) {
	h := handlers.NewDatasetHandler(c)
	u := handlers.NewUploadHandler(c)

	projects := e.Group("/api/v1/projects")
	{
		projects.POST("/:project_id/datasets", h.CreateDataset) // POST /api/v1/projects/:project_id/datasets
		projects.GET("/:project_id/datasets", h.ListDatasets)   // GET  /api/v1/projects/:project_id/datasets
	}

	datasets := e.Group("/api/v1/datasets")
	{
		datasets.GET("/:id", h.GetDataset)           // GET   /api/v1/datasets/:id
		datasets.PATCH("/:id/schema", h.PatchSchema) // PATCH /api/v1/datasets/:id/schema
		datasets.PUT("/:id/rules", h.PutRules)       // PUT   /api/v1/datasets/:id/rules
		datasets.POST("/:id/uploads", u.StageUpload) // POST  /api/v1/datasets/:id/uploads
	}
}
