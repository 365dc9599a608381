package handlers

import (
	"net/http"

	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/middleware"
	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UploadHandler stages row uploads for review
type UploadHandler struct {
	staging *service.StagingService
	log     *logger.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(c *container.Container) *UploadHandler {
	return &UploadHandler{
		staging: c.Staging,
		log:     c.Components.Logger,
	}
}

// StageUpload validates rows and stages them for a change request.
// Rows arrive already decoded; file parsing happens upstream.
// POST /api/v1/datasets/:id/uploads
func (h *UploadHandler) StageUpload(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Kind models.CRType `json:"kind"`
		Rows []models.Row  `json:"rows"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Kind != models.CRAppend && req.Kind != models.CREdit {
		return badRequest(c, "kind must be append or edit")
	}
	if len(req.Rows) == 0 {
		return badRequest(c, "rows array is required and cannot be empty")
	}

	upload, err := h.staging.Stage(ctx, datasetID, req.Kind, req.Rows, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, upload)
}
