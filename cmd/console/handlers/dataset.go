package handlers

import (
	"io"
	"net/http"

	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/middleware"
	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DatasetHandler handles dataset lifecycle and schema/rule editing
type DatasetHandler struct {
	versioning *service.VersioningService
	schema     *service.SchemaService
	log        *logger.Logger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(c *container.Container) *DatasetHandler {
	return &DatasetHandler{
		versioning: c.Versioning,
		schema:     c.Schema,
		log:        c.Components.Logger,
	}
}

// CreateDataset creates a dataset and commits version 0
// POST /api/v1/projects/:project_id/datasets
func (h *DatasetHandler) CreateDataset(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		return badRequest(c, "invalid project_id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Name   string               `json:"name"`
		Schema models.Schema        `json:"schema"`
		Rules  models.RuleSet       `json:"rules"`
		Table  *models.TablePayload `json:"table"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Name == "" {
		return badRequest(c, "name is required")
	}

	ds, err := h.versioning.CreateDataset(ctx, projectID, req.Name, req.Schema, req.Rules, req.Table, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, ds)
}

// ListDatasets lists the datasets of a project
// GET /api/v1/projects/:project_id/datasets
func (h *DatasetHandler) ListDatasets(c echo.Context) error {
	ctx := c.Request().Context()

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		return badRequest(c, "invalid project_id")
	}

	datasets, err := h.versioning.ListDatasets(ctx, projectID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"datasets": datasets,
		"count":    len(datasets),
	})
}

// GetDataset retrieves a dataset
// GET /api/v1/datasets/:id
func (h *DatasetHandler) GetDataset(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	ds, err := h.versioning.GetDataset(ctx, id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, ds)
}

// PatchSchema applies an RFC 6902 patch to the dataset schema
// PATCH /api/v1/datasets/:id/schema
func (h *DatasetHandler) PatchSchema(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	patchJSON, err := io.ReadAll(c.Request().Body)
	if err != nil || len(patchJSON) == 0 {
		return badRequest(c, "patch document is required")
	}

	ds, err := h.schema.UpdateSchema(ctx, id, patchJSON, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, ds)
}

// PutRules replaces the dataset rule set
// PUT /api/v1/datasets/:id/rules
func (h *DatasetHandler) PutRules(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		Rules models.RuleSet `json:"rules"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ds, err := h.schema.UpdateRules(ctx, id, req.Rules, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, ds)
}
