package handlers

import (
	"net/http"
	"strconv"

	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/middleware"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// VersionHandler serves version history, time-travel reads and restore
type VersionHandler struct {
	versioning *service.VersioningService
	log        *logger.Logger
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(c *container.Container) *VersionHandler {
	return &VersionHandler{
		versioning: c.Versioning,
		log:        c.Components.Logger,
	}
}

// ListVersions lists the version history, newest first
// GET /api/v1/datasets/:id/versions
func (h *VersionHandler) ListVersions(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	versions, err := h.versioning.ListVersions(ctx, datasetID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions": versions,
		"count":    len(versions),
	})
}

// GetCalendar buckets version history by calendar day
// GET /api/v1/datasets/:id/calendar
func (h *VersionHandler) GetCalendar(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	calendar, err := h.versioning.GetCalendar(ctx, datasetID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"calendar": calendar,
	})
}

// GetVersion reads one historical snapshot with row pagination
// GET /api/v1/datasets/:id/versions/:version?limit=100&offset=0
func (h *VersionHandler) GetVersion(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	number, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		return writeError(c, h.log, apperrors.Wrap(apperrors.ErrVersionNotFound, "version %q", c.Param("version")))
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	page, err := h.versioning.GetVersionData(ctx, datasetID, number, limit, offset)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, page)
}

// Restore commits a historical version's contents as a new head version
// POST /api/v1/datasets/:id/versions/:version/restore
func (h *VersionHandler) Restore(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	target, err := strconv.ParseInt(c.Param("version"), 10, 64)
	if err != nil {
		return writeError(c, h.log, apperrors.Wrap(apperrors.ErrVersionNotFound, "version %q", c.Param("version")))
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	v, err := h.versioning.Restore(ctx, datasetID, target, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, v)
}
