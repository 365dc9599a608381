package handlers

import (
	"net/http"
	"strconv"

	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// AuditHandler serves the audit trail
type AuditHandler struct {
	audit *service.AuditService
	log   *logger.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(c *container.Container) *AuditHandler {
	return &AuditHandler{
		audit: c.AuditService,
		log:   c.Components.Logger,
	}
}

// ListEvents lists audit events for a dataset, newest first
// GET /api/v1/datasets/:id/audit?limit=50&offset=0&type=cr_merged
func (h *AuditHandler) ListEvents(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	typeFilter := models.AuditEventType(c.QueryParam("type"))

	events, total, err := h.audit.List(ctx, datasetID, limit, offset, typeFilter)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetEvent retrieves one audit event with its diff payload
// GET /api/v1/audit/:audit_id
func (h *AuditHandler) GetEvent(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("audit_id"))
	if err != nil {
		return badRequest(c, "invalid audit event id")
	}

	detail, err := h.audit.GetDetail(ctx, id)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, detail)
}
