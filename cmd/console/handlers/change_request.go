package handlers

import (
	"context"
	"net/http"

	"github.com/datacove/console/cmd/console/container"
	"github.com/datacove/console/cmd/console/middleware"
	"github.com/datacove/console/cmd/console/models"
	"github.com/datacove/console/cmd/console/service"
	"github.com/datacove/console/common/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ChangeRequestHandler handles the review workflow endpoints
type ChangeRequestHandler struct {
	changes *service.ChangeRequestService
	log     *logger.Logger
}

// NewChangeRequestHandler creates a new change request handler
func NewChangeRequestHandler(c *container.Container) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		changes: c.ChangeRequests,
		log:     c.Components.Logger,
	}
}

// Submit opens a change request over a staged upload
// POST /api/v1/datasets/:id/change-requests
func (h *ChangeRequestHandler) Submit(c echo.Context) error {
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
		StagedUploadID string  `json:"staged_upload_id"`
		Title          string  `json:"title"`
		Description    *string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Title == "" {
		return badRequest(c, "title is required")
	}
	uploadID, err := uuid.Parse(req.StagedUploadID)
	if err != nil {
		return badRequest(c, "invalid staged_upload_id")
	}

	cr, err := h.changes.Submit(ctx, &service.SubmitRequest{
		DatasetID:      datasetID,
		StagedUploadID: uploadID,
		Title:          req.Title,
		Description:    req.Description,
		SubmitterID:    actor,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusCreated, cr)
}

// List lists the change requests of a dataset
// GET /api/v1/datasets/:id/change-requests?status=pending
func (h *ChangeRequestHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	datasetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(c, "invalid dataset id")
	}

	status := models.CRStatus(c.QueryParam("status"))

	crs, err := h.changes.List(ctx, datasetID, status)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"change_requests": crs,
		"count":           len(crs),
	})
}

// Get retrieves a change request
// GET /api/v1/change-requests/:cr_id
func (h *ChangeRequestHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	crID, err := uuid.Parse(c.Param("cr_id"))
	if err != nil {
		return badRequest(c, "invalid change request id")
	}

	cr, err := h.changes.Get(ctx, crID)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, cr)
}

// AssignReviewers replaces the reviewer set of a pending change request
// POST /api/v1/change-requests/:cr_id/reviewers
func (h *ChangeRequestHandler) AssignReviewers(c echo.Context) error {
	ctx := c.Request().Context()

	crID, err := uuid.Parse(c.Param("cr_id"))
	if err != nil {
		return badRequest(c, "invalid change request id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	var req struct {
		PrimaryReviewer *string  `json:"primary_reviewer"`
		Reviewers       []string `json:"reviewers"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.PrimaryReviewer == nil && len(req.Reviewers) == 0 {
		return badRequest(c, "at least one reviewer is required")
	}

	cr, err := h.changes.AssignReviewers(ctx, crID, req.PrimaryReviewer, req.Reviewers, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, cr)
}

// Approve merges a pending change request
// POST /api/v1/change-requests/:cr_id/approve
func (h *ChangeRequestHandler) Approve(c echo.Context) error {
	ctx := c.Request().Context()

	crID, err := uuid.Parse(c.Param("cr_id"))
	if err != nil {
		return badRequest(c, "invalid change request id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	result, err := h.changes.Approve(ctx, crID, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	body := map[string]interface{}{
		"change_request": result.ChangeRequest,
	}
	if result.Version != nil {
		body["version"] = result.Version.Number
	}

	return c.JSON(http.StatusOK, body)
}

// Reject rejects a pending change request
// POST /api/v1/change-requests/:cr_id/reject
func (h *ChangeRequestHandler) Reject(c echo.Context) error {
	return h.decide(c, h.changes.Reject)
}

// Withdraw withdraws a pending change request
// POST /api/v1/change-requests/:cr_id/withdraw
func (h *ChangeRequestHandler) Withdraw(c echo.Context) error {
	return h.decide(c, h.changes.Withdraw)
}

func (h *ChangeRequestHandler) decide(c echo.Context, fn func(ctx context.Context, crID uuid.UUID, userID string) (*models.ChangeRequest, error)) error {
	crID, err := uuid.Parse(c.Param("cr_id"))
	if err != nil {
		return badRequest(c, "invalid change request id")
	}

	actor, err := middleware.RequireActor(c)
	if err != nil {
		return err
	}

	cr, err := fn(c.Request().Context(), crID, actor)
	if err != nil {
		return writeError(c, h.log, err)
	}

	return c.JSON(http.StatusOK, cr)
}
