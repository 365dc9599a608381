package handlers

import (
	"errors"
	"net/http"

	"github.com/datacove/console/common/apperrors"
	"github.com/datacove/console/common/logger"
	"github.com/labstack/echo/v4"
)

// writeError maps a service error onto an HTTP response. Sentinel
// classes get their dedicated status codes; anything unclassified is a
// 500 with the detail kept out of the response body.
func writeError(c echo.Context, log *logger.Logger, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrValidationFailed):
		return c.JSON(http.StatusUnprocessableEntity, errorBody(err))
	case errors.Is(err, apperrors.ErrInvalidState):
		return c.JSON(http.StatusConflict, errorBody(err))
	case errors.Is(err, apperrors.ErrNotEligible), errors.Is(err, apperrors.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorBody(err))
	case errors.Is(err, apperrors.ErrNoReviewers):
		return c.JSON(http.StatusConflict, errorBody(err))
	case errors.Is(err, apperrors.ErrVersionNotFound), errors.Is(err, apperrors.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorBody(err))
	case errors.Is(err, apperrors.ErrBusy):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusTooManyRequests, errorBody(err))
	default:
		log.Error("request failed", "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "internal server error",
		})
	}
}

func errorBody(err error) map[string]interface{} {
	return map[string]interface{}{
		"error": err.Error(),
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": msg,
	})
}
