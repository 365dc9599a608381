package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ActorKey is the context key for storing the acting user ID
	ActorKey ContextKey = "actor"
)

// ExtractActor is a middleware that extracts the X-User-ID header and
// stores it in the request context. Every mutating operation is
// attributed to this identity in the audit trail.
//
// Usage:
//
//	e := echo.New()
//	e.Use(middleware.ExtractActor())
func ExtractActor() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := c.Request().Header.Get("X-User-ID")
			if actor != "" {
				c.Set(string(ActorKey), actor)
			}
			return next(c)
		}
	}
}

// GetActor retrieves the acting user ID from the request context.
// Returns empty string if not set.
func GetActor(c echo.Context) string {
	actor := c.Get(string(ActorKey))
	if actor == nil {
		return ""
	}
	return actor.(string)
}

// RequireActor ensures an acting user exists in context.
// Returns an error response if not found.
func RequireActor(c echo.Context) (string, error) {
	actor := GetActor(c)
	if actor == "" {
		err := c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "authentication required (X-User-ID header missing)",
		})
		return "", err
	}
	return actor, nil
}
