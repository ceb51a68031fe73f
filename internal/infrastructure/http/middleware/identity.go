package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserIDHeader carries the caller's identity. Authentication itself is
// handled upstream by the gateway; this service only needs to know who is
// acting.
const UserIDHeader = "X-User-ID"

// Identity returns an Echo middleware that reads the caller's user ID from
// the X-User-ID header and sets "user_id" (uuid.UUID) into Echo context.
func Identity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(UserIDHeader)
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing "+UserIDHeader+" header")
			}

			userID, err := uuid.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, UserIDHeader+" must be a valid UUID")
			}

			c.Set("user_id", userID)
			return next(c)
		}
	}
}
