package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDKey = "auth.user_id"

// RequireUser rejects requests without a valid bearer token and stores
// the token's user ID on the echo context.
func RequireUser(iss *Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			userID, err := iss.Parse(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// UserID returns the authenticated user ID, or "" outside RequireUser.
func UserID(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
