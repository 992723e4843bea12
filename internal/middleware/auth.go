package middleware

import (
	"crypto/subtle"
	"errors"

	"roast-api/internal/shared"

	"github.com/labstack/echo/v4"
)

// RequireAPIKey guards operator routes such as /metrics behind a static
// bearer key. An empty key locks the route entirely.
func RequireAPIKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if key == "" {
				return c.String(401, shared.ErrUnauthorized.Err.Error())
			}
			apiKey, err := shared.ExtractAPIKey(c)
			if err != nil {
				var rerr *shared.RequestError
				if errors.As(err, &rerr) {
					return c.String(rerr.StatusCode, rerr.Err.Error())
				}
				return c.String(401, "Missing or invalid API key")
			}

			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) != 1 {
				return c.String(401, "Unauthorized API key")
			}
			return next(c)
		}
	}
}
