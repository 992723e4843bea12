// Package shared
package shared

import (
	"strings"

	"github.com/labstack/echo/v4"
)

func ExtractAPIKey(c echo.Context) (string, error) {
	// Check Authorization header
	auth := c.Request().Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingAuth
	}

	// Validate bearer format
	parts := strings.Split(auth, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", ErrInvalidFormat
	}

	apiKey := parts[1]

	// Validate key length
	if len(apiKey) != APIKeyLength {
		return "", ErrInvalidKeyLen
	}

	return apiKey, nil
}

// Truncate shortens s to at most n bytes for log output.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
