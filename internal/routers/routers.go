// Package routers wires handlers onto echo groups
package routers

import (
	"roast-api/internal/limiter"
	"roast-api/internal/middleware"

	"github.com/labstack/echo/v4"
)

// postMiddleware returns the middleware every route that costs a remote
// prediction call goes through.
func postMiddleware(l limiter.Limiter) []echo.MiddlewareFunc {
	if l == nil {
		return nil
	}
	return []echo.MiddlewareFunc{middleware.NewRateLimitMiddleware(l)}
}
