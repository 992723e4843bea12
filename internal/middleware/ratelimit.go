package middleware

import (
	"context"
	"net/http"

	"roast-api/internal/ctx"
	"roast-api/internal/limiter"
	"roast-api/internal/metrics"
	"roast-api/internal/shared"

	"github.com/labstack/echo/v4"
)

// NewRateLimitMiddleware rejects clients over their per window budget. A
// failing limiter lets requests through so a redis outage does not take the
// classifier down with it.
func NewRateLimitMiddleware(l limiter.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(cc echo.Context) error {
			c := cc.(*ctx.Context)

			callCtx, cancel := context.WithTimeout(c.Request().Context(), shared.RateLimitCallWait)
			defer cancel()

			allowed, err := l.Allow(callCtx, c.RealIP())
			if err != nil {
				c.Log.Warnw("Rate limiter unavailable, allowing request", "error", err.Error())
				return next(c)
			}
			if !allowed {
				metrics.RateLimited.Inc()
				c.LogValues.AddError(shared.ErrRateLimited)
				return c.JSON(http.StatusTooManyRequests, shared.ErrorResponse{Error: shared.ErrRateLimited.Err.Error()})
			}
			return next(c)
		}
	}
}
