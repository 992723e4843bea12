// Package middleware holds the echo middleware shared by every route
package middleware

import (
	"fmt"
	"time"

	"roast-api/internal/ctx"
	"roast-api/internal/metrics"
	"roast-api/internal/shared"

	"github.com/aidarkhanov/nanoid"
	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewTrackMiddleware wraps every request in a *ctx.Context with a request
// scoped logger and writes a single end_of_request line once it is done.
func NewTrackMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID, _ := nanoid.Generate(requestIDAlphabet, 28)
			reqID = "req_" + reqID
			logger := log.With("request_id", reqID)

			cc := &ctx.Context{
				Context: c,
				Log:     logger,
				Reqid:   reqID,
				LogValues: &ctx.ContextLogValues{
					RequestID: reqID,
					ClientIP:  c.RealIP(),
					StartTime: time.Now(),
					Path:      c.Path(),
				},
			}
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)

			err := next(cc)
			if err != nil {
				// let echo write the response so the status below is the real one
				cc.LogValues.AddError(err)
				c.Error(err)
			}

			cc.LogValues.RequestDuration = time.Since(cc.LogValues.StartTime)
			cc.LogValues.StatusCode = cc.Response().Status
			logger.Desugar().Check(cc.LogValues.Level(), "end_of_request").
				Write(zap.Object("request", cc.LogValues))
			metrics.ResponseCodes.WithLabelValues(cc.Path(), fmt.Sprintf("%d", cc.Response().Status)).Inc()
			return nil
		}
	}
}

func NewRecoverMiddleware(log *zap.SugaredLogger) echo.MiddlewareFunc {
	return emw.RecoverWithConfig(emw.RecoverConfig{
		StackSize: 1 << 10, // 1 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			defer func() {
				_ = log.Sync()
			}()
			log.Errorw("Api Panic", "error", err.Error(), "stack", string(stack))
			return c.JSON(500, shared.ErrorResponse{Error: shared.ErrInternalServerError.Err.Error()})
		},
	})
}
