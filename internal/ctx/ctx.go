// Package ctx
package ctx

import (
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogValues should only be accessed for logging, and not for
// actual business logic, or any other logic
type ContextLogValues struct {
	// Added in base middleware
	RequestID       string
	ClientIP        string
	StartTime       time.Time
	StatusCode      int
	RequestDuration time.Duration
	Path            string

	// Added by the classify handlers
	ImageSource   string
	ImageFormat   string
	PayloadBytes  int
	TopLabel      string
	FailureReason string

	// Override log Log Level
	LogLevel string

	// Added dynamically
	Error error
}

// AddError adds errors to the error chain. Always add errors, even if only warnings.
// Log level is determined by the status code of the request
func (c *ContextLogValues) AddError(err error) {
	if err == nil {
		return
	}
	if c.Error == nil {
		c.Error = err
		return
	}
	c.Error = fmt.Errorf("%w: %w", err, c.Error)
}

func (c *ContextLogValues) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("request_id", c.RequestID)
	enc.AddString("client_ip", c.ClientIP)
	enc.AddTime("start_time", c.StartTime)
	enc.AddDuration("request_duration", c.RequestDuration)
	enc.AddInt("status_code", c.StatusCode)
	enc.AddString("path", c.Path)
	if c.ImageSource != "" {
		enc.AddString("image_source", c.ImageSource)
		enc.AddString("image_format", c.ImageFormat)
		enc.AddInt("payload_bytes", c.PayloadBytes)
	}
	if c.TopLabel != "" {
		enc.AddString("top_label", c.TopLabel)
	}
	if c.FailureReason != "" {
		enc.AddString("failure_reason", c.FailureReason)
	}
	if c.Error != nil {
		enc.AddString("error", c.Error.Error())
	}
	return nil
}

// Level picks the level the end of request line is logged at.
func (c *ContextLogValues) Level() zapcore.Level {
	if c.LogLevel != "" {
		if lvl, err := zapcore.ParseLevel(c.LogLevel); err == nil {
			return lvl
		}
	}
	switch {
	case c.StatusCode >= 500:
		return zapcore.ErrorLevel
	case c.StatusCode >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

type Context struct {
	echo.Context
	Log       *zap.SugaredLogger
	Reqid     string
	LogValues *ContextLogValues
}
