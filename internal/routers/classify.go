package routers

import (
	"roast-api/internal/classifier"
	"roast-api/internal/handlers/classify"
	"roast-api/internal/limiter"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ClassifyRouterConfig struct {
	Client *classifier.Client

	// Limiter is optional, nil disables rate limiting
	Limiter limiter.Limiter
}

func RegisterClassifyRoutes(e *echo.Group, config ClassifyRouterConfig, log *zap.SugaredLogger) error {
	classifyManager, err := classify.NewClassifyManager(config.Client)
	if err != nil {
		return err
	}

	limited := postMiddleware(config.Limiter)
	if config.Limiter != nil {
		log.Info("Rate limiting enabled for classify routes")
	}

	e.GET("/", classifyManager.Index)
	e.POST("/", classifyManager.ClassifyPage, limited...)

	v1 := e.Group("/v1")
	v1.POST("/classify", classifyManager.ClassifyAPI, limited...)

	return nil
}
