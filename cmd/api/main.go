package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"roast-api/internal/classifier"
	"roast-api/internal/limiter"
	"roast-api/internal/middleware"
	"roast-api/internal/render"
	"roast-api/internal/routers"
	"roast-api/internal/shared"

	"github.com/labstack/echo/v4"
	emw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Flags / ENV Variables
	predictionEndpoint := flag.String("prediction-endpoint", "", "Prediction URL of the hosted classifier")
	predictionKey := flag.String("prediction-key", "", "Prediction-Key sent to the hosted classifier")
	predictionTimeout := flag.Duration("prediction-timeout", shared.DefaultPredictionTimeout, "Bound on a single prediction call, 0 disables")
	jpegQuality := flag.Int("jpeg-quality", shared.DefaultJPEGQuality, "JPEG quality of images sent for prediction")
	maxDimension := flag.Uint("max-dimension", 0, "Downscale images larger than this many pixels per side, 0 disables")
	metricsAPIKey := flag.String("metrics-api-key", "", "Metrics api key")
	redisAddr := flag.String("redis-addr", "", "Redis host:port for rate limiting, empty disables")
	rateLimit := flag.Int("rate-limit", shared.DefaultRateLimit, "Classify requests per client per minute")
	trustedProxies := flag.String("trusted-proxies", "", "Comma separated CIDR ranges whose X-Forwarded-For is trusted, empty uses the peer address")
	listenAddr := flag.String("listen-addr", shared.DefaultListenAddr, "Address to serve on")
	debug := flag.Bool("debug", false, "Debug enabled")

	err := eflag.SetFlagsFromEnvironment()
	if err != nil {
		panic(err)
	}
	flag.Parse()

	var logger *zap.Logger
	if !*debug {
		logger, err = zap.NewProduction()
		if err != nil {
			panic("Failed init logger")
		}
	}
	if *debug {
		logger, err = zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
	}
	log := logger.Sugar()
	defer func() {
		_ = log.Sync()
	}()

	// Missing credentials are a startup failure, never a per request one
	client, err := classifier.NewClient(classifier.Config{
		Endpoint:      *predictionEndpoint,
		PredictionKey: *predictionKey,
		Timeout:       *predictionTimeout,
		JPEGQuality:   *jpegQuality,
		MaxDimension:  *maxDimension,
		Log:           log,
	})
	if err != nil {
		panic(fmt.Sprintf("failed initializing classifier: %s", err))
	}

	var rateLimiter limiter.Limiter
	if *redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     *redisAddr,
			Password: "",
			DB:       0,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			panic(fmt.Sprintf("failed ping to redis db: %s", err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		rateLimiter = limiter.NewRedisLimiter(redisClient, *rateLimit, shared.RateLimitWindow, log)
	}

	renderer, err := render.NewRenderer()
	if err != nil {
		panic(err)
	}

	ipExtractor, err := middleware.NewIPExtractor(strings.Split(*trustedProxies, ","))
	if err != nil {
		panic(err)
	}

	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = ipExtractor
	e.Renderer = renderer
	e.GET(("/ping"), func(c echo.Context) error {
		return c.String(200, "")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.RequireAPIKey(*metricsAPIKey))

	base := e.Group("")
	base.Use(emw.CORS())
	base.Use(emw.BodyLimit(shared.MaxUploadSizeLabel))
	base.Use(middleware.NewRecoverMiddleware(log))
	base.Use(middleware.NewTrackMiddleware(log))

	err = routers.RegisterClassifyRoutes(base, routers.ClassifyRouterConfig{
		Client:  client,
		Limiter: rateLimiter,
	}, log)
	if err != nil {
		panic(err)
	}

	log.Infow("Classifier configured",
		"timeout", predictionTimeout.String(),
		"jpeg_quality", *jpegQuality,
		"max_dimension", *maxDimension,
		"rate_limited", rateLimiter != nil)

	go func() {
		if err := e.Start(*listenAddr); err != nil && err != http.ErrServerClosed {
			log.Errorw("shutting down the server", "error", err)
			os.Exit(1)
		}
	}()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), shared.DefaultShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("Failed graceful shutdown", "error", err)
	}
}
