package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"roast-api/internal/acquire"
	"roast-api/internal/classifier"
	"roast-api/internal/render"
	"roast-api/internal/shared"

	"github.com/manifold-inc/manifold-sdk/lib/eflag"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
)

func main() {
	predictionEndpoint := flag.String("prediction-endpoint", "", "Prediction URL of the hosted classifier")
	predictionKey := flag.String("prediction-key", "", "Prediction-Key sent to the hosted classifier")
	predictionTimeout := flag.Duration("prediction-timeout", shared.DefaultPredictionTimeout, "Bound on a single prediction call, 0 disables")
	jpegQuality := flag.Int("jpeg-quality", shared.DefaultJPEGQuality, "JPEG quality of images sent for prediction")
	maxDimension := flag.Uint("max-dimension", 0, "Downscale images larger than this many pixels per side, 0 disables")
	asJSON := flag.Bool("json", false, "Print the api response body instead of bars")
	color := flag.String("color", "auto", "Color output: auto, always or never")
	width := flag.Int("width", 30, "Width of the confidence bars")
	debug := flag.Bool("debug", false, "Debug enabled")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image|->\n", os.Args[0])
		flag.PrintDefaults()
	}

	if err := eflag.SetFlagsFromEnvironment(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading environment: %v\n", err)
		os.Exit(1)
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	switch {
	case *color != "auto":
		render.SetColorMode(*color)
	case !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()):
		render.SetColorMode("never")
	}

	log := zap.NewNop().Sugar()
	if *debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic("Failed init logger")
		}
		log = logger.Sugar()
	}
	defer func() {
		_ = log.Sync()
	}()

	client, err := classifier.NewClient(classifier.Config{
		Endpoint:      *predictionEndpoint,
		PredictionKey: *predictionKey,
		Timeout:       *predictionTimeout,
		JPEGQuality:   *jpegQuality,
		MaxDimension:  *maxDimension,
		Log:           log,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	img, err := readImage(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading image %s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := client.Classify(ctx, img.Image)
	if err != nil {
		_ = render.WriteTerminalFailure(os.Stderr, err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(render.NewAPIResponse(res)); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing response: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := render.WriteTerminal(os.Stdout, res, *width); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing result: %v\n", err)
		os.Exit(1)
	}
}

// readImage decodes the named file, or stdin for "-".
func readImage(path string) (*acquire.Image, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = f.Close()
		}()
		r = f
	}
	return acquire.FromBody("", r)
}
