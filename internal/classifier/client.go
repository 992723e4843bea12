// Package classifier sends images to a hosted image classification endpoint
// and turns the answer into ranked class scores.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"roast-api/internal/metrics"
	"roast-api/internal/shared"

	"go.uber.org/zap"
)

var (
	ErrNoEndpoint      = errors.New("classifier: prediction endpoint required")
	ErrNoPredictionKey = errors.New("classifier: prediction key required")
	ErrBadEndpoint     = errors.New("classifier: prediction endpoint must be an absolute http(s) URL")
	ErrBadQuality      = errors.New("classifier: jpeg quality must be between 1 and 100")

	ErrResponseTooLarge = errors.New("classifier: prediction response exceeds 1MB")
)

const (
	maxLoggedBody   = 512
	maxResponseBody = 1 << 20
)

// Config is everything a Client needs. It is read once at startup.
type Config struct {
	Endpoint      string
	PredictionKey string

	// Timeout bounds a single prediction call. Zero leaves the call bounded
	// only by the caller's context.
	Timeout time.Duration

	JPEGQuality  int
	MaxDimension uint

	// HTTPClient replaces the default transport, mostly for tests.
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

// Client calls the remote prediction endpoint. It holds no per call state
// and is safe for concurrent use.
type Client struct {
	endpoint string
	cfg      Config
	http     *http.Client
	log      *zap.SugaredLogger
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if cfg.PredictionKey == "" {
		return nil, ErrNoPredictionKey
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrBadEndpoint
	}
	if cfg.JPEGQuality == 0 {
		cfg.JPEGQuality = shared.DefaultJPEGQuality
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, ErrBadQuality
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop().Sugar()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: shared.DefaultDialTimeout,
			}).DialContext,
			TLSHandshakeTimeout: shared.DefaultTLSTimeout,
			DisableKeepAlives:   false,
		}
		httpClient = &http.Client{Transport: tr}
	}

	return &Client{
		endpoint: u.String(),
		cfg:      cfg,
		http:     httpClient,
		log:      cfg.Log.With("prediction_host", u.Host),
	}, nil
}

// WithLogger returns a copy of the client that logs to log, so request
// scoped fields end up on the prediction logs.
func (c *Client) WithLogger(log *zap.SugaredLogger) *Client {
	cp := *c
	cp.log = log.With("prediction_host", c.hostname())
	return &cp
}

func (c *Client) hostname() string {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return c.endpoint
	}
	return u.Host
}

// Classify encodes img and asks the remote service for its class scores.
func (c *Client) Classify(ctx context.Context, img image.Image) (*Result, error) {
	payload, err := c.Encode(img)
	if err != nil {
		metrics.PredictionCount.WithLabelValues(string(ReasonEncode)).Inc()
		return nil, &Failure{Reason: ReasonEncode, Err: err}
	}
	return c.Predict(ctx, payload)
}

// Predict sends an already encoded image in a single POST. There is no
// retry: any failure comes back as a *Failure and the caller decides what
// to do next.
func (c *Client) Predict(ctx context.Context, payload []byte) (*Result, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	metrics.PayloadBytes.Observe(float64(len(payload)))

	start := time.Now()
	res, err := c.do(ctx, payload)
	outcome := "success"
	if err != nil {
		outcome = string(ReasonOf(err))
	}
	metrics.PredictionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	metrics.PredictionCount.WithLabelValues(outcome).Inc()
	if err != nil {
		return nil, err
	}

	metrics.ObserveTopLabel(res.Top.Label)
	metrics.TopProbability.Observe(res.Top.Probability)
	c.log.Debugw("Prediction succeeded",
		"top_label", res.Top.Label,
		"top_probability", res.Top.Probability,
		"classes", len(res.Predictions),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (c *Client) do(ctx context.Context, payload []byte) (*Result, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Failure{Reason: ReasonNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	r.Header.Set(shared.PredictionKeyName, c.cfg.PredictionKey)
	r.Header.Set("Content-Type", shared.OctetStreamContent)

	res, err := c.http.Do(r)
	if err != nil {
		c.log.Warnw("Prediction request failed", "error", err.Error(), "payload_bytes", len(payload))
		return nil, &Failure{Reason: ReasonNetwork, Err: err}
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.log.Warnw("Failed to close response body", "error", closeErr)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, maxLoggedBody))
		_, _ = io.Copy(io.Discard, res.Body)
		c.log.Warnw("Prediction failed with non-2xx status",
			"status_code", res.StatusCode,
			"status", res.Status,
			"response_body", shared.Truncate(string(excerpt), maxLoggedBody))
		return nil, &Failure{Reason: ReasonHTTPStatus, StatusCode: res.StatusCode}
	}

	// a body cut off by the deadline or a reset is a transport failure, not a
	// malformed answer
	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody+1))
	if err != nil {
		c.log.Warnw("Failed to read prediction response", "error", err.Error())
		return nil, &Failure{Reason: ReasonNetwork, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > maxResponseBody {
		return nil, &Failure{Reason: ReasonParse, Err: ErrResponseTooLarge}
	}

	var wire predictionResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		c.log.Warnw("Failed to decode prediction response", "error", err.Error())
		return nil, &Failure{Reason: ReasonParse, Err: fmt.Errorf("decode response: %w", err)}
	}
	if wire.Predictions == nil {
		return nil, &Failure{Reason: ReasonParse, Err: ErrMissingPredictions}
	}
	if len(*wire.Predictions) == 0 {
		return nil, &Failure{Reason: ReasonParse, Err: ErrEmptyPredictions}
	}

	scores := make([]ClassScore, len(*wire.Predictions))
	for i, p := range *wire.Predictions {
		scores[i] = ClassScore{Label: p.TagName, Probability: p.Probability}
	}
	return &Result{
		ID:          wire.ID,
		Iteration:   wire.Iteration,
		Created:     wire.Created,
		Top:         scores[0],
		Predictions: scores,
	}, nil
}
