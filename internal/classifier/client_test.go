package classifier

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

const roastResponse = `{
	"id": "7796df8e-acbc-45fc-90b4-1b0c81b73639",
	"project": "8622c779-471c-4b6e-842c-67a11deffd7b",
	"iteration": "59ec199d-f3fb-443a-b708-4bca79e1b7f7",
	"created": "2019-03-20T16:47:31.322Z",
	"predictions": [
		{"tagId": "d5f1", "tagName": "MEDIUM", "probability": 0.87},
		{"tagId": "a0c2", "tagName": "DARK", "probability": 0.10},
		{"tagId": "9b13", "tagName": "LIGHT", "probability": 0.03}
	]
}`

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	return img
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...func(*Config)) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := Config{
		Endpoint:      server.URL + "/customvision/v3.0/Prediction/project/classify/iterations/roast/image",
		PredictionKey: "test-key",
		Log:           zaptest.NewLogger(t).Sugar(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, server
}

func TestClassifySendsRawImage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Prediction-Key"); got != "test-key" {
			t.Errorf("Expected Prediction-Key test-key, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Expected octet-stream content type, got %q", got)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if _, format, err := image.Decode(bytesReader(body)); err != nil || format != "jpeg" {
			t.Errorf("Expected a jpeg body, got format %q err %v", format, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, roastResponse)
	})

	res, err := client.Classify(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if res.Top.Label != "MEDIUM" || res.Top.Probability != 0.87 {
		t.Errorf("Expected top MEDIUM 0.87, got %+v", res.Top)
	}
	if len(res.Predictions) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(res.Predictions))
	}
	want := []string{"MEDIUM", "DARK", "LIGHT"}
	for i, label := range want {
		if res.Predictions[i].Label != label {
			t.Errorf("prediction %d: expected %s, got %s", i, label, res.Predictions[i].Label)
		}
	}
	if res.Iteration != "59ec199d-f3fb-443a-b708-4bca79e1b7f7" {
		t.Errorf("Expected iteration to be surfaced, got %q", res.Iteration)
	}

	probs := res.Probabilities()
	if len(probs) != 3 || probs["MEDIUM"] != 0.87 || probs["DARK"] != 0.10 || probs["LIGHT"] != 0.03 {
		t.Errorf("Unexpected probabilities %v", probs)
	}
}

func TestPredictKeepsRemoteOrder(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[{"tagName":"LIGHT","probability":0.2},{"tagName":"DARK","probability":0.7}]}`)
	})

	res, err := client.Predict(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if res.Top.Label != "LIGHT" {
		t.Errorf("Expected the first entry to be top without re-sorting, got %s", res.Top.Label)
	}
}

func TestPredictDuplicateLabelsCollapse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[{"tagName":"DARK","probability":0.6},{"tagName":"DARK","probability":0.3},{"tagName":"LIGHT","probability":0.1}]}`)
	})

	res, err := client.Predict(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	probs := res.Probabilities()
	if len(probs) != 2 {
		t.Fatalf("Expected 2 labels after collapse, got %v", probs)
	}
	if probs["DARK"] != 0.3 {
		t.Errorf("Expected the later DARK entry to win, got %v", probs["DARK"])
	}
	if res.Top.Probability != 0.6 {
		t.Errorf("Top must still be the first entry, got %+v", res.Top)
	}
}

func TestPredictHTTPStatusFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, roastResponse)
	})

	res, err := client.Predict(context.Background(), []byte("jpeg"))
	if res != nil {
		t.Errorf("Expected no result on HTTP 500, got %+v", res)
	}
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %T %v", err, err)
	}
	if f.Reason != ReasonHTTPStatus || f.StatusCode != 500 {
		t.Errorf("Expected http_status 500, got %s %d", f.Reason, f.StatusCode)
	}
	if !f.Retryable() {
		t.Error("Expected a 500 to be retryable")
	}
}

func TestPredictUnauthorizedNotRetryable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"Unauthorized"}`, http.StatusUnauthorized)
	})

	_, err := client.Predict(context.Background(), []byte("jpeg"))
	var f *Failure
	if !errors.As(err, &f) || f.StatusCode != http.StatusUnauthorized {
		t.Fatalf("Expected 401 failure, got %v", err)
	}
	if f.Retryable() {
		t.Error("Expected a 401 not to be retryable")
	}
}

func TestPredictParseFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "truncated", body: `{"predictions":[{"tagName":"DARK"`},
		{name: "wrong type", body: `{"predictions":[{"tagName":7,"probability":"high"}]}`},
		{name: "missing field", body: `{"id":"abc"}`, want: ErrMissingPredictions},
		{name: "null field", body: `{"predictions":null}`, want: ErrMissingPredictions},
		{name: "empty predictions", body: `{"predictions":[]}`, want: ErrEmptyPredictions},
		{name: "trailing garbage", body: `{"predictions":[{"tagName":"DARK","probability":0.9}]} <html>garbage`},
		{name: "two objects", body: `{"predictions":[{"tagName":"DARK","probability":0.9}]}{"predictions":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})

			res, err := client.Predict(context.Background(), []byte("jpeg"))
			if res != nil {
				t.Errorf("Expected no result, got %+v", res)
			}
			if ReasonOf(err) != ReasonParse {
				t.Fatalf("Expected parse failure, got %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Expected %v in chain, got %v", tt.want, err)
			}
		})
	}
}

func TestPredictNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	endpoint := server.URL + "/image"
	server.Close()

	client, err := NewClient(Config{Endpoint: endpoint, PredictionKey: "k"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Predict(context.Background(), []byte("jpeg"))
	if ReasonOf(err) != ReasonNetwork {
		t.Fatalf("Expected network failure, got %v", err)
	}
}

func TestPredictTimeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *Config) { c.Timeout = 50 * time.Millisecond })
	defer close(release)

	_, err := client.Predict(context.Background(), []byte("jpeg"))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if f.Reason != ReasonNetwork || !f.Timeout() {
		t.Errorf("Expected network timeout, got %s timeout=%v", f.Reason, f.Timeout())
	}
}

func TestPredictStallMidBodyIsTimeout(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"predictions":[`)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(c *Config) { c.Timeout = 100 * time.Millisecond })
	defer close(release)

	_, err := client.Predict(context.Background(), []byte("jpeg"))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if f.Reason != ReasonNetwork {
		t.Errorf("Expected network failure for a stalled body, got %s: %v", f.Reason, err)
	}
	if !f.Timeout() || !f.Retryable() {
		t.Errorf("Expected a retryable timeout, got timeout=%v retryable=%v", f.Timeout(), f.Retryable())
	}
}

func TestPredictOversizedResponse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"predictions":[{"tagName":"`+strings.Repeat("D", maxResponseBody)+`","probability":1}]}`)
	})

	_, err := client.Predict(context.Background(), []byte("jpeg"))
	if ReasonOf(err) != ReasonParse || !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("Expected ErrResponseTooLarge parse failure, got %v", err)
	}
}

func TestPredictCanceledNotRetryable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, roastResponse)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Predict(ctx, []byte("jpeg"))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("Expected *Failure, got %v", err)
	}
	if f.Retryable() || f.Timeout() {
		t.Errorf("Expected canceled call to be neither retryable nor a timeout")
	}
}

func TestPredictSingleCall(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, _ = client.Predict(context.Background(), []byte("jpeg"))
	if got := calls.Load(); got != 1 {
		t.Errorf("Expected exactly one outbound call, got %d", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{name: "missing endpoint", cfg: Config{PredictionKey: "k"}, want: ErrNoEndpoint},
		{name: "missing key", cfg: Config{Endpoint: "https://example.com/image"}, want: ErrNoPredictionKey},
		{name: "relative endpoint", cfg: Config{Endpoint: "/image", PredictionKey: "k"}, want: ErrBadEndpoint},
		{name: "bad scheme", cfg: Config{Endpoint: "ftp://example.com/image", PredictionKey: "k"}, want: ErrBadEndpoint},
		{name: "bad quality", cfg: Config{Endpoint: "https://example.com/image", PredictionKey: "k", JPEGQuality: 101}, want: ErrBadQuality},
		{name: "ok", cfg: Config{Endpoint: "https://example.com/image", PredictionKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestClassifyNilImage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for a nil image")
	})

	_, err := client.Classify(context.Background(), nil)
	if ReasonOf(err) != ReasonEncode {
		t.Fatalf("Expected encode failure, got %v", err)
	}
}
