// Package metrics defines prometheus metrics to expose
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roast_api_prediction_duration_seconds",
			Help:    "Time taken by the remote prediction call in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2, 3, 5, 7.5, 10, 15, 20, 30, 60},
		},
		[]string{"outcome"},
	)

	PredictionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_api_prediction_count_total",
			Help: "Total number of remote predictions by outcome",
		},
		[]string{"outcome"},
	)

	TopLabelCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_api_top_label_total",
			Help: "Top predicted label of successful predictions, labels past the first 32 seen count as other",
		},
		[]string{"label"},
	)

	TopProbability = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roast_api_top_probability",
			Help:    "Probability of the top predicted label",
			Buckets: []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, .95, .99},
		},
	)

	PayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "roast_api_payload_bytes",
			Help:    "Size of encoded images sent for prediction",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
		},
	)

	ImageSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_api_image_source_total",
			Help: "Where classified images came from",
		},
		[]string{"source"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roast_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roast_api_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)

// Label values of TopLabelCount come from the remote model, so only the
// first maxTopLabels distinct labels get their own series.
const (
	maxTopLabels   = 32
	maxLabelLength = 64
	OtherLabel     = "other"
)

var topLabels = newLabelSet(maxTopLabels)

// ObserveTopLabel counts a successful prediction under its top label.
func ObserveTopLabel(label string) {
	TopLabelCount.WithLabelValues(topLabels.bound(label)).Inc()
}

type labelSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
	max  int
}

func newLabelSet(limit int) *labelSet {
	return &labelSet{seen: make(map[string]struct{}, limit), max: limit}
}

func (s *labelSet) bound(label string) string {
	if label == "" || len(label) > maxLabelLength {
		return OtherLabel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[label]; ok {
		return label
	}
	if len(s.seen) >= s.max {
		return OtherLabel
	}
	s.seen[label] = struct{}{}
	return label
}
