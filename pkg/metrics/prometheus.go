package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FxPulse/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
	feedMode     *prometheus.GaugeVec
	bufferDepth  *prometheus.GaugeVec
	score        *prometheus.GaugeVec
	confidence   *prometheus.GaugeVec
	penalty      *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		messagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_messages_sent_total",
				Help: "Total number of advisories delivered per sink",
			},
			[]string{"sink", "symbol"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_last_price",
				Help: "Last observed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		feedMode: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_feed_mode",
				Help: "Active feed mode per symbol (1 = live, 0 = degraded)",
			},
			[]string{"symbol"},
		),
		bufferDepth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_feed_buffer_depth",
				Help: "Candles held per symbol and buffer",
			},
			[]string{"symbol", "buffer"},
		),
		score: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_probability_score",
				Help: "Latest composite probability score per symbol",
			},
			[]string{"symbol"},
		),
		confidence: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_score_confidence",
				Help: "Latest score confidence per symbol",
			},
			[]string{"symbol"},
		),
		penalty: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxpulse_memory_penalty",
				Help: "Latest loss-memory confidence penalty per symbol",
			},
			[]string{"symbol"},
		),
	}
}

// RecordMessageSent records an advisory delivered to a sink.
func (r *Recorder) RecordMessageSent(sink, symbol string) {
	r.messagesSent.WithLabelValues(sink, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordFeedMode records which feed mode a symbol is running in.
func (r *Recorder) RecordFeedMode(symbol string, mode models.FeedMode) {
	v := 0.0
	if mode == models.ModeLive {
		v = 1.0
	}
	r.feedMode.WithLabelValues(symbol).Set(v)
}

// RecordBufferDepth records how many candles a feed buffer holds.
func (r *Recorder) RecordBufferDepth(symbol, buffer string, depth int) {
	r.bufferDepth.WithLabelValues(symbol, buffer).Set(float64(depth))
}

// RecordScore records the latest probability score and its confidence.
func (r *Recorder) RecordScore(symbol string, score, confidence float64) {
	r.score.WithLabelValues(symbol).Set(score)
	r.confidence.WithLabelValues(symbol).Set(confidence)
}

// RecordPenalty records the loss-memory penalty applied to a symbol.
func (r *Recorder) RecordPenalty(symbol string, penalty int) {
	r.penalty.WithLabelValues(symbol).Set(float64(penalty))
}
