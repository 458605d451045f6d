// Package metrics exposes the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CandlesInserted counts rows written to the candle store, by timeframe.
	CandlesInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbot_candles_inserted_total",
		Help: "Candle rows inserted into the store.",
	}, []string{"timeframe"})

	// SyncErrors counts failed sync tasks by error kind.
	SyncErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbot_sync_errors_total",
		Help: "Sync tasks that ended in error, by classified kind.",
	}, []string{"kind"})

	// SignalsGenerated counts BUY signals produced by the pipeline.
	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbot_signals_generated_total",
		Help: "BUY signals produced, by timeframe.",
	}, []string{"timeframe"})

	// SignalsSent counts signals delivered to at least one subscriber.
	SignalsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalbot_signals_sent_total",
		Help: "Signals handed to the broadcast sink.",
	})

	// DeliveryFailures counts per-subscriber delivery errors.
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalbot_delivery_failures_total",
		Help: "Per-subscriber delivery failures.",
	})

	// LLMRequests counts LLM completions by provider and result.
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbot_llm_requests_total",
		Help: "LLM completion requests, by provider and result.",
	}, []string{"provider", "result"})

	// PipelineStageDuration observes per-symbol pipeline build time.
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "signalbot_pipeline_build_seconds",
		Help:    "Per-symbol pipeline build duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
)
