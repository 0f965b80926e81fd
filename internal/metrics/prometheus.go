// Package metrics exposes Prometheus metrics for the ingestion subsystem.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for sermon transcription ingestion
type Metrics struct {
	// Chunk ingestion metrics
	ChunksAccepted prometheus.Counter
	ChunksRejected *prometheus.CounterVec
	ChunkSize      prometheus.Histogram
	BytesIngested  prometheus.Counter

	// Stream metrics
	ActiveStreams   prometheus.Gauge
	StreamsOpened   prometheus.Counter
	StreamsClosed   prometheus.Counter
	StreamDuration  prometheus.Histogram
	CacheEvictions  *prometheus.CounterVec
	Reconciliations prometheus.Counter

	// Transcriber forwarding metrics
	ForwardSuccesses prometheus.Counter
	ForwardFailures  prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return newWithRegisterer(prometheus.DefaultRegisterer)
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Get returns the process-wide metrics, registering them on first use
func Get() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewTestMetrics creates metrics on a private registry so tests do not
// collide on the default registerer.
func NewTestMetrics() *Metrics {
	return newWithRegisterer(prometheus.NewRegistry())
}

func newWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunksAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_chunks_accepted_total",
			Help: "Total number of audio chunks accepted for ingestion",
		}),
		ChunksRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sermonscribe_chunks_rejected_total",
			Help: "Total number of audio chunks rejected, by reason",
		}, []string{"reason"}),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sermonscribe_chunk_size_bytes",
			Help:    "Size of accepted audio chunks in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 14), // 1KB to ~8MB
		}),
		BytesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_bytes_ingested_total",
			Help: "Total audio bytes accepted for ingestion",
		}),
		ActiveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sermonscribe_active_streams",
			Help: "Current number of active ingestion streams",
		}),
		StreamsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_streams_opened_total",
			Help: "Total number of ingestion streams opened",
		}),
		StreamsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_streams_closed_total",
			Help: "Total number of ingestion streams closed",
		}),
		StreamDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sermonscribe_stream_duration_seconds",
			Help:    "Duration of ingestion streams in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5 hours
		}),
		CacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sermonscribe_cache_evictions_total",
			Help: "Total ingestion cache entries evicted, by cause",
		}, []string{"cause"}),
		Reconciliations: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_cache_reconciliations_total",
			Help: "Total cache entries rebuilt from the session store after a miss",
		}),
		ForwardSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_forward_successes_total",
			Help: "Total chunks successfully forwarded to the transcription provider",
		}),
		ForwardFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sermonscribe_forward_failures_total",
			Help: "Total chunk forwards that failed",
		}),
	}
}

// RecordChunkAccepted records an accepted chunk and its size
func (m *Metrics) RecordChunkAccepted(sizeBytes int64) {
	m.ChunksAccepted.Inc()
	m.ChunkSize.Observe(float64(sizeBytes))
	m.BytesIngested.Add(float64(sizeBytes))
}

// RecordChunkRejected records a rejected chunk with the rejection reason
func (m *Metrics) RecordChunkRejected(reason string) {
	m.ChunksRejected.WithLabelValues(reason).Inc()
}

// RecordStreamOpened increments stream open counters
func (m *Metrics) RecordStreamOpened() {
	m.StreamsOpened.Inc()
	m.ActiveStreams.Inc()
}

// RecordStreamClosed records a stream close and its duration
func (m *Metrics) RecordStreamClosed(durationSeconds float64) {
	m.StreamsClosed.Inc()
	m.ActiveStreams.Dec()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordEviction records a cache eviction with its cause
func (m *Metrics) RecordEviction(cause string) {
	m.CacheEvictions.WithLabelValues(cause).Inc()
	m.ActiveStreams.Dec()
}

// RecordReconciliation records a cache rebuild from authoritative state
func (m *Metrics) RecordReconciliation() {
	m.Reconciliations.Inc()
}

// RecordForward records the outcome of a transcriber forward
func (m *Metrics) RecordForward(success bool) {
	if success {
		m.ForwardSuccesses.Inc()
		return
	}
	m.ForwardFailures.Inc()
}
