package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meeting_audio_active_sessions",
		Help: "Number of recording sessions currently buffering audio",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_audio_sessions_total",
		Help: "Total number of recording sessions created",
	})

	// Ingestion metrics
	chunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_audio_chunks_ingested_total",
		Help: "Total number of audio chunks accepted into session buffers",
	})

	chunksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_audio_chunks_rejected_total",
		Help: "Total number of inbound chunks rejected before buffering",
	}, []string{"reason"}) // reason: "decode", "event"

	audioBytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_audio_bytes_ingested_total",
		Help: "Total PCM bytes accepted into session buffers",
	})

	windowsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_audio_windows_emitted_total",
		Help: "Total number of fixed-duration transcription windows emitted",
	})

	remainderDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meeting_audio_remainder_samples_dropped_total",
		Help: "Samples discarded as sub-window remainder when a session closed",
	})

	// Transcription metrics
	transcriptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_audio_transcriptions_total",
		Help: "Total number of window transcription attempts",
	}, []string{"status"}) // status: "success", "error", "empty", "dropped"

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meeting_audio_transcription_latency_seconds",
		Help:    "Speech-to-text latency per window in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Persistence metrics
	storeWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_audio_store_writes_total",
		Help: "Total document store writes",
	}, []string{"kind", "status"}) // kind: "chunk", "transcript"

	// Reconstruction metrics
	reconstructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_audio_reconstructions_total",
		Help: "Total reconstruction requests",
	}, []string{"status"}) // status: "success", "not_found", "error"

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meeting_audio_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "meeting_audio_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})
)

// RecordSessionStart records the creation of a recording session
func RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the close of a recording session
func RecordSessionEnd() {
	activeSessions.Dec()
}

// RecordChunkIngested records an accepted chunk and its PCM byte size
func RecordChunkIngested(pcmBytes int) {
	chunksIngested.Inc()
	audioBytesIngested.Add(float64(pcmBytes))
}

// RecordChunkRejected records an inbound chunk dropped before buffering
func RecordChunkRejected(reason string) {
	chunksRejected.WithLabelValues(reason).Inc()
}

// RecordWindowEmitted records a transcription window leaving a session buffer
func RecordWindowEmitted() {
	windowsEmitted.Inc()
}

// RecordRemainderDropped records sub-window samples discarded on session close
func RecordRemainderDropped(samples int) {
	remainderDropped.Add(float64(samples))
}

// RecordTranscription records the outcome and latency of one window transcription
func RecordTranscription(status string, elapsed time.Duration) {
	transcriptions.WithLabelValues(status).Inc()
	if elapsed > 0 {
		transcriptionLatency.Observe(elapsed.Seconds())
	}
}

// RecordStoreWrite records a document store write result
func RecordStoreWrite(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	storeWrites.WithLabelValues(kind, status).Inc()
}

// RecordReconstruction records the outcome of a reconstruction request
func RecordReconstruction(status string) {
	reconstructions.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}
