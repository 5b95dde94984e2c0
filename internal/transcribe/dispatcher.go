package transcribe

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/pipeline"
	"github.com/PrathameshPGAGI/webhook/internal/store"
)

// TranscriptSink persists finished transcripts.
type TranscriptSink interface {
	AppendTranscript(ctx context.Context, record *store.TranscriptRecord) error
}

// TranscriptLogger appends transcripts to the per-session log file.
type TranscriptLogger interface {
	Append(record *store.TranscriptRecord) error
}

// Dispatcher runs window transcriptions on a fixed worker pool. Windows
// from the same session are processed one at a time in submission order,
// so transcripts land in the sink in the order the audio arrived. A
// failed window is logged and skipped; later windows still run.
type Dispatcher struct {
	engine     Engine
	sink       TranscriptSink
	log        TranscriptLogger
	sampleRate int
	timeout    time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionQueue

	jobs   chan *pipeline.Window
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger
}

// sessionQueue holds windows waiting their turn while an earlier window
// from the same session is still in flight.
type sessionQueue struct {
	pending  []*pipeline.Window
	inFlight bool
}

// NewDispatcher starts the worker pool. The log sink may be nil.
func NewDispatcher(engine Engine, sink TranscriptSink, log TranscriptLogger, workers, queueSize, sampleRate int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		engine:     engine,
		sink:       sink,
		log:        log,
		sampleRate: sampleRate,
		timeout:    timeout,
		sessions:   make(map[string]*sessionQueue),
		jobs:       make(chan *pipeline.Window, queueSize),
		ctx:        ctx,
		cancel:     cancel,
		logger:     observability.GetLogger().With().Str("component", "dispatcher").Logger(),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit queues a window for transcription and returns without waiting on
// the pool. If an earlier window from the same session is still running,
// the window waits in the session's queue.
func (d *Dispatcher) Submit(window *pipeline.Window) error {
	d.mu.Lock()
	sq, ok := d.sessions[window.SessionID]
	if !ok {
		sq = &sessionQueue{}
		d.sessions[window.SessionID] = sq
	}
	if sq.inFlight {
		sq.pending = append(sq.pending, window)
		d.mu.Unlock()
		return nil
	}
	sq.inFlight = true
	d.mu.Unlock()

	select {
	case d.jobs <- window:
		return nil
	case <-d.ctx.Done():
		return fmt.Errorf("dispatcher is shut down")
	default:
	}

	// The queue is full. A slow engine must not backpressure the ingest
	// loop, so hand the window off asynchronously like release does.
	observability.RecordError("queue_full", "dispatcher")
	d.logger.Warn().Str("session_id", window.SessionID).Msg("Transcription queue full")
	go func() {
		if err := d.enqueue(window); err != nil {
			d.logger.Warn().Str("session_id", window.SessionID).Msg("Dropped pending window during shutdown")
		}
	}()
	return nil
}

func (d *Dispatcher) enqueue(window *pipeline.Window) error {
	select {
	case d.jobs <- window:
		return nil
	case <-d.ctx.Done():
		return fmt.Errorf("dispatcher is shut down")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case window := <-d.jobs:
			d.process(window)
			d.release(window.SessionID)
		case <-d.ctx.Done():
			return
		}
	}
}

// release hands the session's next pending window to the pool, or marks
// the session idle when nothing is waiting.
func (d *Dispatcher) release(sessionID string) {
	d.mu.Lock()
	sq, ok := d.sessions[sessionID]
	if !ok {
		d.mu.Unlock()
		return
	}
	if len(sq.pending) == 0 {
		sq.inFlight = false
		delete(d.sessions, sessionID)
		d.mu.Unlock()
		return
	}
	next := sq.pending[0]
	sq.pending = sq.pending[1:]
	d.mu.Unlock()

	// Hand off without blocking the worker: with every worker stuck
	// enqueueing into a full queue nothing would drain it.
	go func() {
		if err := d.enqueue(next); err != nil {
			d.logger.Warn().Str("session_id", sessionID).Msg("Dropped pending window during shutdown")
		}
	}()
}

func (d *Dispatcher) process(window *pipeline.Window) {
	logger := d.logger.With().
		Str("session_id", window.SessionID).
		Float64("timestamp", window.Timestamp.Relative).
		Logger()

	ctx := d.ctx
	var cancel context.CancelFunc
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(d.ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := d.engine.Transcribe(ctx, window.PCM)
	elapsed := time.Since(start)
	if err != nil {
		observability.RecordTranscription("failure", elapsed)
		observability.RecordError("transcription", "dispatcher")
		logger.Error().Err(err).Msg("Transcription failed, skipping window")
		return
	}

	if result == nil || result.Text == "" {
		observability.RecordTranscription("empty", elapsed)
		logger.Debug().Msg("Window produced no transcript")
		return
	}

	record := &store.TranscriptRecord{
		SessionID:       window.SessionID,
		Timestamp:       window.Timestamp.Relative,
		DurationSeconds: float64(window.SampleCount) / float64(d.sampleRate),
		Transcript:      result.Text,
		Segments:        result.Segments,
	}

	if err := d.sink.AppendTranscript(ctx, record); err != nil {
		observability.RecordTranscription("store_failure", elapsed)
		logger.Error().Err(err).Msg("Failed to persist transcript")
		return
	}
	if d.log != nil {
		if err := d.log.Append(record); err != nil {
			logger.Warn().Err(err).Msg("Failed to append transcript log")
		}
	}

	observability.RecordTranscription("success", elapsed)
	logger.Info().
		Int("segments", len(record.Segments)).
		Dur("latency", elapsed).
		Msg("Window transcribed")
}

// Shutdown stops the workers. Queued windows that have not started are
// discarded.
func (d *Dispatcher) Shutdown() {
	d.cancel()
	d.wg.Wait()
}
