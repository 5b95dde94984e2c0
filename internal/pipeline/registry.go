package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
)

// Session is the unit of concurrency: one buffer, one lock, one logger.
// Chunks for a session must be applied in arrival order, so all ingestion
// for a session runs under its mutex while other sessions proceed
// independently.
type Session struct {
	ID    string
	BotID string

	mu           sync.Mutex
	buffer       *Buffer
	lastActivity time.Time
	closed       bool

	logger zerolog.Logger
}

// Ingest applies one chunk to the session buffer and returns any windows it
// pushed past the boundary. Safe for concurrent callers; within the session
// chunks are serialized.
func (s *Session) Ingest(chunk *audio.Chunk) []Window {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.logger.Warn().Msg("Chunk arrived after session close, dropping")
		observability.RecordChunkRejected("closed")
		return nil
	}

	windows := s.buffer.Ingest(chunk)
	s.lastActivity = time.Now()

	observability.RecordChunkIngested(len(chunk.PCM))
	for range windows {
		observability.RecordWindowEmitted()
	}

	if len(windows) > 0 {
		s.logger.Debug().
			Int("windows", len(windows)).
			Int("remainder_samples", s.buffer.PendingSamples()).
			Float64("timestamp", chunk.Timestamp.Relative).
			Msg("Emitted transcription windows")
	}
	return windows
}

// PendingSamples reports the current remainder size.
func (s *Session) PendingSamples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.PendingSamples()
}

// close discards the remainder and marks the session dead. Returns the
// number of samples dropped.
func (s *Session) close() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	s.closed = true
	return s.buffer.PendingSamples()
}

// Registry maps recording session ids to their owned Session, creating on
// first chunk and destroying on close or idle timeout. Any sub-window
// remainder is discarded at close: a session that never fills a window
// never transcribes, by contract.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	windower    *Windower
	idleTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger zerolog.Logger
}

// NewRegistry creates a session registry. If idleTimeout is positive a
// background sweep closes sessions with no chunk activity for that long.
func NewRegistry(windower *Windower, idleTimeout time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		sessions:    make(map[string]*Session),
		windower:    windower,
		idleTimeout: idleTimeout,
		ctx:         ctx,
		cancel:      cancel,
		logger:      observability.GetLogger().With().Str("component", "registry").Logger(),
	}

	if idleTimeout > 0 {
		r.wg.Add(1)
		go r.sweepIdle()
	}
	return r
}

// GetOrCreate returns the session for id, creating it on first chunk.
func (r *Registry) GetOrCreate(sessionID, botID string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s
	}

	s = &Session{
		ID:           sessionID,
		BotID:        botID,
		buffer:       r.windower.NewBuffer(sessionID, botID),
		lastActivity: time.Now(),
		logger:       observability.WithSession(sessionID, botID),
	}
	r.sessions[sessionID] = s

	observability.RecordSessionStart()
	s.logger.Info().Msg("Session created")
	return s
}

// Get returns the session for id, or nil if none exists.
func (r *Registry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// Close destroys a session, discarding any unflushed remainder. Closing an
// unknown session is a no-op.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	dropped := s.close()
	observability.RecordSessionEnd()
	if dropped > 0 {
		observability.RecordRemainderDropped(dropped)
	}
	s.logger.Info().
		Int("dropped_remainder_samples", dropped).
		Msg("Session closed")
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown stops the idle sweeper and closes every session.
func (r *Registry) Shutdown() {
	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}

// sweepIdle periodically closes sessions with no recent chunk activity.
func (r *Registry) sweepIdle() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-r.idleTimeout)

			r.mu.RLock()
			var stale []string
			for id, s := range r.sessions {
				s.mu.Lock()
				idle := s.lastActivity.Before(cutoff)
				s.mu.Unlock()
				if idle {
					stale = append(stale, id)
				}
			}
			r.mu.RUnlock()

			for _, id := range stale {
				r.logger.Info().Str("session_id", id).Msg("Closing idle session")
				r.Close(id)
			}

		case <-r.ctx.Done():
			return
		}
	}
}
