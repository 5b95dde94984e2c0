package meeting

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Recall.ai connects from rotating egress IPs; tokens in the URL
		// are the access control, not the origin.
		return true
	},
	ReadBufferSize:  8192,
	WriteBufferSize: 1024,
}

// ChunkSink durably stores decoded chunks as they arrive.
type ChunkSink interface {
	AppendChunk(ctx context.Context, chunk *audio.Chunk) error
}

// WindowSink receives completed windows for transcription.
type WindowSink interface {
	Submit(window *pipeline.Window) error
}

// Listener accepts meeting audio streams over WebSocket and feeds them
// into the session pipeline.
type Listener struct {
	registry *pipeline.Registry
	chunks   ChunkSink
	windows  WindowSink
}

func NewListener(registry *pipeline.Registry, chunks ChunkSink, windows WindowSink) *Listener {
	return &Listener{registry: registry, chunks: chunks, windows: windows}
}

// HandleWS is the entry point for meeting audio WebSocket connections.
// Each connection carries envelopes for one or more recordings; sessions
// seen on the connection are closed when it drops, and any remainder
// shorter than a window is discarded.
func (l *Listener) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errLogger := observability.GetLogger()
		errLogger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer conn.Close()

	logger := observability.WithCorrelationID(observability.NewCorrelationID()).With().
		Str("component", "listener").
		Str("remote", r.RemoteAddr).
		Logger()
	logger.Info().Msg("Meeting audio stream connected")

	seen := make(map[string]struct{})
	defer func() {
		for sessionID := range seen {
			l.registry.Close(sessionID)
		}
		logger.Info().Int("sessions", len(seen)).Msg("Meeting audio stream disconnected")
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}
		l.handleMessage(r.Context(), logger, message, seen)
	}
}

// handleMessage decodes one envelope and pushes its audio through the
// pipeline. Malformed chunks are dropped; a storage failure is logged but
// never stalls buffering.
func (l *Listener) handleMessage(ctx context.Context, logger zerolog.Logger, message []byte, seen map[string]struct{}) {
	envelope, err := audio.ParseEnvelope(message)
	if err != nil {
		observability.RecordChunkRejected("parse")
		logger.Warn().Err(err).Msg("Dropping unparseable message")
		return
	}
	if !envelope.IsAudio() {
		observability.RecordChunkRejected("event")
		logger.Debug().Str("event", envelope.Event).Msg("Ignoring non-audio event")
		return
	}

	chunk, err := audio.DecodeChunk(envelope)
	if err != nil {
		observability.RecordChunkRejected("decode")
		logger.Warn().Err(err).Msg("Dropping undecodable chunk")
		return
	}

	if err := l.chunks.AppendChunk(ctx, chunk); err != nil {
		observability.RecordError("store", "listener")
		logger.Error().Err(err).
			Str("session_id", chunk.SessionID).
			Msg("Failed to persist chunk")
	}

	session := l.registry.GetOrCreate(chunk.SessionID, chunk.BotID)
	seen[chunk.SessionID] = struct{}{}

	windows := session.Ingest(chunk)
	for i := range windows {
		if err := l.windows.Submit(&windows[i]); err != nil {
			observability.RecordError("dispatch", "listener")
			logger.Error().Err(err).
				Str("session_id", chunk.SessionID).
				Float64("timestamp", windows[i].Timestamp.Relative).
				Msg("Failed to submit window for transcription")
		}
	}
}
