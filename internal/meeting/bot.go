package meeting

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/config"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/recall"
	"github.com/PrathameshPGAGI/webhook/internal/tts"
)

// BotHandler dispatches bots into meetings and optionally announces their
// presence with a synthesized voice line.
type BotHandler struct {
	client      *recall.Client
	synthesizer tts.Synthesizer
	audioWSURL  string
	webhookURL  string
	logger      zerolog.Logger
}

// NewBotHandler builds the handler. synthesizer may be nil when no TTS
// service is configured; announcements are then skipped.
func NewBotHandler(client *recall.Client, synthesizer tts.Synthesizer, cfg *config.Config) *BotHandler {
	return &BotHandler{
		client:      client,
		synthesizer: synthesizer,
		audioWSURL:  cfg.AudioStreamURL(),
		webhookURL:  cfg.TranscriptWebhookURL(),
		logger:      observability.GetLogger().With().Str("component", "bot").Logger(),
	}
}

type createBotRequest struct {
	MeetingURL string `json:"meeting_url"`
	Announce   string `json:"announce,omitempty"`
}

type createBotResponse struct {
	BotID string `json:"bot_id"`
}

// ServeHTTP handles POST /api/bot: creates a bot for the requested meeting
// and returns its id. Join polling and the optional announcement run in the
// background so the caller is not held for the joining handshake.
func (h *BotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MeetingURL == "" {
		writeJSONError(w, http.StatusBadRequest, "meeting_url is required")
		return
	}
	if h.audioWSURL == "" {
		writeJSONError(w, http.StatusServiceUnavailable, "PUBLIC_HOST is not configured")
		return
	}

	botID, err := h.client.CreateBot(r.Context(), req.MeetingURL, h.audioWSURL, h.webhookURL)
	if err != nil {
		h.logger.Error().Err(err).Str("meeting_url", req.MeetingURL).Msg("Bot creation failed")
		writeJSONError(w, http.StatusBadGateway, "failed to create bot")
		return
	}

	go h.joinAndAnnounce(botID, req.Announce)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createBotResponse{BotID: botID})
}

func (h *BotHandler) joinAndAnnounce(botID, announce string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := h.client.WaitUntilJoined(ctx, botID); err != nil {
		h.logger.Error().Err(err).Str("bot_id", botID).Msg("Bot never joined")
		return
	}
	if announce == "" || h.synthesizer == nil {
		return
	}

	clip, err := h.synthesizer.Synthesize(ctx, announce)
	if err != nil {
		h.logger.Error().Err(err).Str("bot_id", botID).Msg("Announcement synthesis failed")
		return
	}
	if err := h.client.PlayAudio(ctx, botID, clip); err != nil {
		h.logger.Error().Err(err).Str("bot_id", botID).Msg("Announcement playback failed")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
