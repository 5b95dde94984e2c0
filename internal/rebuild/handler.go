package rebuild

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
)

// Handler serves reassembled session audio over HTTP.
type Handler struct {
	reconstructor *Reconstructor
	sampleRate    int
}

func NewHandler(reconstructor *Reconstructor, sampleRate int) *Handler {
	return &Handler{reconstructor: reconstructor, sampleRate: sampleRate}
}

// ServeHTTP handles GET /audio/{botID}. The default response is the rebuild
// result as JSON, with the combined audio base64-encoded alongside the
// diagnostics; ?format=wav returns a playable WAV file instead.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	botID := r.PathValue("botID")
	if botID == "" {
		writeError(w, http.StatusBadRequest, "bot_id is required")
		return
	}

	result, err := h.reconstructor.Reconstruct(r.Context(), botID)
	if err != nil {
		if errors.Is(err, ErrNoAudioData) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("No audio data found for bot_id: %s", botID))
			return
		}
		logger := observability.GetLogger()
		logger.Error().Err(err).Str("bot_id", botID).Msg("Rebuild request failed")
		writeError(w, http.StatusInternalServerError, "failed to reconstruct audio")
		return
	}

	if r.URL.Query().Get("format") == "wav" {
		wav, err := audio.EncodeWAV(result.Combined, h.sampleRate)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to encode audio")
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", botID+".wav"))
		w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
		for _, warning := range result.Warnings {
			w.Header().Add("X-Audio-Warning", warning)
		}
		_, _ = w.Write(wav)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
