package meeting

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PrathameshPGAGI/webhook/internal/observability"
)

// transcriptEvent is a provider transcript webhook payload. Only the
// participant and spoken words are consumed.
type transcriptEvent struct {
	Event string `json:"event"`
	Data  struct {
		Data struct {
			Participant struct {
				Name string `json:"name"`
			} `json:"participant"`
			Words []struct {
				Text string `json:"text"`
			} `json:"words"`
		} `json:"data"`
	} `json:"data"`
}

// HandleTranscriptWebhook receives live transcript events from the meeting
// platform's own transcription provider and logs the spoken lines. These
// events are advisory; the authoritative transcript comes from the window
// pipeline.
func HandleTranscriptWebhook(w http.ResponseWriter, r *http.Request) {
	logger := observability.GetLogger()

	var event transcriptEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		logger.Warn().Err(err).Msg("Malformed transcript webhook body")
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	words := make([]string, 0, len(event.Data.Data.Words))
	for _, word := range event.Data.Data.Words {
		words = append(words, word.Text)
	}
	if len(words) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	participant := event.Data.Data.Participant.Name
	if participant == "" {
		participant = "Unknown"
	}

	logger.Info().
		Str("component", "webhook").
		Str("participant", participant).
		Str("event", event.Event).
		Msg(participant + " said: " + strings.Join(words, " "))

	w.WriteHeader(http.StatusOK)
}
