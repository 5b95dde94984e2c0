package recall

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/config"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/resilience"
)

const (
	statusInCallRecording = "in_call_recording"

	joinPollInterval = 3 * time.Second
	joinMaxPolls     = 20
)

// Client drives the Recall.ai bot API: creating a meeting bot, waiting for
// it to join, and playing audio into the call.
type Client struct {
	baseURL      string
	apiKey       string
	botName      string
	httpClient   *http.Client
	retry        *resilience.RetryConfig
	joinInterval time.Duration
	joinMaxPolls int
	logger       zerolog.Logger
}

// BotConfig is the bot creation request body.
type BotConfig struct {
	BotName              string                `json:"bot_name"`
	MeetingURL           string                `json:"meeting_url"`
	AutomaticAudioOutput *AutomaticAudioOutput `json:"automatic_audio_output,omitempty"`
	RecordingConfig      *RecordingConfig      `json:"recording_config,omitempty"`
}

type AutomaticAudioOutput struct {
	InCallRecording AudioOutputData `json:"in_call_recording"`
}

type AudioOutputData struct {
	Data AudioPayload `json:"data"`
}

// AudioPayload is a base64 encoded audio clip for playback in the call.
type AudioPayload struct {
	Kind    string `json:"kind"`
	B64Data string `json:"b64_data"`
}

type RecordingConfig struct {
	AudioMixedRaw     *struct{}          `json:"audio_mixed_raw,omitempty"`
	Transcript        *TranscriptConfig  `json:"transcript,omitempty"`
	RealtimeEndpoints []RealtimeEndpoint `json:"realtime_endpoints,omitempty"`
}

type TranscriptConfig struct {
	Provider TranscriptProvider `json:"provider"`
}

type TranscriptProvider struct {
	DeepgramStreaming struct{} `json:"deepgram_streaming"`
}

// RealtimeEndpoint routes recording events to a websocket or webhook URL.
type RealtimeEndpoint struct {
	Type   string   `json:"type"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// Bot is the subset of the bot resource the client inspects.
type Bot struct {
	ID            string         `json:"id"`
	StatusChanges []StatusChange `json:"status_changes"`
}

type StatusChange struct {
	Code      string `json:"code"`
	CreatedAt string `json:"created_at"`
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:      cfg.RecallBaseURL,
		apiKey:       cfg.RecallAPIKey,
		botName:      cfg.BotName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		joinInterval: joinPollInterval,
		joinMaxPolls: joinMaxPolls,
		logger:       observability.GetLogger().With().Str("component", "recall").Logger(),
	}
}

// CreateBot sends a bot into the meeting. The bot streams mixed raw audio
// to audioWSURL and, when transcriptWebhookURL is set, posts provider
// transcript events there as well. Bot creation primes the call with a
// short silent clip so later playback starts without a permission prompt.
func (c *Client) CreateBot(ctx context.Context, meetingURL, audioWSURL, transcriptWebhookURL string) (string, error) {
	silent := base64.StdEncoding.EncodeToString(make([]byte, 1000))

	recording := &RecordingConfig{
		AudioMixedRaw: &struct{}{},
		RealtimeEndpoints: []RealtimeEndpoint{
			{
				Type:   "websocket",
				URL:    audioWSURL,
				Events: []string{"audio_mixed_raw.data"},
			},
		},
	}
	if transcriptWebhookURL != "" {
		recording.Transcript = &TranscriptConfig{}
		recording.RealtimeEndpoints = append(recording.RealtimeEndpoints, RealtimeEndpoint{
			Type:   "webhook",
			URL:    transcriptWebhookURL,
			Events: []string{"transcript.data", "transcript.partial_data"},
		})
	}

	cfg := BotConfig{
		BotName:    c.botName,
		MeetingURL: meetingURL,
		AutomaticAudioOutput: &AutomaticAudioOutput{
			InCallRecording: AudioOutputData{
				Data: AudioPayload{Kind: "mp3", B64Data: silent},
			},
		},
		RecordingConfig: recording,
	}

	var bot Bot
	if err := c.doJSON(ctx, http.MethodPost, "/bot", cfg, &bot); err != nil {
		return "", fmt.Errorf("failed to create bot: %w", err)
	}
	c.logger.Info().Str("bot_id", bot.ID).Str("meeting_url", meetingURL).Msg("Bot created")
	return bot.ID, nil
}

// GetBot fetches the bot resource.
func (c *Client) GetBot(ctx context.Context, botID string) (*Bot, error) {
	var bot Bot
	if err := c.doJSON(ctx, http.MethodGet, "/bot/"+botID, nil, &bot); err != nil {
		return nil, fmt.Errorf("failed to get bot %s: %w", botID, err)
	}
	return &bot, nil
}

// WaitUntilJoined polls the bot until its latest status is in_call_recording.
func (c *Client) WaitUntilJoined(ctx context.Context, botID string) error {
	ticker := time.NewTicker(c.joinInterval)
	defer ticker.Stop()

	for i := 0; i < c.joinMaxPolls; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		bot, err := c.GetBot(ctx, botID)
		if err != nil {
			c.logger.Warn().Err(err).Str("bot_id", botID).Msg("Bot status poll failed")
			continue
		}
		if n := len(bot.StatusChanges); n > 0 && bot.StatusChanges[n-1].Code == statusInCallRecording {
			c.logger.Info().Str("bot_id", botID).Msg("Bot joined meeting")
			return nil
		}
	}
	return fmt.Errorf("bot %s did not join within %s", botID, time.Duration(c.joinMaxPolls)*c.joinInterval)
}

// PlayAudio plays an MP3 clip into the meeting through the bot.
func (c *Client) PlayAudio(ctx context.Context, botID string, mp3 []byte) error {
	payload := AudioPayload{
		Kind:    "mp3",
		B64Data: base64.StdEncoding.EncodeToString(mp3),
	}
	if err := c.doJSON(ctx, http.MethodPost, "/bot/"+botID+"/output_audio/", payload, nil); err != nil {
		return fmt.Errorf("failed to play audio through bot %s: %w", botID, err)
	}
	c.logger.Info().Str("bot_id", botID).Int("bytes", len(mp3)).Msg("Audio played into meeting")
	return nil
}

// doJSON issues one API request, retrying transport errors and 5xx
// responses. Client errors are surfaced immediately.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	return resilience.Retry(ctx, func() error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return resilience.Permanent(fmt.Errorf("failed to build request: %w", err))
		}
		req.Header.Set("Authorization", "Token "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			observability.RecordError("http", "recall")
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			observability.RecordError("http", "recall")
			apiErr := fmt.Errorf("recall API returned %d: %s", resp.StatusCode, data)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return resilience.Permanent(apiErr)
			}
			return apiErr
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resilience.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}, c.retry)
}
