package tts

import (
	"bytes"
	"context"
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

// Synthesizer converts text into an MP3 clip suitable for in-call playback.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// HTTPSynthesizer calls an external text-to-speech service.
type HTTPSynthesizer struct {
	serviceURL string
	authToken  string
	httpClient *http.Client
	retry      *resilience.RetryConfig
	logger     zerolog.Logger
}

// synthesizeRequest is the request payload for the TTS service.
type synthesizeRequest struct {
	Text string `json:"text"`
}

func NewHTTPSynthesizer(cfg *config.Config) *HTTPSynthesizer {
	return &HTTPSynthesizer{
		serviceURL: cfg.TTSServiceURL,
		authToken:  cfg.TTSAuthToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		logger: observability.GetLogger().With().Str("component", "tts").Logger(),
	}
}

// Synthesize posts the text to the TTS service and returns the MP3 bytes.
// Transient failures are retried with backoff.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}

	body, err := json.Marshal(synthesizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var audio []byte
	err = resilience.Retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serviceURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if s.authToken != "" {
			req.Header.Set("Authorization", "Bearer "+s.authToken)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return fmt.Errorf("tts service returned %d: %s", resp.StatusCode, msg)
		}

		audio, err = io.ReadAll(resp.Body)
		return err
	}, s.retry)
	if err != nil {
		observability.RecordError("http", "tts")
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}

	s.logger.Debug().Int("bytes", len(audio)).Msg("Text synthesized")
	return audio, nil
}
