package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	listenRest "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	restinterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/config"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/resilience"
	"github.com/PrathameshPGAGI/webhook/internal/store"
)

// DeepgramEngine transcribes windows through Deepgram's prerecorded API.
// Each window is wrapped in a WAV header so the service can detect the
// sample rate and encoding without extra query parameters.
type DeepgramEngine struct {
	client         *listenRest.Client
	options        *interfaces.PreRecordedTranscriptionOptions
	sampleRate     int
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramEngine creates a prerecorded transcription client.
func NewDeepgramEngine(cfg *config.Config) (*DeepgramEngine, error) {
	if cfg.DeepgramAPIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}

	c := listenClient.NewREST(cfg.DeepgramAPIKey, &interfaces.ClientOptions{})
	client := listenRest.New(c)

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       cfg.DeepgramModel,
		Language:    cfg.DeepgramLanguage,
		Punctuate:   true,
		SmartFormat: true,
		Utterances:  true,
	}

	circuitBreaker := resilience.NewCircuitBreaker(
		"deepgram",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
	)

	return &DeepgramEngine{
		client:         client,
		options:        options,
		sampleRate:     cfg.SampleRate,
		circuitBreaker: circuitBreaker,
		logger:         observability.GetLogger().With().Str("component", "deepgram").Logger(),
	}, nil
}

// Transcribe sends one PCM window to Deepgram and maps the response
// utterances to segments.
func (e *DeepgramEngine) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	wav, err := audio.EncodeWAV(pcm, e.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to encode window: %w", err)
	}

	var result *Result
	err = e.circuitBreaker.Call(func() error {
		res, err := e.client.FromStream(ctx, bytes.NewReader(wav), e.options)
		if err != nil {
			return fmt.Errorf("deepgram request failed: %w", err)
		}
		result = mapResponse(res)
		return nil
	})
	observability.UpdateCircuitBreakerState("deepgram", int(e.circuitBreaker.State()))
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mapResponse(res *restinterfaces.PreRecordedResponse) *Result {
	result := &Result{}
	if res == nil || res.Results == nil {
		return result
	}

	for i := range res.Results.Utterances {
		utt := res.Results.Utterances[i]
		if utt.Transcript == "" {
			continue
		}
		result.Segments = append(result.Segments, store.Segment{
			Start: utt.Start,
			End:   utt.End,
			Text:  utt.Transcript,
		})
	}

	if len(res.Results.Channels) > 0 && len(res.Results.Channels[0].Alternatives) > 0 {
		result.Text = res.Results.Channels[0].Alternatives[0].Transcript
	}
	return result
}
