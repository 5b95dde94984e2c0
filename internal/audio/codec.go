package audio

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// EventAudioMixedRaw is the envelope event carrying raw mixed meeting audio.
const EventAudioMixedRaw = "audio_mixed_raw.data"

// DecodeError indicates a malformed transport payload. Chunks that fail to
// decode are dropped before they reach any session buffer.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chunk decode: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("chunk decode: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Envelope is the wire representation of one realtime event from the
// meeting-bot platform.
type Envelope struct {
	Event string `json:"event"`
	Data  struct {
		Bot struct {
			ID string `json:"id"`
		} `json:"bot"`
		Recording struct {
			ID string `json:"id"`
		} `json:"recording"`
		Data struct {
			Buffer    string `json:"buffer"`
			Timestamp struct {
				Relative float64 `json:"relative"`
				Absolute string  `json:"absolute"`
			} `json:"timestamp"`
		} `json:"data"`
	} `json:"data"`
}

// Timestamp is the position of a chunk within a recording session.
type Timestamp struct {
	Relative float64   // Seconds from the start of the recording
	Absolute time.Time // Wall-clock instant the chunk was produced
}

// Chunk is one decoded unit of audio delivered over the transport.
// Immutable once decoded.
type Chunk struct {
	SessionID   string // Recording id: the unit of windowing and persistence grouping
	BotID       string
	Timestamp   Timestamp
	PCM         []byte // 16-bit signed little-endian mono samples
	SampleCount int
}

// ParseEnvelope decodes the JSON wire message. A JSON error is a DecodeError.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON envelope", Err: err}
	}
	return &env, nil
}

// IsAudio reports whether the envelope carries raw mixed audio. Envelopes
// with other events are ignored by the ingestion path, not errored.
func (e *Envelope) IsAudio() bool {
	return e.Event == EventAudioMixedRaw
}

// DecodeChunk converts an audio envelope into a Chunk, validating the base64
// payload and PCM framing.
func DecodeChunk(env *Envelope) (*Chunk, error) {
	if !env.IsAudio() {
		return nil, &DecodeError{Reason: fmt.Sprintf("unexpected event %q", env.Event)}
	}
	if env.Data.Recording.ID == "" {
		return nil, &DecodeError{Reason: "missing recording id"}
	}
	if env.Data.Data.Buffer == "" {
		return nil, &DecodeError{Reason: "missing audio buffer"}
	}

	pcm, err := base64.StdEncoding.DecodeString(env.Data.Data.Buffer)
	if err != nil {
		return nil, &DecodeError{Reason: "invalid base64 buffer", Err: err}
	}
	if len(pcm)%2 != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("PCM byte length must be even, got %d", len(pcm))}
	}

	return &Chunk{
		SessionID: env.Data.Recording.ID,
		BotID:     env.Data.Bot.ID,
		Timestamp: Timestamp{
			Relative: env.Data.Data.Timestamp.Relative,
			Absolute: parseAbsolute(env.Data.Data.Timestamp.Absolute),
		},
		PCM:         pcm,
		SampleCount: len(pcm) / 2,
	}, nil
}

// EncodeChunkBuffer re-encodes chunk PCM for the document store.
func EncodeChunkBuffer(pcm []byte) string {
	return base64.StdEncoding.EncodeToString(pcm)
}

// parseAbsolute accepts RFC3339 timestamps, with or without a timezone
// suffix. A zero time is returned for values that cannot be parsed; the
// relative timestamp remains authoritative for ordering.
func parseAbsolute(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
