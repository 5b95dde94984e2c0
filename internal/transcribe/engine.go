package transcribe

import (
	"context"

	"github.com/PrathameshPGAGI/webhook/internal/store"
)

// Result is the outcome of transcribing one audio window.
type Result struct {
	Text     string
	Segments []store.Segment
}

// Engine transcribes a window of raw 16-bit PCM audio.
type Engine interface {
	Transcribe(ctx context.Context, pcm []byte) (*Result, error)
}
