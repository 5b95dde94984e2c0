package pipeline

import (
	"github.com/PrathameshPGAGI/webhook/internal/audio"
)

const bytesPerSample = 2 // 16-bit mono PCM

// Window is a contiguous slice of exactly the target sample count, tagged
// with the timestamp of the chunk whose tail supplied its last sample.
// Windows are derived from the stream and never stored.
type Window struct {
	SessionID   string
	BotID       string
	Timestamp   audio.Timestamp
	PCM         []byte
	SampleCount int
}

// Windower owns the window sizing policy: a fixed duration at a fixed sample
// rate yields a fixed sample count per window.
type Windower struct {
	targetSamples int
}

// NewWindower derives the target sample count from the window duration and
// sample rate.
func NewWindower(windowSeconds float64, sampleRate int) *Windower {
	return &Windower{targetSamples: int(windowSeconds * float64(sampleRate))}
}

// TargetSamples returns the exact sample count of every emitted window.
func (w *Windower) TargetSamples() int { return w.targetSamples }

// NewBuffer creates an empty per-session accumulator using this windower's
// sizing policy.
func (w *Windower) NewBuffer(sessionID, botID string) *Buffer {
	return &Buffer{
		sessionID:     sessionID,
		botID:         botID,
		targetSamples: w.targetSamples,
	}
}

// Buffer accumulates a session's pending sample blocks between window
// emissions. It performs no I/O and no locking; callers serialize access
// per session.
type Buffer struct {
	sessionID     string
	botID         string
	targetSamples int

	pending        [][]byte // ordered PCM blocks, arrival order
	pendingSamples int
	lastSeen       audio.Timestamp
}

// Ingest appends the chunk's samples to the tail of pending data and slices
// off as many full windows as the buffer now holds. A single large chunk may
// emit several windows from one call. The remainder, always strictly smaller
// than one window, is carried forward.
func (b *Buffer) Ingest(chunk *audio.Chunk) []Window {
	if chunk.SampleCount > 0 {
		block := make([]byte, len(chunk.PCM))
		copy(block, chunk.PCM)
		b.pending = append(b.pending, block)
		b.pendingSamples += chunk.SampleCount
	}
	b.lastSeen = chunk.Timestamp

	var windows []Window
	for b.pendingSamples >= b.targetSamples {
		windows = append(windows, Window{
			SessionID:   b.sessionID,
			BotID:       b.botID,
			Timestamp:   b.lastSeen,
			PCM:         b.sliceWindow(),
			SampleCount: b.targetSamples,
		})
	}
	return windows
}

// sliceWindow removes exactly targetSamples samples from the head of the
// pending blocks, splitting the block at the boundary when needed.
func (b *Buffer) sliceWindow() []byte {
	targetBytes := b.targetSamples * bytesPerSample
	out := make([]byte, 0, targetBytes)

	for len(out) < targetBytes {
		need := targetBytes - len(out)
		head := b.pending[0]
		if len(head) <= need {
			out = append(out, head...)
			b.pending = b.pending[1:]
		} else {
			out = append(out, head[:need]...)
			b.pending[0] = head[need:]
		}
	}

	b.pendingSamples -= b.targetSamples
	return out
}

// PendingSamples returns the size of the carried-forward remainder.
func (b *Buffer) PendingSamples() int { return b.pendingSamples }

// PendingPCM returns a copy of the remainder bytes in arrival order.
func (b *Buffer) PendingPCM() []byte {
	out := make([]byte, 0, b.pendingSamples*bytesPerSample)
	for _, block := range b.pending {
		out = append(out, block...)
	}
	return out
}

// LastSeen returns the timestamp of the most recently ingested chunk.
func (b *Buffer) LastSeen() audio.Timestamp { return b.lastSeen }
