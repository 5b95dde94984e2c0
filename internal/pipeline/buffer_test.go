package pipeline

import (
	"bytes"
	"testing"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
)

func chunkOf(samples int, rel float64) *audio.Chunk {
	pcm := make([]byte, samples*2)
	for i := range pcm {
		pcm[i] = byte(i + int(rel*31)) // distinguishable payload
	}
	return &audio.Chunk{
		SessionID:   "rec-1",
		BotID:       "bot-1",
		Timestamp:   audio.Timestamp{Relative: rel},
		PCM:         pcm,
		SampleCount: samples,
	}
}

func TestWindower_TargetSamples(t *testing.T) {
	w := NewWindower(10.0, 16000)
	if w.TargetSamples() != 160000 {
		t.Errorf("Expected 160000 target samples, got %d", w.TargetSamples())
	}
}

// Three 60k-sample chunks against a 160k window: nothing after two chunks,
// exactly one window plus a 20k remainder after the third.
func TestBuffer_ScenarioThreeChunks(t *testing.T) {
	w := NewWindower(10.0, 16000)
	buf := w.NewBuffer("rec-1", "bot-1")

	if got := buf.Ingest(chunkOf(60000, 1.875)); len(got) != 0 {
		t.Fatalf("Expected no window after chunk 1, got %d", len(got))
	}
	if got := buf.Ingest(chunkOf(60000, 3.75)); len(got) != 0 {
		t.Fatalf("Expected no window after chunk 2, got %d", len(got))
	}

	windows := buf.Ingest(chunkOf(60000, 5.625))
	if len(windows) != 1 {
		t.Fatalf("Expected exactly one window after chunk 3, got %d", len(windows))
	}
	if windows[0].SampleCount != 160000 {
		t.Errorf("Expected window of 160000 samples, got %d", windows[0].SampleCount)
	}
	if len(windows[0].PCM) != 320000 {
		t.Errorf("Expected 320000 window bytes, got %d", len(windows[0].PCM))
	}
	if buf.PendingSamples() != 20000 {
		t.Errorf("Expected 20000 remainder samples, got %d", buf.PendingSamples())
	}
	if windows[0].Timestamp.Relative != 5.625 {
		t.Errorf("Expected window timestamp from the closing chunk, got %f", windows[0].Timestamp.Relative)
	}
}

// Every emitted window holds exactly the target sample count.
func TestBuffer_ExactWindowSize(t *testing.T) {
	w := NewWindower(0.01, 16000) // 160-sample windows
	buf := w.NewBuffer("rec-1", "bot-1")

	sizes := []int{100, 7, 253, 160, 1, 480, 33}
	rel := 0.0
	for _, n := range sizes {
		rel += float64(n) / 16000
		for _, win := range buf.Ingest(chunkOf(n, rel)) {
			if win.SampleCount != 160 {
				t.Errorf("Window with %d samples, want exactly 160", win.SampleCount)
			}
			if len(win.PCM) != 320 {
				t.Errorf("Window with %d bytes, want exactly 320", len(win.PCM))
			}
		}
		if buf.PendingSamples() >= 160 {
			t.Errorf("Remainder %d not smaller than window", buf.PendingSamples())
		}
	}
}

// A single chunk larger than two windows emits two windows from one call.
func TestBuffer_MultiWindowCatchUp(t *testing.T) {
	w := NewWindower(0.01, 16000) // 160-sample windows
	buf := w.NewBuffer("rec-1", "bot-1")

	windows := buf.Ingest(chunkOf(350, 0.021875)) // > 2 x 160
	if len(windows) != 2 {
		t.Fatalf("Expected 2 windows from one ingest, got %d", len(windows))
	}
	for i, win := range windows {
		if win.SampleCount != 160 {
			t.Errorf("Window %d has %d samples, want 160", i, win.SampleCount)
		}
	}
	if buf.PendingSamples() != 30 {
		t.Errorf("Expected 30 remainder samples, got %d", buf.PendingSamples())
	}
}

// Windows plus remainder reproduce the input byte-for-byte, in order.
func TestBuffer_NoLossNoDuplication(t *testing.T) {
	w := NewWindower(0.01, 16000) // 160-sample windows
	buf := w.NewBuffer("rec-1", "bot-1")

	var input bytes.Buffer
	var output bytes.Buffer

	sizes := []int{130, 90, 400, 1, 0, 159, 161, 320, 17}
	rel := 0.0
	for _, n := range sizes {
		rel += float64(n) / 16000
		c := chunkOf(n, rel)
		input.Write(c.PCM)
		for _, win := range buf.Ingest(c) {
			output.Write(win.PCM)
		}
	}
	output.Write(buf.PendingPCM())

	if !bytes.Equal(input.Bytes(), output.Bytes()) {
		t.Fatalf("Stream mismatch: %d bytes in, %d bytes out", input.Len(), output.Len())
	}
}

func TestBuffer_EmptyChunkUpdatesTimestamp(t *testing.T) {
	w := NewWindower(0.01, 16000)
	buf := w.NewBuffer("rec-1", "bot-1")

	buf.Ingest(chunkOf(0, 2.0))
	if buf.PendingSamples() != 0 {
		t.Errorf("Expected no pending samples, got %d", buf.PendingSamples())
	}
	if buf.LastSeen().Relative != 2.0 {
		t.Errorf("Expected last seen 2.0, got %f", buf.LastSeen().Relative)
	}
}

// The buffer never mutates or aliases caller-owned chunk memory.
func TestBuffer_CopiesChunkData(t *testing.T) {
	w := NewWindower(0.01, 16000)
	buf := w.NewBuffer("rec-1", "bot-1")

	c := chunkOf(100, 0.00625)
	original := append([]byte(nil), c.PCM...)
	buf.Ingest(c)

	for i := range c.PCM {
		c.PCM[i] = 0xFF
	}

	if !bytes.Equal(buf.PendingPCM(), original) {
		t.Error("Buffer aliased caller memory instead of copying")
	}
}
