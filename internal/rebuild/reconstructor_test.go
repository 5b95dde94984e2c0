package rebuild

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/store"
)

type fakeReader struct {
	chunks []store.PersistedChunk
	err    error
}

func (f *fakeReader) ChunksByBot(ctx context.Context, botID string) ([]store.PersistedChunk, error) {
	return f.chunks, f.err
}

func chunkAt(relative float64, pcm []byte) store.PersistedChunk {
	return store.PersistedChunk{
		BotID:     "bot-1",
		SessionID: "rec-1",
		Buffer:    base64.StdEncoding.EncodeToString(pcm),
		Timestamp: store.ChunkTimestamp{Relative: relative},
	}
}

// tonePCM builds n samples of constant amplitude.
func tonePCM(n int, amplitude int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = amplitude
	}
	return audio.SamplesToBytes(samples)
}

func TestReconstructConcatenatesOrderedChunks(t *testing.T) {
	a := tonePCM(4, 1000)
	b := tonePCM(4, 2000)
	c := tonePCM(4, 3000)
	reader := &fakeReader{chunks: []store.PersistedChunk{
		chunkAt(0.0, a), chunkAt(0.5, b), chunkAt(1.0, c),
	}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	want := append(append(append([]byte{}, a...), b...), c...)
	if !bytes.Equal(result.Combined, want) {
		t.Errorf("combined bytes do not match chunk order")
	}
	if result.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", result.TotalRecords)
	}
	if result.FirstTimestamp != 0.0 || result.LastTimestamp != 1.0 {
		t.Errorf("timestamp span = [%v, %v]", result.FirstTimestamp, result.LastTimestamp)
	}
	if result.BotID != "bot-1" {
		t.Errorf("BotID = %q", result.BotID)
	}
}

func TestReconstructSortsOutOfOrderChunks(t *testing.T) {
	a := tonePCM(4, 1000)
	b := tonePCM(4, 2000)
	c := tonePCM(4, 3000)
	reader := &fakeReader{chunks: []store.PersistedChunk{
		chunkAt(1.0, b), chunkAt(2.0, c), chunkAt(0.5, a),
	}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	want := append(append(append([]byte{}, a...), b...), c...)
	if !bytes.Equal(result.Combined, want) {
		t.Errorf("combined audio not in timestamp order")
	}
	if result.FirstTimestamp != 0.5 || result.LastTimestamp != 2.0 {
		t.Errorf("timestamp span = [%v, %v], want [0.5, 2.0]", result.FirstTimestamp, result.LastTimestamp)
	}
}

func TestReconstructNoData(t *testing.T) {
	r := NewReconstructor(&fakeReader{}, 16000)
	_, err := r.Reconstruct(context.Background(), "bot-missing")
	if !errors.Is(err, ErrNoAudioData) {
		t.Fatalf("err = %v, want ErrNoAudioData", err)
	}
}

func TestReconstructReaderError(t *testing.T) {
	r := NewReconstructor(&fakeReader{err: errors.New("boom")}, 16000)
	_, err := r.Reconstruct(context.Background(), "bot-1")
	if err == nil || errors.Is(err, ErrNoAudioData) {
		t.Fatalf("expected wrapped reader error, got %v", err)
	}
}

func TestReconstructSkipsUndecodableChunks(t *testing.T) {
	good := tonePCM(4, 5000)
	bad := store.PersistedChunk{
		BotID:     "bot-1",
		Buffer:    "!!!not-base64!!!",
		Timestamp: store.ChunkTimestamp{Relative: 0.5},
	}
	reader := &fakeReader{chunks: []store.PersistedChunk{
		chunkAt(0.0, good), bad, chunkAt(1.0, good),
	}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if result.SkippedChunks != 1 {
		t.Errorf("SkippedChunks = %d, want 1", result.SkippedChunks)
	}
	if result.CombinedBytesLength != 2*len(good) {
		t.Errorf("CombinedBytesLength = %d, want %d", result.CombinedBytesLength, 2*len(good))
	}
}

func TestReconstructSkipsTruncatedFrames(t *testing.T) {
	good := tonePCM(4, 5000)
	truncated := store.PersistedChunk{
		BotID:     "bot-1",
		Buffer:    base64.StdEncoding.EncodeToString(append(append([]byte{}, good...), 0x7f)),
		Timestamp: store.ChunkTimestamp{Relative: 0.5},
	}
	reader := &fakeReader{chunks: []store.PersistedChunk{
		chunkAt(0.0, good), truncated, chunkAt(1.0, good),
	}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if result.SkippedChunks != 1 {
		t.Errorf("SkippedChunks = %d, want 1", result.SkippedChunks)
	}
	if result.CombinedBytesLength != 2*len(good) {
		t.Errorf("CombinedBytesLength = %d, want %d", result.CombinedBytesLength, 2*len(good))
	}
}

func TestReconstructSilenceWarning(t *testing.T) {
	quiet := tonePCM(16000, 30)
	reader := &fakeReader{chunks: []store.PersistedChunk{chunkAt(0.0, quiet)}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !hasWarning(result.Warnings, "silent") {
		t.Errorf("expected silence warning, got %v", result.Warnings)
	}
}

func TestReconstructLoudAudioNoSilenceWarning(t *testing.T) {
	loud := tonePCM(16000, 30000)
	reader := &fakeReader{chunks: []store.PersistedChunk{chunkAt(0.0, loud)}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if hasWarning(result.Warnings, "silent") {
		t.Errorf("unexpected silence warning: %v", result.Warnings)
	}
}

func TestReconstructDurationMismatchWarning(t *testing.T) {
	// 5 seconds of audio, but timestamps claim 12 seconds elapsed.
	pcm := tonePCM(5*16000, 4000)
	reader := &fakeReader{chunks: []store.PersistedChunk{chunkAt(12.0, pcm)}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if !hasWarning(result.Warnings, "duration mismatch") {
		t.Errorf("expected duration warning, got %v", result.Warnings)
	}
}

func TestReconstructDurationWithinTolerance(t *testing.T) {
	// 8 seconds of audio against a 12 second span stays within tolerance.
	pcm := tonePCM(8*16000, 4000)
	reader := &fakeReader{chunks: []store.PersistedChunk{chunkAt(12.0, pcm)}}
	r := NewReconstructor(reader, 16000)

	result, err := r.Reconstruct(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	if hasWarning(result.Warnings, "duration mismatch") {
		t.Errorf("unexpected duration warning: %v", result.Warnings)
	}
}

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}
