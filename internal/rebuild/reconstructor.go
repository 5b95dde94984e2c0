package rebuild

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
	"github.com/PrathameshPGAGI/webhook/internal/store"
)

// ErrNoAudioData is returned when a session has no stored chunks.
var ErrNoAudioData = errors.New("no audio data found")

const (
	// durationMismatchSeconds is the tolerance between the duration implied
	// by chunk timestamps and the duration implied by the reassembled bytes.
	durationMismatchSeconds = 5.0
	// silenceAmplitude marks a rebuilt stream as near-silent when no sample
	// exceeds it.
	silenceAmplitude = 100
)

// ChunkReader loads a bot's chunks in timestamp order.
type ChunkReader interface {
	ChunksByBot(ctx context.Context, botID string) ([]store.PersistedChunk, error)
}

// Result is the reassembled audio for one session plus diagnostics.
type Result struct {
	BotID               string   `json:"bot_id"`
	TotalRecords        int      `json:"total_records"`
	SkippedChunks       int      `json:"skipped_chunks"`
	CombinedBytesLength int      `json:"combined_bytes_length"`
	DurationSeconds     float64  `json:"duration_seconds"`
	FirstTimestamp      float64  `json:"first_timestamp"`
	LastTimestamp       float64  `json:"last_timestamp"`
	Warnings            []string `json:"warnings,omitempty"`
	Combined            []byte   `json:"combined_buffer"`
}

// Reconstructor reassembles a session's audio from persisted chunks.
type Reconstructor struct {
	reader     ChunkReader
	sampleRate int
	logger     zerolog.Logger
}

func NewReconstructor(reader ChunkReader, sampleRate int) *Reconstructor {
	return &Reconstructor{
		reader:     reader,
		sampleRate: sampleRate,
		logger:     observability.GetLogger().With().Str("component", "reconstructor").Logger(),
	}
}

// Reconstruct concatenates the bot's chunks in timestamp order and checks
// the result for duration drift and silence. Chunks whose payload fails to
// decode are skipped and counted rather than failing the rebuild.
func (r *Reconstructor) Reconstruct(ctx context.Context, botID string) (*Result, error) {
	chunks, err := r.reader.ChunksByBot(ctx, botID)
	if err != nil {
		observability.RecordReconstruction("error")
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		observability.RecordReconstruction("not_found")
		return nil, ErrNoAudioData
	}

	logger := r.logger.With().Str("bot_id", botID).Logger()

	// The store reader is expected to sort, but the waveform must be in
	// timestamp order no matter what the reader returns.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Timestamp.Relative < chunks[j].Timestamp.Relative
	})

	var combined bytes.Buffer
	skipped := 0
	for i := range chunks {
		pcm, err := base64.StdEncoding.DecodeString(chunks[i].Buffer)
		if err != nil {
			skipped++
			logger.Warn().Err(err).Int("record", i).Msg("Skipping undecodable chunk")
			continue
		}
		if len(pcm)%2 != 0 {
			skipped++
			logger.Warn().Int("record", i).Int("bytes", len(pcm)).
				Msg("Skipping chunk with truncated 16-bit frame")
			continue
		}
		combined.Write(pcm)
	}

	result := &Result{
		BotID:               chunks[0].BotID,
		TotalRecords:        len(chunks),
		SkippedChunks:       skipped,
		CombinedBytesLength: combined.Len(),
		FirstTimestamp:      chunks[0].Timestamp.Relative,
		LastTimestamp:       chunks[len(chunks)-1].Timestamp.Relative,
		Combined:            combined.Bytes(),
	}

	samples := audio.BytesToSamples(result.Combined)
	result.DurationSeconds = float64(len(samples)) / float64(r.sampleRate)
	result.Warnings = r.diagnose(result, samples)

	for _, w := range result.Warnings {
		logger.Warn().Str("diagnostic", w).Msg("Rebuild diagnostic")
	}
	observability.RecordReconstruction("success")
	logger.Info().
		Int("records", result.TotalRecords).
		Int("bytes", result.CombinedBytesLength).
		Float64("duration_seconds", result.DurationSeconds).
		Msg("Session audio reconstructed")
	return result, nil
}

// diagnose compares the timestamp span against the reassembled length and
// inspects amplitude for silence.
func (r *Reconstructor) diagnose(result *Result, samples []int16) []string {
	var warnings []string

	expected := result.LastTimestamp
	if diff := expected - result.DurationSeconds; diff > durationMismatchSeconds || -diff > durationMismatchSeconds {
		warnings = append(warnings, fmt.Sprintf(
			"duration mismatch: timestamps span %.2fs but audio is %.2fs",
			expected, result.DurationSeconds))
	}

	stats := audio.ComputeStats(samples)
	if stats.SampleCount > 0 && stats.MaxAmplitude < silenceAmplitude {
		warnings = append(warnings, fmt.Sprintf(
			"audio appears silent: max amplitude %d", stats.MaxAmplitude))
	}
	return warnings
}
