package store

import (
	"time"
)

// ChunkTimestamp mirrors the transport timestamp inside stored documents.
type ChunkTimestamp struct {
	Relative float64   `bson:"relative" json:"relative"`
	Absolute time.Time `bson:"absolute" json:"absolute"`
}

// PersistedChunk is the durable form of one audio chunk, keyed by
// (bot_id, timestamp) and retrievable in ascending timestamp order.
type PersistedChunk struct {
	BotID     string         `bson:"bot_id" json:"bot_id"`
	SessionID string         `bson:"session_id" json:"session_id"`
	Buffer    string         `bson:"buffer" json:"buffer"` // base64 16-bit mono PCM
	Timestamp ChunkTimestamp `bson:"timestamp" json:"timestamp"`
}

// Segment is one timed span of transcribed speech within a window.
type Segment struct {
	Start float64 `bson:"start" json:"start"`
	End   float64 `bson:"end" json:"end"`
	Text  string  `bson:"text" json:"text"`
}

// TranscriptRecord is the append-only output of one successfully transcribed
// window. The JSON tags define the transcript log line format.
type TranscriptRecord struct {
	SessionID       string    `bson:"session_id" json:"recording_id"`
	Timestamp       float64   `bson:"timestamp" json:"timestamp"`
	DurationSeconds float64   `bson:"duration_seconds" json:"duration_seconds"`
	Transcript      string    `bson:"transcript" json:"transcript"`
	Segments        []Segment `bson:"segments" json:"segments"`
}
