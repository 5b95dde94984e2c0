package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/PrathameshPGAGI/webhook/internal/audio"
	"github.com/PrathameshPGAGI/webhook/internal/observability"
)

const (
	chunksCollection      = "audio_chunks"
	transcriptsCollection = "transcripts"
)

// Mongo is the document-store persistence adapter: append-only writers for
// raw chunks and transcript records, plus the timestamp-ordered chunk
// reader the reconstruction path depends on.
type Mongo struct {
	client      *mongo.Client
	chunks      *mongo.Collection
	transcripts *mongo.Collection
}

// Connect establishes a MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:      client,
		chunks:      db.Collection(chunksCollection),
		transcripts: db.Collection(transcriptsCollection),
	}

	// Reads for reconstruction sort on (bot_id, timestamp.relative).
	indexCtx, cancelIdx := context.WithTimeout(ctx, 10*time.Second)
	defer cancelIdx()
	_, err = m.chunks.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "bot_id", Value: 1},
			{Key: "timestamp.relative", Value: 1},
		},
	})
	if err != nil {
		logger := observability.GetLogger()
		logger.Warn().Err(err).Msg("Failed to ensure chunk index")
	}

	return m, nil
}

// AppendChunk durably stores one decoded chunk. The write is acknowledged
// before the call returns.
func (m *Mongo) AppendChunk(ctx context.Context, chunk *audio.Chunk) error {
	doc := PersistedChunk{
		BotID:     chunk.BotID,
		SessionID: chunk.SessionID,
		Buffer:    audio.EncodeChunkBuffer(chunk.PCM),
		Timestamp: ChunkTimestamp{
			Relative: chunk.Timestamp.Relative,
			Absolute: chunk.Timestamp.Absolute,
		},
	}

	_, err := m.chunks.InsertOne(ctx, doc)
	observability.RecordStoreWrite("chunk", err)
	if err != nil {
		return fmt.Errorf("failed to append chunk for session %s: %w", chunk.SessionID, err)
	}
	return nil
}

// AppendTranscript durably stores one transcript record.
func (m *Mongo) AppendTranscript(ctx context.Context, record *TranscriptRecord) error {
	_, err := m.transcripts.InsertOne(ctx, record)
	observability.RecordStoreWrite("transcript", err)
	if err != nil {
		return fmt.Errorf("failed to append transcript for session %s: %w", record.SessionID, err)
	}
	return nil
}

// ChunksByBot returns every persisted chunk for a bot in ascending
// timestamp order, regardless of arrival or storage order.
func (m *Mongo) ChunksByBot(ctx context.Context, botID string) ([]PersistedChunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp.relative", Value: 1}})
	cursor, err := m.chunks.Find(ctx, bson.M{"bot_id": botID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for bot %s: %w", botID, err)
	}
	defer cursor.Close(ctx)

	var chunks []PersistedChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("failed to decode chunks for bot %s: %w", botID, err)
	}
	return chunks, nil
}

// Ping verifies the store is reachable; used by the readiness probe.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
