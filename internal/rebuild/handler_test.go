package rebuild

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PrathameshPGAGI/webhook/internal/store"
)

func newTestMux(reader ChunkReader) *http.ServeMux {
	h := NewHandler(NewReconstructor(reader, 16000), 16000)
	mux := http.NewServeMux()
	mux.Handle("GET /audio/{botID}", h)
	return mux
}

func TestHandlerNotFound(t *testing.T) {
	mux := newTestMux(&fakeReader{})

	req := httptest.NewRequest(http.MethodGet, "/audio/bot-x", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "No audio data found for bot_id: bot-x" {
		t.Errorf("error = %q", body["error"])
	}
}

func TestHandlerServesWav(t *testing.T) {
	pcm := tonePCM(1600, 4000)
	mux := newTestMux(&fakeReader{chunks: []store.PersistedChunk{chunkAt(0.0, pcm)}})

	req := httptest.NewRequest(http.MethodGet, "/audio/bot-1?format=wav", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.Bytes()
	if len(body) != len(pcm)+44 {
		t.Errorf("body length = %d, want %d", len(body), len(pcm)+44)
	}
	if string(body[:4]) != "RIFF" {
		t.Errorf("body does not start with RIFF header")
	}
}

func TestHandlerJSONByDefault(t *testing.T) {
	pcm := tonePCM(1600, 4000)
	mux := newTestMux(&fakeReader{chunks: []store.PersistedChunk{chunkAt(0.0, pcm)}})

	req := httptest.NewRequest(http.MethodGet, "/audio/bot-1", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var result Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if result.TotalRecords != 1 {
		t.Errorf("TotalRecords = %d, want 1", result.TotalRecords)
	}
	if result.CombinedBytesLength != len(pcm) {
		t.Errorf("CombinedBytesLength = %d, want %d", result.CombinedBytesLength, len(pcm))
	}
	if !bytes.Equal(result.Combined, pcm) {
		t.Errorf("combined_buffer does not match stored audio")
	}
}
