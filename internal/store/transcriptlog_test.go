package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestTranscriptLogAppend(t *testing.T) {
	dir := t.TempDir()
	log, err := NewTranscriptLog(dir)
	if err != nil {
		t.Fatalf("NewTranscriptLog: %v", err)
	}

	rec := &TranscriptRecord{
		SessionID:       "rec-1",
		Timestamp:       2.5,
		DurationSeconds: 10.0,
		Transcript:      "hello world",
		Segments: []Segment{
			{Start: 0.1, End: 1.2, Text: "hello world"},
		},
	}
	if err := log.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := log.Append(rec); err != nil {
		t.Fatalf("Append second: %v", err)
	}

	f, err := os.Open(filepath.Join(dir, "rec-1.jsonl"))
	if err != nil {
		t.Fatalf("open log file: %v", err)
	}
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines++
		var got TranscriptRecord
		if err := json.Unmarshal(scanner.Bytes(), &got); err != nil {
			t.Fatalf("line %d not valid JSON: %v", lines, err)
		}
		if got.SessionID != "rec-1" {
			t.Errorf("line %d recording_id = %q, want rec-1", lines, got.SessionID)
		}
		if got.Transcript != "hello world" {
			t.Errorf("line %d transcript = %q", lines, got.Transcript)
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines, got %d", lines)
	}
}

func TestTranscriptLogSeparateSessions(t *testing.T) {
	dir := t.TempDir()
	log, err := NewTranscriptLog(dir)
	if err != nil {
		t.Fatalf("NewTranscriptLog: %v", err)
	}

	if err := log.Append(&TranscriptRecord{SessionID: "a", Transcript: "one"}); err != nil {
		t.Fatalf("Append a: %v", err)
	}
	if err := log.Append(&TranscriptRecord{SessionID: "b", Transcript: "two"}); err != nil {
		t.Fatalf("Append b: %v", err)
	}

	for _, id := range []string{"a", "b"} {
		if _, err := os.Stat(filepath.Join(dir, id+".jsonl")); err != nil {
			t.Errorf("expected log file for session %s: %v", id, err)
		}
	}
}

func TestTranscriptLogConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	log, err := NewTranscriptLog(dir)
	if err != nil {
		t.Fatalf("NewTranscriptLog: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.Append(&TranscriptRecord{SessionID: "shared", Transcript: "x"}); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "shared.jsonl"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var lines int
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines++
	}
	if lines != 20 {
		t.Fatalf("expected 20 lines, got %d", lines)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../../etc/passwd"); got == "../../etc/passwd" {
		t.Errorf("path traversal not sanitized: %q", got)
	}
}
