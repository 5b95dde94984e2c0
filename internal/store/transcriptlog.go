package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TranscriptLog appends transcript records to one ordered JSONL file per
// session: a single serialized record per line, in persistence order.
type TranscriptLog struct {
	dir string
	mu  sync.Mutex
}

// NewTranscriptLog creates the output directory if needed.
func NewTranscriptLog(dir string) (*TranscriptLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript dir: %w", err)
	}
	return &TranscriptLog{dir: dir}, nil
}

// Append serializes the record and appends it to the session's log file.
func (l *TranscriptLog) Append(record *TranscriptRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, sanitizeFilename(record.SessionID)+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append transcript line: %w", err)
	}
	return nil
}

// sanitizeFilename keeps session ids from escaping the log directory.
func sanitizeFilename(id string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return replacer.Replace(id)
}
