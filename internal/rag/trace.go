package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Trace records one answer loop for offline inspection.
type Trace struct {
	CaseID         string       `json:"case_id,omitempty"`
	Model          string       `json:"model,omitempty"`
	Question       string       `json:"question"`
	ContextLen     int          `json:"context_len"`
	TopChunks      []ChunkRef   `json:"top_chunks"`
	Rounds         []RoundTrace `json:"rounds"`
	Answer         string       `json:"answer"`
	ElapsedSeconds float64      `json:"elapsed_seconds"`
	Timestamp      time.Time    `json:"ts"`
}

type ChunkRef struct {
	ChunkID int64   `json:"chunk_id"`
	Score   float64 `json:"score"`
}

type RoundTrace struct {
	Round    int `json:"round"`
	ReplyLen int `json:"reply_len"`
}

// WriteTrace persists the trace as timestamped JSON under dir and
// returns the file path.
func WriteTrace(trace *Trace, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create trace dir: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json",
		time.Now().Format("20060102-150405"),
		uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write trace: %w", err)
	}
	return path, nil
}
