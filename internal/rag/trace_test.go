package rag

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTrace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "traces")
	trace := &Trace{
		CaseID:     "65f0a1b2c3d4e5f6a7b8c9d0",
		Model:      "gemini-2.0-flash",
		Question:   "¿se trabó el embargo?",
		ContextLen: 812,
		TopChunks:  []ChunkRef{{ChunkID: 7, Score: 0.93}},
		Rounds:     []RoundTrace{{Round: 1, ReplyLen: 120}},
		Answer:     "Sí, a fojas 15.",
		Timestamp:  time.Now(),
	}

	path, err := WriteTrace(trace, dir)
	require.NoError(t, err)
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Trace
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, trace.Question, decoded.Question)
	assert.Equal(t, trace.Answer, decoded.Answer)
	assert.Equal(t, "gemini-2.0-flash", decoded.Model)
	require.Len(t, decoded.TopChunks, 1)
	assert.Equal(t, int64(7), decoded.TopChunks[0].ChunkID)
}

func TestWriteTraceUniqueNames(t *testing.T) {
	dir := t.TempDir()
	first, err := WriteTrace(&Trace{Question: "a"}, dir)
	require.NoError(t, err)
	second, err := WriteTrace(&Trace{Question: "b"}, dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
