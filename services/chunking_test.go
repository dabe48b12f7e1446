package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", 1200, 150))
	assert.Empty(t, ChunkText("   \n\t  ", 1200, 150))
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("demanda ejecutiva", 1200, 150)
	require.Len(t, chunks, 1)
	assert.Equal(t, "demanda ejecutiva", chunks[0])
}

func TestChunkTextSizeBound(t *testing.T) {
	text := strings.Repeat("a", 5000)
	chunks := ChunkText(text, 1200, 150)

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1200)
	}
}

func TestChunkTextOverlap(t *testing.T) {
	// Windows step size-overlap, so each chunk after the first must
	// start with the tail of its predecessor.
	text := strings.Repeat("abcdefghij", 500)
	chunks := ChunkText(text, 1000, 200)

	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-200:]
		assert.True(t, strings.HasPrefix(chunks[i], prevTail),
			"chunk %d should begin with the last 200 chars of chunk %d", i, i-1)
	}
}

func TestChunkTextCoversWholeInput(t *testing.T) {
	text := strings.Repeat("xyz", 1000)
	chunks := ChunkText(text, 700, 100)

	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.True(t, strings.HasSuffix(text, last))
}

func TestChunkTextDropsWhitespaceWindows(t *testing.T) {
	// A run of padding wider than one window yields an all-blank
	// window that must not survive.
	text := "inicio" + strings.Repeat(" ", 3000) + "fin"
	chunks := ChunkText(text, 1000, 100)

	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunkTextStepFloor(t *testing.T) {
	// Overlap >= size would loop forever without the floor of 1.
	chunks := ChunkText("abcdef", 3, 5)
	require.NotEmpty(t, chunks)
	assert.LessOrEqual(t, len(chunks), 6)
}
