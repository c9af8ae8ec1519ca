package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Empty(t, ChunkText("", 10, 2))
	assert.Empty(t, ChunkText("   \n\t ", 10, 2))
}

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	assert.Equal(t, []string{"Iron is essential."}, ChunkText("  Iron is essential.  ", 1200, 200))
}

func TestChunkText_DefaultWindow(t *testing.T) {
	text := strings.Repeat("a", 2500)

	chunks := ChunkText(text, 1200, 200)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1200)
	assert.Len(t, chunks[1], 1200)
	assert.Len(t, chunks[2], 500)
}

func TestChunkText_Overlap(t *testing.T) {
	chunks := ChunkText("abcdefghij", 4, 1)

	assert.Equal(t, []string{"abcd", "defg", "ghij"}, chunks)
}

func TestChunkText_Properties(t *testing.T) {
	text := "Zinc supports appetite and taste. Magnesium supports bowel regularity and sleep. " +
		"Vitamin D deficiency is common in northern latitudes during winter months."

	tests := []struct {
		size, overlap int
	}{
		{size: 10, overlap: 0},
		{size: 10, overlap: 3},
		{size: 17, overlap: 16},
		{size: 50, overlap: 10},
		{size: 7, overlap: 6},
	}

	for _, tt := range tests {
		chunks := ChunkText(text, tt.size, tt.overlap)
		step := tt.size - tt.overlap
		runes := []rune(text)

		require.NotEmpty(t, chunks)
		for i, c := range chunks {
			assert.LessOrEqual(t, len([]rune(c)), tt.size)
			start := i * step
			assert.Equal(t, string(runes[start:start+len([]rune(c))]), c)
		}
		last := chunks[len(chunks)-1]
		assert.True(t, strings.HasSuffix(text, last))
	}
}

func TestChunkText_CountsCharactersNotBytes(t *testing.T) {
	text := strings.Repeat("é", 25)

	chunks := ChunkText(text, 10, 0)

	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 5), chunks[2])
}

func TestChunkText_OverlapNotSmallerThanSize(t *testing.T) {
	chunks := ChunkText("abcd", 2, 5)

	assert.Equal(t, []string{"ab", "bc", "cd"}, chunks)
}

func TestChunkText_NonPositiveSizeUsesDefaults(t *testing.T) {
	text := strings.Repeat("b", 2500)

	assert.Len(t, ChunkText(text, 0, 0), 3)
}

func TestChunkWith(t *testing.T) {
	assert.Equal(t, ChunkText("abcdefghij", 4, 1), chunkWith("abcdefghij", ChunkConfig{Size: 4, Overlap: 1}))
}
