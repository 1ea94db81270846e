package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunker_InvalidConfig(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals chunk size", 100, 100},
		{"overlap exceeds chunk size", 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.chunkSize, tt.overlap)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidChunkConfig)
		})
	}
}

func TestChunker_ReconstructsInput(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		text      string
	}{
		{"no overlap", 10, 0, strings.Repeat("abcdefghij", 7)},
		{"small overlap", 10, 3, "the quick brown fox jumps over the lazy dog"},
		{"large overlap", 20, 15, strings.Repeat("x", 100) + "tail"},
		{"text shorter than chunk", 500, 50, "short text"},
		{"text exactly one chunk", 10, 2, "0123456789"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewChunker(tt.chunkSize, tt.overlap)
			require.NoError(t, err)

			chunks := c.Chunk("doc1", tt.text)
			require.NotEmpty(t, chunks)

			var rebuilt strings.Builder
			for i, chunk := range chunks {
				if i == 0 {
					rebuilt.WriteString(chunk.Text)
					continue
				}
				rebuilt.WriteString(chunk.Text[tt.overlap:])
			}
			assert.Equal(t, tt.text, rebuilt.String())
		})
	}
}

func TestChunker_OverlapAndBounds(t *testing.T) {
	c, err := NewChunker(10, 4)
	require.NoError(t, err)

	text := "abcdefghijklmnopqrstuvwxyz0123456789"
	chunks := c.Chunk("doc1", text)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk.Text), 10, "chunk %d exceeds chunk size", i)
		assert.Equal(t, i, chunk.SequenceIndex)
		assert.Equal(t, chunk.Text, text[chunk.StartOffset:chunk.EndOffset])

		if i > 0 {
			prev := chunks[i-1]
			assert.GreaterOrEqual(t, chunk.StartOffset, prev.StartOffset, "offsets must be non-decreasing")
			if i < len(chunks) {
				overlap := prev.EndOffset - chunk.StartOffset
				assert.Equal(t, 4, overlap, "consecutive chunks must overlap by exactly the configured overlap")
				assert.Equal(t, prev.Text[len(prev.Text)-overlap:], chunk.Text[:overlap])
			}
		}
	}
}

func TestChunker_EmptyInput(t *testing.T) {
	c, err := NewChunker(100, 10)
	require.NoError(t, err)
	assert.Nil(t, c.Chunk("doc1", ""))
}

func TestChunker_ChunkIDs(t *testing.T) {
	c, err := NewChunker(5, 0)
	require.NoError(t, err)

	chunks := c.Chunk("menu", "0123456789")
	require.Len(t, chunks, 2)
	assert.Equal(t, "menu_chunk_0", chunks[0].ChunkID)
	assert.Equal(t, "menu_chunk_1", chunks[1].ChunkID)
	assert.Equal(t, "menu", chunks[0].DocumentID)
}
