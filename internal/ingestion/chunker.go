package ingestion

import (
	"errors"
	"fmt"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Chunker splits normalized text into overlapping fixed-size windows.
type Chunker struct {
	chunkSize int
	overlap   int
}

func NewChunker(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunkConfig, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidChunkConfig, overlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Chunk covers the full input with windows of at most chunkSize characters,
// each window starting chunkSize-overlap after the previous one. The final
// chunk may be shorter. Empty input yields no chunks.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	if text == "" {
		return nil
	}

	step := c.chunkSize - c.overlap
	var chunks []models.Chunk

	for start, seq := 0, 0; start < len(text); start, seq = start+step, seq+1 {
		end := start + c.chunkSize
		if end > len(text) {
			end = len(text)
		}

		chunks = append(chunks, models.Chunk{
			ChunkID:       fmt.Sprintf("%s_chunk_%d", docID, seq),
			DocumentID:    docID,
			Text:          text[start:end],
			StartOffset:   start,
			EndOffset:     end,
			SequenceIndex: seq,
		})

		if end == len(text) {
			break
		}
	}

	return chunks
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }
func (c *Chunker) Overlap() int   { return c.overlap }
