package vector

import (
	"context"
	"errors"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
)

var (
	// ErrDimensionMismatch rejects an upsert whose embedding length differs
	// from the dimension the collection was created with.
	ErrDimensionMismatch = errors.New("embedding dimension does not match collection")

	ErrInvalidTopK = errors.New("top_k must be at least 1")
)

// SearchResult is one nearest-neighbour hit. Score is cosine similarity
// normalized to [0, 1].
type SearchResult struct {
	Record models.VectorRecord
	Score  float64
}

// Store persists vector records per named collection and answers
// nearest-neighbour queries. Results are ordered by descending similarity with
// ties broken by insertion order (earlier wins). Clear is idempotent.
type Store interface {
	Upsert(ctx context.Context, collection string, records []models.VectorRecord) error
	Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]string) ([]SearchResult, error)
	Clear(ctx context.Context, collection string) error
}
