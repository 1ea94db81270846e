package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/internal/vector"
)

// Store is a brute-force in-memory vector store. Collections are independent:
// each carries its own mutex, so operations on different collections never
// contend. Within a collection writers are exclusive and readers see the
// last-committed state.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	mu      sync.RWMutex
	dim     int
	records []models.VectorRecord
	norms   []float64
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

func (s *Store) Upsert(_ context.Context, name string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	col := s.collection(name)

	col.mu.Lock()
	defer col.mu.Unlock()

	// Dimension is fixed by the first record ever inserted.
	if col.dim == 0 {
		col.dim = len(records[0].Embedding)
	}

	for _, r := range records {
		if len(r.Embedding) != col.dim {
			return fmt.Errorf("%w: collection %q expects %d, record %q has %d",
				vector.ErrDimensionMismatch, name, col.dim, r.ChunkID, len(r.Embedding))
		}
	}

	for _, r := range records {
		if i, ok := col.index(r.ChunkID); ok {
			col.records[i] = r
			col.norms[i] = norm(r.Embedding)
			continue
		}
		col.records = append(col.records, r)
		col.norms = append(col.norms, norm(r.Embedding))
	}

	return nil
}

func (s *Store) Query(_ context.Context, name string, query []float32, topK int, filter map[string]string) ([]vector.SearchResult, error) {
	if topK < 1 {
		return nil, vector.ErrInvalidTopK
	}

	col := s.collection(name)

	col.mu.RLock()
	defer col.mu.RUnlock()

	if col.dim != 0 && len(query) != col.dim {
		return nil, fmt.Errorf("%w: collection %q expects %d, query has %d",
			vector.ErrDimensionMismatch, name, col.dim, len(query))
	}

	queryNorm := norm(query)

	results := make([]vector.SearchResult, 0, len(col.records))
	for i, r := range col.records {
		if docID, ok := filter["document_id"]; ok && docID != "" && r.Metadata.DocumentID != docID {
			continue
		}
		results = append(results, vector.SearchResult{
			Record: r,
			Score:  normalizedCosine(query, queryNorm, r.Embedding, col.norms[i]),
		})
	}

	// Stable sort over insertion order: equal scores keep the earlier record
	// first.
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

func (s *Store) Clear(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *Store) collection(name string) *collection {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok = s.collections[name]; ok {
		return col
	}
	col = &collection{}
	s.collections[name] = col
	return col
}

func (c *collection) index(chunkID string) (int, bool) {
	for i, r := range c.records {
		if r.ChunkID == chunkID {
			return i, true
		}
	}
	return 0, false
}

// normalizedCosine maps cosine similarity from [-1, 1] into [0, 1].
func normalizedCosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0.5
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cos := dot / (normA * normB)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
