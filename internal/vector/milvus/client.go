package milvus

import (
	"context"
	"fmt"
	"sync"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/internal/vector"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

// Client is the Milvus-backed vector store. Collections are created lazily on
// first upsert with the dimension of the first record; later upserts with a
// different dimension are rejected before they reach the server.
type Client struct {
	client client.Client

	mu   sync.Mutex
	dims map[string]int
}

func NewClient(endpoint string) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus vector store initialized", zap.String("endpoint", endpoint))

	return &Client{client: c, dims: make(map[string]int)}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) Upsert(ctx context.Context, collection string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	dim, err := m.ensureCollection(ctx, collection, len(records[0].Embedding))
	if err != nil {
		return err
	}

	chunkIDs := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	texts := make([]string, len(records))
	docIDs := make([]string, len(records))
	seqIndexes := make([]int64, len(records))
	modelNames := make([]string, len(records))

	for i, r := range records {
		if len(r.Embedding) != dim {
			return fmt.Errorf("%w: collection %q expects %d, record %q has %d",
				vector.ErrDimensionMismatch, collection, dim, r.ChunkID, len(r.Embedding))
		}
		chunkIDs[i] = r.ChunkID
		embeddings[i] = r.Embedding
		texts[i] = r.Text
		docIDs[i] = r.Metadata.DocumentID
		seqIndexes[i] = int64(r.Metadata.SequenceIndex)
		modelNames[i] = r.Metadata.ModelName
	}

	_, err = m.client.Upsert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar("chunk_id", chunkIDs),
		entity.NewColumnFloatVector("embedding", dim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("document_id", docIDs),
		entity.NewColumnInt64("sequence_index", seqIndexes),
		entity.NewColumnVarChar("model_name", modelNames),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert records: %w", err)
	}

	if err := m.client.Flush(ctx, collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Records upserted into vector store",
		zap.String("collection", collection),
		zap.Int("count", len(records)),
	)

	return nil
}

func (m *Client) Query(ctx context.Context, collection string, queryVector []float32, topK int, filter map[string]string) ([]vector.SearchResult, error) {
	if topK < 1 {
		return nil, vector.ErrInvalidTopK
	}

	expr := ""
	if docID, ok := filter["document_id"]; ok && docID != "" {
		expr = fmt.Sprintf(`document_id == "%s"`, docID)
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		collection,
		[]string{},
		expr,
		[]string{"chunk_id", "text", "document_id", "sequence_index", "model_name"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]vector.SearchResult, 0)
	for _, sr := range searchResult {
		chunkIDCol := sr.Fields.GetColumn("chunk_id")
		textCol := sr.Fields.GetColumn("text")
		docIDCol := sr.Fields.GetColumn("document_id")
		seqCol := sr.Fields.GetColumn("sequence_index")
		modelCol := sr.Fields.GetColumn("model_name")

		for i := 0; i < sr.ResultCount; i++ {
			chunkID, _ := chunkIDCol.Get(i)
			text, _ := textCol.Get(i)
			docID, _ := docIDCol.Get(i)
			seq, _ := seqCol.Get(i)
			model, _ := modelCol.Get(i)

			results = append(results, vector.SearchResult{
				Record: models.VectorRecord{
					ChunkID: chunkID.(string),
					Text:    text.(string),
					Metadata: models.VectorMetadata{
						DocumentID:    docID.(string),
						SequenceIndex: int(seq.(int64)),
						ModelName:     model.(string),
					},
				},
				// Milvus cosine scores are in [-1, 1]; surface [0, 1].
				Score: (float64(sr.Scores[i]) + 1) / 2,
			})
		}
	}

	logger.Debug("Vector search completed",
		zap.String("collection", collection),
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Clear drops the collection. Dropping a collection that does not exist is
// not an error.
func (m *Client) Clear(ctx context.Context, collection string) error {
	has, err := m.client.HasCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if !has {
		return nil
	}

	if err := m.client.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}

	m.mu.Lock()
	delete(m.dims, collection)
	m.mu.Unlock()

	logger.Info("Collection cleared", zap.String("collection", collection))
	return nil
}

func (m *Client) ensureCollection(ctx context.Context, collection string, dim int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if known, ok := m.dims[collection]; ok {
		return known, nil
	}

	has, err := m.client.HasCollection(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to check collection: %w", err)
	}

	if !has {
		schema := &entity.Schema{
			CollectionName: collection,
			Description:    "Document chunk embeddings",
			Fields: []*entity.Field{
				{
					Name:       "chunk_id",
					DataType:   entity.FieldTypeVarChar,
					PrimaryKey: true,
					AutoID:     false,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:       "embedding",
					DataType:   entity.FieldTypeFloatVector,
					TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
				},
				{
					Name:       "text",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "4096"},
				},
				{
					Name:       "document_id",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "128"},
				},
				{
					Name:     "sequence_index",
					DataType: entity.FieldTypeInt64,
				},
				{
					Name:       "model_name",
					DataType:   entity.FieldTypeVarChar,
					TypeParams: map[string]string{"max_length": "128"},
				},
			},
		}

		if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
			return 0, fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
		if err != nil {
			return 0, fmt.Errorf("failed to build index config: %w", err)
		}
		if err := m.client.CreateIndex(ctx, collection, "embedding", idx, false); err != nil {
			return 0, fmt.Errorf("failed to create index: %w", err)
		}

		if err := m.client.LoadCollection(ctx, collection, false); err != nil {
			return 0, fmt.Errorf("failed to load collection: %w", err)
		}

		logger.Info("Collection created and loaded",
			zap.String("collection", collection),
			zap.Int("dim", dim),
		)
	}

	m.dims[collection] = dim
	return dim, nil
}
