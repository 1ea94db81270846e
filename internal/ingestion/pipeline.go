package ingestion

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/embedding"
	"github.com/Ramez-101/doc-ingestion/internal/metrics"
	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/internal/storage/sqlite"
	"github.com/Ramez-101/doc-ingestion/internal/vector"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

var (
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
	ErrEmptyDocument    = errors.New("no text extracted from document")
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Manifest is the outcome of one ingestion run. FailedChunks lists indices
// that could not be embedded; their presence makes the run a partial success,
// never a failure of the whole document.
type Manifest struct {
	DocumentID   string `json:"document_id"`
	Collection   string `json:"collection"`
	ChunkCount   int    `json:"chunk_count"`
	FailedChunks []int  `json:"failed_chunks,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
}

// Pipeline turns one document into vector records: normalize, chunk, embed,
// persist, upsert.
type Pipeline struct {
	db       *sqlite.Client
	store    vector.Store
	embedder embedding.Provider
	chunker  *Chunker
	maxBytes int
}

func NewPipeline(db *sqlite.Client, store vector.Store, embedder embedding.Provider, chunker *Chunker, maxBytes int) *Pipeline {
	return &Pipeline{
		db:       db,
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		maxBytes: maxBytes,
	}
}

func (p *Pipeline) Ingest(ctx context.Context, docID, extractedText, sourceFormat, collection string) (*Manifest, error) {
	logger.Info("Ingesting document",
		zap.String("doc_id", docID),
		zap.String("format", sourceFormat),
		zap.String("collection", collection),
	)

	if p.maxBytes > 0 && len(extractedText) > p.maxBytes {
		return nil, ErrDocumentTooLarge
	}

	text := normalize(extractedText, sourceFormat)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	doc := &models.Document{
		ID:           docID,
		SourceFormat: sourceFormat,
		RawText:      text,
		CreatedAt:    time.Now(),
	}
	if err := p.db.InsertDocument(doc); err != nil {
		return nil, err
	}

	chunks := p.chunker.Chunk(docID, text)
	logger.Info("Document chunked", zap.String("doc_id", docID), zap.Int("chunks", len(chunks)))

	records, failed := p.embedChunks(ctx, chunks)

	for _, chunk := range chunks {
		if err := p.db.InsertChunk(&chunk); err != nil {
			logger.Warn("Failed to persist chunk",
				zap.String("chunk_id", chunk.ChunkID),
				zap.Error(err),
			)
		}
	}

	if len(records) > 0 {
		if err := p.store.Upsert(ctx, collection, records); err != nil {
			return nil, err
		}
	}

	manifest := &Manifest{
		DocumentID:   docID,
		Collection:   collection,
		ChunkCount:   len(records),
		FailedChunks: failed,
		Degraded:     p.degraded(),
	}

	metrics.DocumentsProcessed.Inc()
	metrics.ChunksStored.Add(float64(len(records)))

	logger.Info("Document ingested",
		zap.String("doc_id", docID),
		zap.Int("chunks", manifest.ChunkCount),
		zap.Int("failed", len(failed)),
		zap.Bool("degraded", manifest.Degraded),
	)

	return manifest, nil
}

// embedChunks embeds the whole batch in one call and falls back to per-chunk
// embedding when the batch fails, so a single bad chunk only loses itself.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk) ([]models.VectorRecord, []int) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) == len(chunks) {
		records := make([]models.VectorRecord, len(chunks))
		for i, c := range chunks {
			records[i] = p.record(c, vectors[i])
		}
		return records, nil
	}

	if err != nil {
		logger.Warn("Batch embedding failed, embedding chunks individually", zap.Error(err))
	}

	var records []models.VectorRecord
	var failed []int
	for i, c := range chunks {
		v, err := p.embedder.EmbedOne(ctx, c.Text)
		if err != nil {
			logger.Warn("Chunk embedding failed, skipping",
				zap.String("chunk_id", c.ChunkID),
				zap.Error(err),
			)
			failed = append(failed, i)
			continue
		}
		records = append(records, p.record(c, v))
	}

	return records, failed
}

func (p *Pipeline) record(chunk models.Chunk, embedding []float32) models.VectorRecord {
	return models.VectorRecord{
		ChunkID:   chunk.ChunkID,
		Embedding: embedding,
		Text:      chunk.Text,
		Metadata: models.VectorMetadata{
			DocumentID:    chunk.DocumentID,
			SequenceIndex: chunk.SequenceIndex,
			ModelName:     p.embedder.Name(),
		},
	}
}

func (p *Pipeline) degraded() bool {
	type degradable interface{ Degraded() bool }
	if d, ok := p.embedder.(degradable); ok {
		return d.Degraded()
	}
	return false
}

// normalize collapses whitespace and, for HTML sources, strips markup and
// boilerplate elements first.
func normalize(text, sourceFormat string) string {
	if sourceFormat == "html" {
		text = stripHTML(text)
	}
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text()
	}
	return body.Text()
}
