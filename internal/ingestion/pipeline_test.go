package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramez-101/doc-ingestion/internal/embedding"
	"github.com/Ramez-101/doc-ingestion/internal/storage/sqlite"
	"github.com/Ramez-101/doc-ingestion/internal/vector/memory"
)

// flakyEmbedder always fails batch calls and fails individual calls for
// texts containing failOn, exercising the per-chunk fallback path.
type flakyEmbedder struct {
	failBatch bool
	failOn    string
	dim       int
}

func (f *flakyEmbedder) Name() string   { return "flaky" }
func (f *flakyEmbedder) Dimension() int { return f.dim }

func (f *flakyEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding rejected")
	}
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failBatch {
		return nil, errors.New("batch unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestPipeline(t *testing.T, embedder embedding.Provider) (*Pipeline, *sqlite.Client, *memory.Store) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	store := memory.NewStore()

	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)

	return NewPipeline(db, store, embedder, chunker, 1024), db, store
}

func TestPipeline_IngestPlainText(t *testing.T) {
	ctx := context.Background()
	p, db, store := newTestPipeline(t, &flakyEmbedder{dim: 8})

	text := strings.Repeat("the cafe opens at nine every morning ", 3)
	manifest, err := p.Ingest(ctx, "doc1", text, "text", "documents")
	require.NoError(t, err)

	assert.Equal(t, "doc1", manifest.DocumentID)
	assert.Equal(t, "documents", manifest.Collection)
	assert.Greater(t, manifest.ChunkCount, 1)
	assert.Empty(t, manifest.FailedChunks)
	assert.False(t, manifest.Degraded)

	doc, err := db.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, "text", doc.SourceFormat)

	chunks, err := db.GetChunks("doc1")
	require.NoError(t, err)
	assert.Len(t, chunks, manifest.ChunkCount)

	query := make([]float32, 8)
	query[0] = 1
	results, err := store.Query(ctx, "documents", query, manifest.ChunkCount, nil)
	require.NoError(t, err)
	assert.Len(t, results, manifest.ChunkCount)
}

func TestPipeline_RejectsOversizedDocument(t *testing.T) {
	p, _, _ := newTestPipeline(t, &flakyEmbedder{dim: 8})

	_, err := p.Ingest(context.Background(), "doc1", strings.Repeat("x", 2048), "text", "documents")
	assert.ErrorIs(t, err, ErrDocumentTooLarge)
}

func TestPipeline_RejectsEmptyDocument(t *testing.T) {
	p, _, _ := newTestPipeline(t, &flakyEmbedder{dim: 8})

	for _, text := range []string{"", "   \n\t  "} {
		_, err := p.Ingest(context.Background(), "doc1", text, "text", "documents")
		assert.ErrorIs(t, err, ErrEmptyDocument)
	}
}

func TestPipeline_NormalizesHTML(t *testing.T) {
	ctx := context.Background()
	p, db, _ := newTestPipeline(t, &flakyEmbedder{dim: 8})

	html := `<html><head><style>body { color: red }</style></head>
		<body><nav>skip this nav</nav><p>Open   daily
		from nine.</p><script>alert("skip")</script></body></html>`

	_, err := p.Ingest(ctx, "doc1", html, "html", "documents")
	require.NoError(t, err)

	doc, err := db.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, "Open daily from nine.", doc.RawText)
	assert.NotContains(t, doc.RawText, "skip")
}

func TestPipeline_CollapsesWhitespace(t *testing.T) {
	ctx := context.Background()
	p, db, _ := newTestPipeline(t, &flakyEmbedder{dim: 8})

	_, err := p.Ingest(ctx, "doc1", "  hello\n\n\tworld  ", "text", "documents")
	require.NoError(t, err)

	doc, err := db.GetDocument("doc1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", doc.RawText)
}

func TestPipeline_PartialEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	p, db, store := newTestPipeline(t, &flakyEmbedder{dim: 8, failBatch: true, failOn: "ZZZ"})

	// 20-char chunks with overlap 5: the marker lands in some chunks only.
	text := "aaaaaaaaaaaaaaaaaaaaZZZaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	manifest, err := p.Ingest(ctx, "doc1", text, "text", "documents")
	require.NoError(t, err, "a failed chunk must not fail the whole document")

	assert.NotEmpty(t, manifest.FailedChunks, "chunks containing the marker must be reported")
	assert.Greater(t, manifest.ChunkCount, 0, "clean chunks must still be stored")

	// Every chunk row survives in SQLite even when its embedding failed.
	chunks, err := db.GetChunks("doc1")
	require.NoError(t, err)
	assert.Len(t, chunks, manifest.ChunkCount+len(manifest.FailedChunks))

	query := make([]float32, 8)
	query[0] = 1
	results, err := store.Query(ctx, "documents", query, len(chunks), nil)
	require.NoError(t, err)
	assert.Len(t, results, manifest.ChunkCount)
}

func TestPipeline_ReportsDegradedEmbedder(t *testing.T) {
	ctx := context.Background()

	fp := embedding.NewFallbackProvider(&alwaysFailingProvider{dim: 8}, embedding.NewHashProvider(8))

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	chunker, err := NewChunker(20, 5)
	require.NoError(t, err)
	p := NewPipeline(db, memory.NewStore(), fp, chunker, 1024)

	manifest, err := p.Ingest(ctx, "doc1", "the cafe opens at nine every morning", "text", "documents")
	require.NoError(t, err)

	assert.True(t, manifest.Degraded, "fallback embeddings must be surfaced on the manifest")
	assert.Empty(t, manifest.FailedChunks)
	assert.Greater(t, manifest.ChunkCount, 0)
}

type alwaysFailingProvider struct{ dim int }

func (a *alwaysFailingProvider) Name() string   { return "down" }
func (a *alwaysFailingProvider) Dimension() int { return a.dim }

func (a *alwaysFailingProvider) EmbedOne(context.Context, string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func (a *alwaysFailingProvider) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}
