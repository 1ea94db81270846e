package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/internal/vector/memory"
)

// stubEmbedder maps known texts to fixed vectors so search outcomes are
// fully controlled by the test.
type stubEmbedder struct {
	vectors map[string][]float32
	fallback []float32
}

func (s *stubEmbedder) Name() string   { return "stub" }
func (s *stubEmbedder) Dimension() int { return 3 }

func (s *stubEmbedder) EmbedOne(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := s.EmbedOne(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	require.NoError(t, store.Upsert(ctx, "documents", []models.VectorRecord{
		{
			ChunkID:   "hours_chunk_0",
			Embedding: []float32{1, 0, 0},
			Text:      "We are open Monday through Friday, 9am to 6pm.",
			Metadata:  models.VectorMetadata{DocumentID: "hours"},
		},
		{
			ChunkID:   "menu_chunk_0",
			Embedding: []float32{0, 1, 0},
			Text:      "The lunch menu includes soup, salad, and sandwiches.",
			Metadata:  models.VectorMetadata{DocumentID: "menu"},
		},
	}))

	embedder := &stubEmbedder{
		vectors: map[string][]float32{
			"What are your opening hours?": {1, 0, 0},
			"Roughly when are you open?":   {0.4, 0, -0.9},
			"What is on the lunch menu?":   {0, 1, 0},
			"How do I fix my bicycle?":     {-1, 0, 0},
		},
		fallback: []float32{0, 0, 1},
	}

	// With scores normalized into [0,1], an orthogonal vector lands at
	// exactly 0.5, so the threshold sits above it.
	return NewEngine(nil, store, embedder, NewLRUCache(100, time.Hour), "documents", 5, 0.6)
}

func TestEngine_EmptyQuestion(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Ask(context.Background(), "   ", "s1")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestEngine_HighConfidenceAnswer(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Ask(context.Background(), "What are your opening hours?", "s1")
	require.NoError(t, err)

	assert.Equal(t, ResponseTypeHigh, resp.ResponseType)
	assert.Contains(t, resp.Answer, "open Monday through Friday")
	assert.Contains(t, resp.Answer, highConfidencePrefix)
	assert.InDelta(t, 1.0, resp.SimilarityScore, 1e-6)
	assert.Equal(t, resp.SimilarityScore, resp.Confidence)
	assert.False(t, resp.Cached)
	assert.NotEmpty(t, resp.ResponseID)
}

func TestEngine_MediumConfidenceAnswer(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Ask(context.Background(), "Roughly when are you open?", "s1")
	require.NoError(t, err)

	assert.Equal(t, ResponseTypeMedium, resp.ResponseType)
	assert.Contains(t, resp.Answer, mediumConfidencePrefix)
	assert.Contains(t, resp.Answer, "open Monday through Friday")
	assert.Greater(t, resp.SimilarityScore, 0.6)
	assert.LessOrEqual(t, resp.SimilarityScore, highConfidenceBand)
}

func TestEngine_BelowThresholdReturnsSentinel(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Ask(context.Background(), "How do I fix my bicycle?", "s1")
	require.NoError(t, err)

	assert.Equal(t, ResponseTypeNoResults, resp.ResponseType)
	assert.Equal(t, NoAnswerSentinel, resp.Answer)
	assert.Zero(t, resp.Confidence)
	assert.Less(t, resp.SimilarityScore, 0.6)
}

func TestEngine_EmptyStoreReturnsSentinel(t *testing.T) {
	e := NewEngine(nil, memory.NewStore(), &stubEmbedder{fallback: []float32{1, 0, 0}}, NewLRUCache(10, time.Hour), "documents", 5, 0.6)

	resp, err := e.Ask(context.Background(), "Anything at all?", "s1")
	require.NoError(t, err)

	assert.Equal(t, ResponseTypeNoResults, resp.ResponseType)
	assert.Equal(t, NoAnswerSentinel, resp.Answer)
	assert.Zero(t, resp.Confidence)
	assert.Zero(t, resp.SimilarityScore)
}

func TestEngine_RepeatQuestionServedFromCache(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Ask(ctx, "What are your opening hours?", "s1")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := e.Ask(ctx, "What are your opening hours?", "s1")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.ResponseType, second.ResponseType)
	assert.NotEqual(t, first.ResponseID, second.ResponseID, "each ask gets its own response id")
}

func TestEngine_FingerprintNormalizesQuestion(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Ask(ctx, "What are your opening hours?", "s1")
	require.NoError(t, err)

	// Same words, different casing and spacing: must hit the same entry
	// even though the stub embedder has no vector for this exact string.
	second, err := e.Ask(ctx, "  WHAT are   your opening HOURS?  ", "s2")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.Answer, second.Answer)
}

func TestEngine_SentinelResponsesAreCachedToo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Ask(ctx, "How do I fix my bicycle?", "s1")
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := e.Ask(ctx, "How do I fix my bicycle?", "s1")
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, NoAnswerSentinel, second.Answer)
}
