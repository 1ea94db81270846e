package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/embedding"
	"github.com/Ramez-101/doc-ingestion/internal/metrics"
	"github.com/Ramez-101/doc-ingestion/internal/storage/models"
	"github.com/Ramez-101/doc-ingestion/internal/storage/sqlite"
	"github.com/Ramez-101/doc-ingestion/internal/vector"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
	"github.com/Ramez-101/doc-ingestion/pkg/utils"
)

var ErrEmptyQuestion = errors.New("question must not be empty")

// Response type bands, by top similarity score.
const (
	ResponseTypeHigh      = "high_confidence"
	ResponseTypeMedium    = "medium_confidence"
	ResponseTypeNoResults = "no_results"

	highConfidenceBand = 0.8
)

const (
	highConfidencePrefix = "Based on our documents, here's what I found:"
	mediumConfidencePrefix = "I found some information that might be related to your question:"

	// NoAnswerSentinel is returned whenever no retrieved chunk clears the
	// confidence threshold. Never a guessed answer.
	NoAnswerSentinel = "I'm sorry, I couldn't find specific information about that in our documents. Could you try rephrasing your question?"
)

type Response struct {
	ResponseID      string  `json:"response_id"`
	Question        string  `json:"question"`
	Answer          string  `json:"answer"`
	Confidence      float64 `json:"confidence"`
	SimilarityScore float64 `json:"similarity_score"`
	ResponseType    string  `json:"response_type"`
	Cached          bool    `json:"cached"`
	LatencyMS       int     `json:"latency_ms"`
}

// Engine answers one question: fingerprint, cache lookup, embed, vector
// search, threshold check, cache fill, history record.
type Engine struct {
	db         *sqlite.Client
	store      vector.Store
	embedder   embedding.Provider
	cache      Cache
	collection string
	topK       int
	threshold  float64
}

func NewEngine(db *sqlite.Client, store vector.Store, embedder embedding.Provider, cache Cache, collection string, topK int, threshold float64) *Engine {
	if topK < 1 {
		topK = 5
	}
	return &Engine{
		db:         db,
		store:      store,
		embedder:   embedder,
		cache:      cache,
		collection: collection,
		topK:       topK,
		threshold:  threshold,
	}
}

func (e *Engine) Ask(ctx context.Context, question, sessionID string) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	responseID := uuid.New().String()
	fingerprint := utils.Fingerprint(question)

	if entry, err := e.cache.Get(ctx, fingerprint); err != nil {
		logger.Warn("Cache lookup failed", zap.Error(err))
	} else if entry != nil {
		metrics.CacheHits.WithLabelValues("response").Inc()
		metrics.QueryTotal.WithLabelValues("cached").Inc()

		resp := &Response{
			ResponseID:      responseID,
			Question:        question,
			Answer:          entry.Answer,
			Confidence:      entry.Confidence,
			SimilarityScore: entry.SimilarityScore,
			ResponseType:    entry.ResponseType,
			Cached:          true,
			LatencyMS:       int(time.Since(start).Milliseconds()),
		}
		e.recordQuery(resp, sessionID)
		return resp, nil
	}

	metrics.CacheMisses.WithLabelValues("response").Inc()

	queryVector, err := e.embedder.EmbedOne(ctx, question)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := e.store.Query(ctx, e.collection, queryVector, e.topK, nil)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	resp := e.buildResponse(responseID, question, results)
	resp.LatencyMS = int(time.Since(start).Milliseconds())

	// Cache insertion and history are caller-independent side effects: they
	// complete even when the caller has already disconnected.
	detached := context.WithoutCancel(ctx)
	if err := e.cache.Set(detached, CacheEntry{
		Fingerprint:     fingerprint,
		Question:        question,
		Answer:          resp.Answer,
		Confidence:      resp.Confidence,
		SimilarityScore: resp.SimilarityScore,
		ResponseType:    resp.ResponseType,
		CreatedAt:       time.Now(),
	}); err != nil {
		logger.Warn("Cache insert failed", zap.Error(err))
	}
	e.recordQuery(resp, sessionID)

	metrics.QueryTotal.WithLabelValues("ok").Inc()
	metrics.ConfidenceScore.Observe(resp.Confidence)
	metrics.QueryDuration.WithLabelValues("false").Observe(time.Since(start).Seconds())

	logger.Info("Question answered",
		zap.String("response_id", responseID),
		zap.String("response_type", resp.ResponseType),
		zap.Float64("similarity", resp.SimilarityScore),
	)

	return resp, nil
}

// buildResponse applies the threshold policy: similarity below the threshold
// always yields the sentinel, never a guessed answer. Confidence is the
// similarity score itself (monotonic identity).
func (e *Engine) buildResponse(responseID, question string, results []vector.SearchResult) *Response {
	if len(results) == 0 || results[0].Score < e.threshold {
		score := 0.0
		if len(results) > 0 {
			score = results[0].Score
		}
		return &Response{
			ResponseID:      responseID,
			Question:        question,
			Answer:          NoAnswerSentinel,
			Confidence:      0,
			SimilarityScore: score,
			ResponseType:    ResponseTypeNoResults,
		}
	}

	top := results[0]

	prefix := mediumConfidencePrefix
	responseType := ResponseTypeMedium
	if top.Score > highConfidenceBand {
		prefix = highConfidencePrefix
		responseType = ResponseTypeHigh
	}

	return &Response{
		ResponseID:      responseID,
		Question:        question,
		Answer:          prefix + "\n\n" + top.Record.Text,
		Confidence:      top.Score,
		SimilarityScore: top.Score,
		ResponseType:    responseType,
	}
}

func (e *Engine) recordQuery(resp *Response, sessionID string) {
	if e.db == nil {
		return
	}
	err := e.db.InsertQueryRecord(&models.QueryRecord{
		ID:         resp.ResponseID,
		SessionID:  sessionID,
		QueryText:  resp.Question,
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		Cached:     resp.Cached,
		LatencyMS:  resp.LatencyMS,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record query", zap.Error(err))
	}
}

func (e *Engine) History(sessionID string, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.db.GetQueryHistory(sessionID, limit)
}
