package embedding

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/pkg/circuitbreaker"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
	"github.com/Ramez-101/doc-ingestion/pkg/retry"
)

const embedBatchSize = 100

// OpenAIProvider generates embeddings through the OpenAI API with bounded
// retry and a circuit breaker so a degraded upstream fails fast instead of
// hanging callers.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	dim         int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewOpenAIProvider(apiKey, model string, dim, timeoutSec int) *OpenAIProvider {
	if timeoutSec <= 0 {
		timeoutSec = 15
	}

	cb := circuitbreaker.NewCircuitBreaker("embedding", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("OpenAI embedding provider initialized",
		zap.String("model", model),
		zap.Int("dim", dim),
	)

	return &OpenAIProvider{
		client:      openai.NewClient(apiKey),
		model:       model,
		dim:         dim,
		timeout:     time.Duration(timeoutSec) * time.Second,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (p *OpenAIProvider) Name() string   { return p.model }
func (p *OpenAIProvider) Dimension() int { return p.dim }

func (p *OpenAIProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	embeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += embedBatchSize {
		end := i + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		err := p.cb.Execute(ctx, func() error {
			return retry.Do(ctx, p.retryConfig, func() error {
				resp, err := p.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(p.model),
					},
				)
				if err != nil {
					return fmt.Errorf("failed to generate embeddings: %w", err)
				}

				for _, data := range resp.Data {
					vector := make([]float32, len(data.Embedding))
					copy(vector, data.Embedding)
					embeddings = append(embeddings, vector)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated",
		zap.Int("count", len(embeddings)),
		zap.String("model", p.model),
	)

	return embeddings, nil
}
