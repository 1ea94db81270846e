package embedding

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Ramez-101/doc-ingestion/internal/metrics"
	"github.com/Ramez-101/doc-ingestion/pkg/logger"
)

// FallbackProvider wraps a primary model with the hash embedder. When the
// primary fails, callers get hash embeddings instead of an error and the
// degraded condition is recorded so the pipeline can report it as a warning.
//
// A collection embedded while degraded mixes vector spaces with one embedded
// normally, which hurts recall; the warning on the manifest exists so the
// operator can re-ingest once the model is back.
type FallbackProvider struct {
	primary  Provider
	fallback *HashProvider
	degraded atomic.Bool
}

func NewFallbackProvider(primary Provider, fallback *HashProvider) *FallbackProvider {
	return &FallbackProvider{primary: primary, fallback: fallback}
}

func (p *FallbackProvider) Name() string   { return p.primary.Name() }
func (p *FallbackProvider) Dimension() int { return p.primary.Dimension() }

// Degraded reports whether any embedding since construction fell back to the
// hash model.
func (p *FallbackProvider) Degraded() bool { return p.degraded.Load() }

func (p *FallbackProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *FallbackProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.primary.Embed(ctx, texts)
	if err == nil {
		return vectors, nil
	}

	p.degraded.Store(true)
	metrics.DegradedEmbeddings.Inc()
	logger.Warn("Embedding model unavailable, using hash fallback",
		zap.String("model", p.primary.Name()),
		zap.Error(err),
	)

	return p.fallback.Embed(ctx, texts)
}
