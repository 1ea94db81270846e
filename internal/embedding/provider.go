package embedding

import (
	"context"
	"fmt"
)

// Provider turns text into fixed-dimension vectors. One provider is resolved
// per collection at construction time and applied consistently to both
// ingestion and queries.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// Quality keys selectable through configuration.
const (
	QualityFast = "fast"
	QualityHigh = "quality"
)

type Options struct {
	Provider   string
	APIKey     string
	Model      string
	FastModel  string
	Quality    string
	Dim        int
	TimeoutSec int
}

// Resolve builds the configured provider wrapped with the deterministic hash
// fallback, so ingestion never blocks on an unavailable model.
func Resolve(opts Options) (*FallbackProvider, error) {
	fallback := NewHashProvider(opts.Dim)

	switch opts.Provider {
	case "openai":
		model := opts.Model
		if opts.Quality == QualityFast && opts.FastModel != "" {
			model = opts.FastModel
		}
		primary := NewOpenAIProvider(opts.APIKey, model, opts.Dim, opts.TimeoutSec)
		return NewFallbackProvider(primary, fallback), nil
	case "hash":
		return NewFallbackProvider(fallback, fallback), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}
