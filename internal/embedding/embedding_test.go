package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(64)

	a, err := p.EmbedOne(context.Background(), "What are your opening hours?")
	require.NoError(t, err)
	b, err := p.EmbedOne(context.Background(), "What are your opening hours?")
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical text must produce identical vectors")
	assert.Len(t, a, 64)
}

func TestHashProvider_UnitNorm(t *testing.T) {
	p := NewHashProvider(128)

	v, err := p.EmbedOne(context.Background(), "vegetarian options on the lunch menu")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHashProvider_Batch(t *testing.T) {
	p := NewHashProvider(32)

	vectors, err := p.Embed(context.Background(), []string{"first", "second", "first"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestHashProvider_EmptyText(t *testing.T) {
	p := NewHashProvider(16)

	v, err := p.EmbedOne(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, v, 16)
}

type failingProvider struct{ dim int }

func (f *failingProvider) Name() string   { return "failing-model" }
func (f *failingProvider) Dimension() int { return f.dim }

func (f *failingProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("model unavailable")
}

func (f *failingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("model unavailable")
}

func TestFallbackProvider_DegradesInsteadOfFailing(t *testing.T) {
	fp := NewFallbackProvider(&failingProvider{dim: 32}, NewHashProvider(32))

	assert.False(t, fp.Degraded())

	vectors, err := fp.Embed(context.Background(), []string{"menu", "hours"})
	require.NoError(t, err, "fallback must absorb primary failure")
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 32)
	assert.True(t, fp.Degraded())
}

func TestFallbackProvider_PrefersPrimary(t *testing.T) {
	primary := NewHashProvider(16)
	fp := NewFallbackProvider(primary, NewHashProvider(16))

	vectors, err := fp.Embed(context.Background(), []string{"soup of the day"})
	require.NoError(t, err)

	want, _ := primary.Embed(context.Background(), []string{"soup of the day"})
	assert.Equal(t, want, vectors)
	assert.False(t, fp.Degraded())
}

func TestResolve_UnknownProvider(t *testing.T) {
	_, err := Resolve(Options{Provider: "nope", Dim: 8})
	assert.Error(t, err)
}

func TestResolve_HashProvider(t *testing.T) {
	fp, err := Resolve(Options{Provider: "hash", Dim: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, fp.Dimension())
}
