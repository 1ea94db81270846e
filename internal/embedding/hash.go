package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider is the deterministic fallback embedder. Tokens are hashed into
// a fixed number of signed buckets and the result is L2-normalized. Quality is
// far below a real model, but it never fails and identical text always maps
// to the identical vector.
type HashProvider struct {
	dim int
}

func NewHashProvider(dim int) *HashProvider {
	if dim <= 0 {
		dim = 384
	}
	return &HashProvider{dim: dim}
}

func (p *HashProvider) Name() string   { return "hash-fallback" }
func (p *HashProvider) Dimension() int { return p.dim }

func (p *HashProvider) EmbedOne(_ context.Context, text string) ([]float32, error) {
	return p.embed(text), nil
}

func (p *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

func (p *HashProvider) embed(text string) []float32 {
	vector := make([]float32, p.dim)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(p.dim))
		// Low bit of the upper half decides the sign so collisions do not
		// systematically inflate one direction.
		if (sum>>32)&1 == 0 {
			vector[bucket]++
		} else {
			vector[bucket]--
		}
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}

	return vector
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
