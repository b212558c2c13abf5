package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
)

const mockDimensions = 64

// MockClient produces deterministic embeddings without a network call.
// Texts sharing words get correlated vectors, so drift behaves sanely in
// local development: identical texts embed identically, disjoint texts
// land far apart.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, mockDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		rng := rand.New(rand.NewSource(int64(h.Sum64())))
		for i := range vec {
			vec[i] += rng.NormFloat64()
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, mockDimensions)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}
