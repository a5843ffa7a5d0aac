package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// DefaultMockDimension matches the nomic-embed-text output size so the
// fallback slots into an index built for the common local model.
const DefaultMockDimension = 768

// MockProvider derives reproducible pseudo-random vectors from a stable hash
// of the input text. It exists so the pipeline never blocks because no real
// provider is configured; it is a degraded-quality mode, not a correctness
// substitute.
type MockProvider struct {
	id   string
	name string
	dim  int
}

func NewMockProvider(id, name string, dim int) *MockProvider {
	if id == "" {
		id = "mock"
	}
	if name == "" {
		name = "Offline fallback"
	}
	if dim <= 0 {
		dim = DefaultMockDimension
	}
	return &MockProvider{id: id, name: name, dim: dim}
}

// MockVector returns the deterministic fallback vector for text. Identical
// text always yields an identical vector for a given dimension.
func MockVector(text string, dim int) []float32 {
	if dim <= 0 {
		dim = DefaultMockDimension
	}
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	return vec
}

func (m *MockProvider) Embed(_ context.Context, text string) ([]float32, error) {
	return MockVector(text, m.dim), nil
}

func (m *MockProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = MockVector(t, m.dim)
	}
	return vecs, nil
}

func (m *MockProvider) Dimension() int { return m.dim }

func (m *MockProvider) Info() ProviderInfo {
	return ProviderInfo{ID: m.id, Name: m.name, Kind: KindMock, Model: "deterministic-hash", Dimension: m.dim}
}
