package embed

import (
	"context"
	"encoding/binary"
	"hash/fnv"
)

// MockEmbedder produces deterministic vectors from a hash of the text.
// Equal texts always map to equal vectors. Used by tests and dry runs.
type MockEmbedder struct {
	dims int
}

var _ Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder. dims <= 0 selects DefaultDimensions.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &MockEmbedder{dims: dims}
}

// Embed hashes text to 8 bytes and spreads them over the vector.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], h.Sum64())

	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(seed[i%8]) / 255
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text in turn.
func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MockEmbedder) Dimensions() int   { return m.dims }
func (m *MockEmbedder) ModelName() string { return "mock" }
func (m *MockEmbedder) Close() error      { return nil }
