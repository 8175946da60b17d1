// Package embed turns text into dense vectors.
package embed

import (
	"context"
	"math"
	"time"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

const (
	// DefaultDimensions matches multilingual-e5-small.
	DefaultDimensions = 384

	// DefaultModel is the model name recorded when none is configured.
	DefaultModel = "multilingual-e5-small"

	// MaxBatchSize bounds a single backend request.
	MaxBatchSize = 256

	// DefaultBatchSize is the number of texts sent per backend request.
	DefaultBatchSize = 32

	// DefaultConcurrency is the number of batches in flight at once.
	DefaultConcurrency = 4

	// DefaultTimeout bounds one backend request.
	DefaultTimeout = 60 * time.Second
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts, returning vectors in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Sentinel errors. Failures returned by embedders match one of these under
// errors.Is.
var (
	ErrInferenceFailed = rerrors.New(rerrors.ErrCodeInferenceFailed, "embedding inference failed", nil)
	ErrModelLoadFailed = rerrors.New(rerrors.ErrCodeModelLoadFailed, "embedding model load failed", nil)
	ErrTokenizer       = rerrors.New(rerrors.ErrCodeTokenizer, "tokenizer failed", nil)
)

var errClosed = rerrors.New(rerrors.ErrCodeInferenceFailed, "embedder is closed", nil)

func inferenceError(msg string, cause error) error {
	return rerrors.New(rerrors.ErrCodeInferenceFailed, msg, cause)
}

func modelLoadError(msg string, cause error) error {
	return rerrors.New(rerrors.ErrCodeModelLoadFailed, msg, cause)
}

// normalizeVector scales v to unit length in place. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sumSquares)
	for i, val := range v {
		v[i] = float32(float64(val) * inv)
	}
	return v
}

// batches splits texts into consecutive slices of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
