package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// OpenAIConfig configures an OpenAI-compatible embedding endpoint.
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API root, e.g. a self-hosted gateway.
	BaseURL     string
	Model       string
	Dimensions  int
	BatchSize   int
	Concurrency int
	Retry       rerrors.RetryConfig
	HTTPClient  *http.Client
}

// OpenAIEmbedder embeds text through an OpenAI-compatible API.
type OpenAIEmbedder struct {
	cfg    OpenAIConfig
	client *openai.Client

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an embedder. Dimensions is sent with each
// request so models that support truncation return the configured size.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = rerrors.DefaultRetryConfig()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}
	return &OpenAIEmbedder{cfg: cfg, client: openai.NewClientWithConfig(clientCfg)}
}

// Embed embeds a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in concurrent batches, preserving input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	offset := 0
	for _, batch := range batches(texts, e.cfg.BatchSize) {
		start, batch := offset, batch
		offset += len(batch)
		g.Go(func() error {
			vecs, err := rerrors.RetryWithResult(gctx, e.cfg.Retry, func() ([][]float32, error) {
				return e.embedOnce(gctx, batch)
			})
			if err != nil {
				return err
			}
			copy(out[start:], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          batch,
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.cfg.Dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Data) != len(batch) {
		return nil, inferenceError(fmt.Sprintf("api returned %d embeddings for %d inputs", len(resp.Data), len(batch)), nil)
	}

	out := make([][]float32, len(batch))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(batch) {
			return nil, inferenceError(fmt.Sprintf("api returned out-of-range index %d", d.Index), nil)
		}
		if len(d.Embedding) != e.cfg.Dimensions {
			return nil, inferenceError(fmt.Sprintf("embedding has %d dimensions, want %d", len(d.Embedding), e.cfg.Dimensions), nil)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// classifyOpenAIError maps API failures onto retryable network errors or
// terminal embedding errors.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := fmt.Sprintf("embedding api error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		switch {
		case apiErr.HTTPStatusCode == http.StatusNotFound:
			return modelLoadError(msg, err)
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500:
			return rerrors.New(rerrors.ErrCodeNetworkUnavailable, msg, err)
		default:
			return inferenceError(msg, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500 {
			return rerrors.NetworkError(fmt.Sprintf("embedding request failed with %d", reqErr.HTTPStatusCode), err)
		}
		return inferenceError(fmt.Sprintf("embedding request failed with %d", reqErr.HTTPStatusCode), err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return rerrors.NetworkError("embedding request failed", err)
}

func (e *OpenAIEmbedder) Dimensions() int   { return e.cfg.Dimensions }
func (e *OpenAIEmbedder) ModelName() string { return e.cfg.Model }

func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
