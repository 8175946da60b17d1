package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// DefaultOllamaHost is the local Ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaConfig configures an OllamaEmbedder.
type OllamaConfig struct {
	Host       string
	Model      string
	Dimensions int
	BatchSize  int
	// Concurrency bounds the number of batches in flight.
	Concurrency int
	Timeout     time.Duration
	Retry       rerrors.RetryConfig
	HTTPClient  *http.Client
}

// OllamaEmbedder calls Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	cfg    OllamaConfig
	client *http.Client

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaError struct {
	Error string `json:"error"`
}

// NewOllamaEmbedder creates an embedder for an Ollama server. No request is
// made until the first Embed call.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
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
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 {
		cfg.Retry = rerrors.DefaultRetryConfig()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OllamaEmbedder{cfg: cfg, client: client}
}

// Embed embeds a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into batches and embeds them concurrently.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

func (e *OllamaEmbedder) embedOnce(ctx context.Context, batch []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: batch})
	if err != nil {
		return nil, inferenceError("encode ollama request", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, inferenceError("build ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, rerrors.NetworkError("ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, rerrors.NetworkError("read ollama response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oe ollamaError
		_ = json.Unmarshal(data, &oe)
		msg := fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, oe.Error)
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, modelLoadError(msg, nil)
		case resp.StatusCode >= 500:
			return nil, rerrors.New(rerrors.ErrCodeNetworkUnavailable, msg, nil)
		default:
			return nil, inferenceError(msg, nil)
		}
	}

	var parsed ollamaEmbedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, inferenceError("decode ollama response", err)
	}
	if len(parsed.Embeddings) != len(batch) {
		return nil, inferenceError(fmt.Sprintf("ollama returned %d embeddings for %d inputs", len(parsed.Embeddings), len(batch)), nil)
	}
	for i, v := range parsed.Embeddings {
		if len(v) != e.cfg.Dimensions {
			return nil, inferenceError(fmt.Sprintf("ollama embedding %d has %d dimensions, want %d", i, len(v), e.cfg.Dimensions), nil)
		}
	}

	slog.Debug("ollama_embed_batch",
		slog.String("model", e.cfg.Model),
		slog.Int("inputs", len(batch)))
	return parsed.Embeddings, nil
}

func (e *OllamaEmbedder) Dimensions() int   { return e.cfg.Dimensions }
func (e *OllamaEmbedder) ModelName() string { return e.cfg.Model }

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		e.client.CloseIdleConnections()
	}
	return nil
}
