// Package search answers similarity queries against the store.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/Michaol/RustRAG/internal/embed"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/store"
	"github.com/Michaol/RustRAG/internal/telemetry"
)

// Filter narrows a search by directory and file name glob.
type Filter = store.SearchFilter

// Result is one ranked chunk.
type Result = store.SearchResult

// Engine ranks stored chunks by cosine similarity to a query.
type Engine struct {
	store       *store.Store
	embedder    embed.Embedder
	metrics     *telemetry.Metrics
	queryPrefix string
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMetrics records every search in m.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryPrefix prepends prefix to query text before embedding, for
// models trained with instruction prefixes such as "query: ".
func WithQueryPrefix(prefix string) EngineOption {
	return func(e *Engine) {
		e.queryPrefix = prefix
	}
}

// NewEngine creates a search engine. The embedder may be nil when only
// vector and symbol searches are used.
func NewEngine(st *store.Store, embedder embed.Embedder, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, rerrors.InputError("store is required", nil)
	}
	if embedder != nil && embedder.Dimensions() != st.Dimensions() {
		return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch, "embedder and store dimensions differ", nil).
			WithDetail("embedder", fmt.Sprint(embedder.Dimensions())).
			WithDetail("store", fmt.Sprint(st.Dimensions()))
	}
	e := &Engine{store: st, embedder: embedder}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search returns the topK chunks closest to vector, best first.
func (e *Engine) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error) {
	start := time.Now()
	results, err := e.store.SearchWithFilter(ctx, vector, topK, filter)
	e.observe(start, "", topK, filter, results, err)
	return results, err
}

// SearchText embeds query and searches with the result.
func (e *Engine) SearchText(ctx context.Context, query string, topK int, filter Filter) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, rerrors.New(rerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if topK <= 0 {
		return nil, rerrors.New(rerrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if e.embedder == nil {
		return nil, rerrors.InternalError("search engine has no embedder", nil)
	}

	start := time.Now()
	vector, err := e.embedder.Embed(ctx, e.queryPrefix+query)
	if err != nil {
		e.observe(start, query, topK, filter, nil, err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.store.SearchWithFilter(ctx, vector, topK, filter)
	e.observe(start, query, topK, filter, results, err)
	return results, err
}

// SearchSymbols finds code chunks whose symbol name contains any term of
// query, ignoring case.
func (e *Engine) SearchSymbols(ctx context.Context, query string, limit int) ([]Result, error) {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil, rerrors.New(rerrors.ErrCodeQueryEmpty, "query is empty", nil)
	}
	if limit <= 0 {
		return nil, rerrors.New(rerrors.ErrCodeInvalidTopK, fmt.Sprintf("limit must be positive, got %d", limit), nil)
	}
	return e.store.SearchSymbols(ctx, terms, limit)
}

// Terms splits a query into lowercase terms on anything that is not a
// letter, digit or underscore, dropping duplicates.
func Terms(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	seen := make(map[string]bool, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			terms = append(terms, f)
		}
	}
	return terms
}

func (e *Engine) observe(start time.Time, query string, topK int, filter Filter, results []Result, err error) {
	d := time.Since(start)
	e.metrics.ObserveSearch(d, len(results), err)
	if err != nil {
		slog.Debug("search_failed", slog.String("error", err.Error()))
		return
	}
	slog.Debug("search_complete",
		slog.Int("query_len", len(query)),
		slog.Int("top_k", topK),
		slog.String("directory", filter.Directory),
		slog.String("file_pattern", filter.FilePattern),
		slog.Int("results", len(results)),
		slog.Duration("duration", d),
		slog.String("latency_bucket", string(telemetry.LatencyToBucket(d))))
}
