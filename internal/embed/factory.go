package embed

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// Provider names an embedding backend.
type Provider string

const (
	ProviderMock   Provider = "mock"
	ProviderStatic Provider = "static"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// ParseProvider converts a string to a Provider, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderMock, ProviderStatic, ProviderOllama, ProviderOpenAI:
		return p, nil
	}
	return "", rerrors.ConfigError(fmt.Sprintf("unknown embedding provider %q", s), nil)
}

// Options selects and configures an embedder.
type Options struct {
	Provider    Provider
	Model       string
	Dimensions  int
	BatchSize   int
	Concurrency int
	Timeout     time.Duration

	OllamaHost string

	OpenAIBaseURL string
	OpenAIAPIKey  string

	// CacheSize > 0 wraps the embedder in a CachedEmbedder.
	CacheSize int
}

// New builds the embedder described by opts.
func New(opts Options) (Embedder, error) {
	var e Embedder
	switch opts.Provider {
	case ProviderMock:
		e = NewMockEmbedder(opts.Dimensions)
	case ProviderStatic, "":
		e = NewStaticEmbedder(opts.Dimensions)
	case ProviderOllama:
		e = NewOllamaEmbedder(OllamaConfig{
			Host:        opts.OllamaHost,
			Model:       opts.Model,
			Dimensions:  opts.Dimensions,
			BatchSize:   opts.BatchSize,
			Concurrency: opts.Concurrency,
			Timeout:     opts.Timeout,
		})
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" && opts.OpenAIBaseURL == "" {
			return nil, modelLoadError("openai provider needs an API key or a base URL", nil)
		}
		e = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:      opts.OpenAIAPIKey,
			BaseURL:     opts.OpenAIBaseURL,
			Model:       opts.Model,
			Dimensions:  opts.Dimensions,
			BatchSize:   opts.BatchSize,
			Concurrency: opts.Concurrency,
		})
	default:
		return nil, rerrors.ConfigError(fmt.Sprintf("unknown embedding provider %q", opts.Provider), nil)
	}

	slog.Debug("embedder_created",
		slog.String("provider", string(opts.Provider)),
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))

	if opts.CacheSize > 0 {
		return NewCachedEmbedder(e, opts.CacheSize), nil
	}
	return e, nil
}
