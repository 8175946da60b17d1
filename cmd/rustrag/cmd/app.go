package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/Michaol/RustRAG/internal/embed"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/index"
	"github.com/Michaol/RustRAG/internal/store"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
)

func parseFormat(s string) (string, error) {
	switch f := strings.ToLower(s); f {
	case formatText, formatJSON:
		return f, nil
	}
	return "", rerrors.InputError(fmt.Sprintf("unknown format %q (want text or json)", s), nil)
}

// dbPath is the configured database, resolved against the project root.
func (s *session) dbPath() string {
	return s.cfg.ResolveDBPath(s.root)
}

// openStore opens the configured database. With mustExist set, a missing
// database file is reported instead of silently created.
func (s *session) openStore(mustExist bool) (*store.Store, error) {
	path := s.dbPath()
	if mustExist && path != store.MemoryPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("no index found at %s. Run 'rustrag index' first", path)
		}
	}
	ext, err := store.InitVectorExtension()
	if err != nil {
		return nil, err
	}
	return store.Open(ext, path, s.cfg.Embeddings.Dimensions)
}

// newEmbedder builds the configured embedder.
func (s *session) newEmbedder() (embed.Embedder, error) {
	provider, err := embed.ParseProvider(s.cfg.Embeddings.Provider)
	if err != nil {
		return nil, err
	}
	timeout, err := s.cfg.EmbeddingTimeout()
	if err != nil {
		return nil, err
	}
	e := s.cfg.Embeddings
	return embed.New(embed.Options{
		Provider:      provider,
		Model:         e.Model,
		Dimensions:    e.Dimensions,
		BatchSize:     e.BatchSize,
		Concurrency:   e.Concurrency,
		Timeout:       timeout,
		OllamaHost:    e.OllamaHost,
		OpenAIBaseURL: e.OpenAIBaseURL,
		OpenAIAPIKey:  s.cfg.OpenAIAPIKey(),
		CacheSize:     e.CacheSize,
	})
}

// newEngine builds a sync engine over st and embedder. progress may be
// nil.
func (s *session) newEngine(st *store.Store, embedder embed.Embedder, progress func(index.Progress)) (*index.Engine, error) {
	return index.NewEngine(st, embedder, nil, index.Options{
		ChunkSize: s.cfg.Index.ChunkSize,
		Exclude:   s.cfg.Paths.Exclude,
		Metrics:   s.metrics,
		Progress:  progress,
	})
}

// indexRoots returns args, or the configured document directories.
func (s *session) indexRoots(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return s.cfg.Paths.Documents
}
