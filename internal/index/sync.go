// Package index keeps the store in step with files on disk.
//
// Engine performs differential directory syncs and single-file updates.
// Coordinator applies watcher batches through the same Engine, and
// FileLock serialises index runs across processes.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Michaol/RustRAG/internal/chunk"
	"github.com/Michaol/RustRAG/internal/embed"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/scanner"
	"github.com/Michaol/RustRAG/internal/store"
	"github.com/Michaol/RustRAG/internal/telemetry"
)

// SyncResult counts what a directory sync did. Indexed is Added+Updated.
type SyncResult struct {
	Added    int           `json:"added"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Indexed  int           `json:"indexed"`
	Duration time.Duration `json:"duration"`
}

// Options configures an Engine.
type Options struct {
	// ChunkSize bounds markdown chunks in runes. Zero means
	// chunk.DefaultChunkSize.
	ChunkSize int

	// Exclude holds gitignore-style patterns skipped by the walker.
	Exclude []string

	// IgnoreGitignore disables .gitignore handling.
	IgnoreGitignore bool

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64

	// Metrics is optional.
	Metrics *telemetry.Metrics

	// Progress, when set, is called once per scanned file during
	// IndexDirectory, from the calling goroutine.
	Progress func(Progress)
}

// Progress reports one file handled by IndexDirectory. Done counts files
// handled so far, Total the files the scan found.
type Progress struct {
	Path    string
	Outcome string
	Done    int
	Total   int
	Err     error
}

// Engine indexes files into a Store.
type Engine struct {
	store     *store.Store
	embedder  embed.Embedder
	extractor *chunk.Extractor
	relations *chunk.RelationExtractor
	scanner   *scanner.Scanner
	opts      Options
}

// NewEngine wires an Engine. A nil registry selects chunk.DefaultRegistry.
// The embedder must produce vectors of the store's dimension.
func NewEngine(st *store.Store, embedder embed.Embedder, registry *chunk.Registry, opts Options) (*Engine, error) {
	if st == nil {
		return nil, rerrors.InputError("store is required", nil)
	}
	if embedder == nil {
		return nil, rerrors.InputError("embedder is required", nil)
	}
	if embedder.Dimensions() != st.Dimensions() {
		return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch, "embedder and store dimensions differ", nil).
			WithDetail("embedder", fmt.Sprint(embedder.Dimensions())).
			WithDetail("store", fmt.Sprint(st.Dimensions()))
	}
	if registry == nil {
		r, err := chunk.DefaultRegistry()
		if err != nil {
			return nil, err
		}
		registry = r
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunk.DefaultChunkSize
	}
	sc, err := scanner.New()
	if err != nil {
		return nil, err
	}
	return &Engine{
		store:     st,
		embedder:  embedder,
		extractor: chunk.NewExtractor(registry),
		relations: chunk.NewRelationExtractor(registry),
		scanner:   sc,
		opts:      opts,
	}, nil
}

// Scanner returns the engine's walker.
func (e *Engine) Scanner() *scanner.Scanner {
	return e.scanner
}

// ScanOptions returns the walker options used for root.
func (e *Engine) ScanOptions(root string) scanner.Options {
	return scanner.Options{
		Root:             root,
		Exclude:          e.opts.Exclude,
		RespectGitignore: !e.opts.IgnoreGitignore,
		MaxFileSize:      e.opts.MaxFileSize,
	}
}

// DocumentKey is the stored name for a file: the path as walked, cleaned
// and slash-separated.
func DocumentKey(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// IndexDirectory brings every eligible file under root up to date.
// Unchanged files (same modification second) are skipped unless force is
// set. A failing file is counted and logged; the walk continues.
func (e *Engine) IndexDirectory(ctx context.Context, root string, force bool) (SyncResult, error) {
	start := time.Now()
	var res SyncResult

	existing, err := e.store.ListDocuments(ctx)
	if err != nil {
		return res, err
	}

	files, err := e.scanner.Scan(ctx, e.ScanOptions(root))
	if err != nil {
		return res, rerrors.IOError(fmt.Sprintf("scan %s", root), err)
	}

	// Collect the scan first so progress has a total.
	var found []*scanner.FileInfo
	for r := range files {
		if r.Error != nil {
			return e.finish(res, start), r.Error
		}
		found = append(found, r.File)
	}

	for i, f := range found {
		key := DocumentKey(f.Path)

		prev, known := existing[key]
		var counter *int
		var outcome string
		switch {
		case !known:
			counter, outcome = &res.Added, telemetry.OutcomeAdded
		case force || prev.Unix() != f.ModTime.Unix():
			counter, outcome = &res.Updated, telemetry.OutcomeUpdated
		default:
			res.Skipped++
			e.opts.Metrics.RecordFile(telemetry.OutcomeSkipped)
			e.report(Progress{Path: key, Outcome: telemetry.OutcomeSkipped, Done: i + 1, Total: len(found)})
			continue
		}

		*counter++
		if err := e.indexFile(ctx, f.Path, key, f.ModTime, f.Kind); err != nil {
			*counter--
			if ctxErr := ctx.Err(); ctxErr != nil {
				return e.finish(res, start), ctxErr
			}
			res.Failed++
			e.opts.Metrics.RecordFile(telemetry.OutcomeFailed)
			slog.Warn("sync_file_failed",
				slog.String("path", key),
				slog.String("code", rerrors.GetCode(err)),
				slog.String("error", err.Error()))
			e.report(Progress{Path: key, Outcome: telemetry.OutcomeFailed, Done: i + 1, Total: len(found), Err: err})
			continue
		}
		e.opts.Metrics.RecordFile(outcome)
		e.report(Progress{Path: key, Outcome: outcome, Done: i + 1, Total: len(found)})
	}

	if err := ctx.Err(); err != nil {
		return e.finish(res, start), err
	}
	res = e.finish(res, start)
	e.opts.Metrics.ObserveSync(res.Duration)
	slog.Info("sync_complete",
		slog.String("root", root),
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", res.Duration))
	return res, nil
}

func (e *Engine) report(p Progress) {
	if e.opts.Progress != nil {
		e.opts.Progress(p)
	}
}

func (e *Engine) finish(res SyncResult, start time.Time) SyncResult {
	res.Indexed = res.Added + res.Updated
	res.Duration = time.Since(start)
	return res
}

// IndexFile indexes path regardless of its stored modification time.
func (e *Engine) IndexFile(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return rerrors.IOError(fmt.Sprintf("stat %s", path), err)
	}
	if !info.Mode().IsRegular() {
		return rerrors.InputError(fmt.Sprintf("%s is not a regular file", path), nil)
	}
	return e.indexFile(ctx, path, DocumentKey(path), info.ModTime(), scanner.KindOf(scanner.Ext(path)))
}

// RemoveFile deletes the document for path and reports whether it existed.
func (e *Engine) RemoveFile(ctx context.Context, path string) (bool, error) {
	return e.store.DeleteDocument(ctx, DocumentKey(path))
}

// RemoveTree deletes every document stored below dir.
func (e *Engine) RemoveTree(ctx context.Context, dir string) (int, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	prefix := strings.TrimSuffix(DocumentKey(dir), "/") + "/"
	removed := 0
	for name := range docs {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ok, err := e.store.DeleteDocument(ctx, name)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Prune deletes documents below root whose files are gone or no longer
// eligible, for example after a .gitignore change.
func (e *Engine) Prune(ctx context.Context, root string) (int, error) {
	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return 0, err
	}
	current, err := e.scanner.Collect(ctx, e.ScanOptions(root))
	if err != nil {
		return 0, rerrors.IOError(fmt.Sprintf("scan %s", root), err)
	}
	live := make(map[string]bool, len(current))
	for _, f := range current {
		live[DocumentKey(f.Path)] = true
	}

	prefix := DocumentKey(root)
	if prefix == "." {
		prefix = ""
	} else {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}
	removed := 0
	for name := range docs {
		if live[name] || !strings.HasPrefix(name, prefix) {
			continue
		}
		if prefix == "" && (filepath.IsAbs(name) || strings.HasPrefix(name, "../")) {
			continue
		}
		ok, err := e.store.DeleteDocument(ctx, name)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			slog.Debug("sync_pruned", slog.String("path", name))
		}
	}
	return removed, nil
}

// indexFile parses and embeds one file outside the store lock, then
// replaces its document in a single transaction.
func (e *Engine) indexFile(ctx context.Context, path, key string, modTime time.Time, kind scanner.Kind) error {
	if kind == scanner.KindMarkdown {
		return e.indexMarkdown(ctx, path, key, modTime)
	}
	return e.indexCode(ctx, path, key, modTime)
}

func (e *Engine) indexMarkdown(ctx context.Context, path, key string, modTime time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return rerrors.IOError(fmt.Sprintf("read %s", path), err)
	}
	chunks := chunk.Chunk(string(data), e.opts.ChunkSize)

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]store.ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = store.ChunkRecord{Position: c.Position, Content: c.Content, Embedding: vectors[i]}
	}
	return e.store.InsertDocument(ctx, key, modTime, records)
}

func (e *Engine) indexCode(ctx context.Context, path, key string, modTime time.Time) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return rerrors.IOError(fmt.Sprintf("read %s", path), err)
	}
	chunks, err := e.extractor.ParseSource(ctx, path, source)
	if err != nil {
		return err
	}
	var rels [][]chunk.CodeRelation
	if len(chunks) > 0 {
		rels, err = e.relations.ExtractChunks(ctx, source, chunks[0].Language, key, chunks)
		if err != nil {
			return err
		}
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.EmbeddingText()
	}
	vectors, err := e.embed(ctx, texts)
	if err != nil {
		return err
	}

	records := make([]store.CodeChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = store.CodeChunkRecord{
			ChunkRecord: store.ChunkRecord{Position: c.Position, Content: c.Content, Embedding: vectors[i]},
			Metadata: store.CodeMetadata{
				SymbolName:   c.SymbolName,
				SymbolType:   string(c.SymbolType),
				Language:     c.Language,
				StartLine:    c.StartLine,
				EndLine:      c.EndLine,
				ParentSymbol: c.ParentSymbol,
				Signature:    c.Signature,
			},
			Relations: toRelationRecords(rels[i]),
		}
	}
	return e.store.InsertCodeDocument(ctx, key, modTime, records)
}

func toRelationRecords(rels []chunk.CodeRelation) []store.RelationRecord {
	if len(rels) == 0 {
		return nil
	}
	out := make([]store.RelationRecord, len(rels))
	for i, r := range rels {
		out[i] = store.RelationRecord{
			TargetName: r.TargetName,
			Type:       string(r.Type),
			TargetFile: r.TargetFile,
			SourceLine: r.SourceLine,
		}
	}
	return out
}

func (e *Engine) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		var re *rerrors.Error
		if errors.As(err, &re) {
			return nil, err
		}
		return nil, rerrors.EmbeddingError("embed chunks", err)
	}
	if len(vectors) != len(texts) {
		return nil, rerrors.EmbeddingError(
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	e.opts.Metrics.RecordEmbedded(len(texts))
	return vectors, nil
}
