package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Michaol/RustRAG/internal/embed"
	rerrors "github.com/Michaol/RustRAG/internal/errors"
	"github.com/Michaol/RustRAG/internal/store"
	"github.com/Michaol/RustRAG/internal/telemetry"
)

const testDims = 16

const goSource = `package main

func helper() int {
	return 1
}

func main() {
	helper()
}
`

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	ext, err := store.InitVectorExtension()
	require.NoError(t, err)
	st, err := store.Open(ext, store.MemoryPath, testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *store.Store) {
	t.Helper()
	st := newTestStore(t)
	e, err := NewEngine(st, embed.NewMockEmbedder(testDims), nil, opts)
	require.NoError(t, err)
	return e, st
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// touch moves a file's modification time forward by whole seconds.
func touch(t *testing.T, path string, by time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	mt := info.ModTime().Add(by)
	require.NoError(t, os.Chtimes(path, mt, mt))
}

// failingEmbedder fails for any batch containing marker.
type failingEmbedder struct {
	*embed.MockEmbedder
	marker string
}

func (f failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if strings.Contains(t, f.marker) {
			return nil, errors.New("backend unavailable")
		}
	}
	return f.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestNewEngine_Validation(t *testing.T) {
	st := newTestStore(t)

	_, err := NewEngine(nil, embed.NewMockEmbedder(testDims), nil, Options{})
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInput))

	_, err = NewEngine(st, nil, nil, Options{})
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInput))

	_, err = NewEngine(st, embed.NewMockEmbedder(testDims+1), nil, Options{})
	assert.Equal(t, rerrors.ErrCodeDimensionMismatch, rerrors.GetCode(err))
}

func TestIndexDirectory_Classification(t *testing.T) {
	// Given: a tree with one markdown file, one Go file and an ineligible file
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"docs/guide.md": "# Guide\n\nHello there.",
		"main.go":       goSource,
		"notes.txt":     "ignored",
	})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	// When: syncing for the first time
	res, err := e.IndexDirectory(ctx, root, false)

	// Then: both eligible files are added
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.Indexed)

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Contains(t, docs, filepath.ToSlash(filepath.Join(root, "docs", "guide.md")))
	assert.Contains(t, docs, filepath.ToSlash(filepath.Join(root, "main.go")))

	// When: syncing again without changes
	res, err = e.IndexDirectory(ctx, root, false)

	// Then: everything is skipped
	require.NoError(t, err)
	assert.Equal(t, 0, res.Added)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 0, res.Indexed)

	// When: one file's modification second changes
	touch(t, filepath.Join(root, "main.go"), 2*time.Second)
	res, err = e.IndexDirectory(ctx, root, false)

	// Then: only that file is updated
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Indexed)

	// When: forcing
	res, err = e.IndexDirectory(ctx, root, true)

	// Then: every known file is updated
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 0, res.Skipped)
}

func TestIndexDirectory_StoresCodeMetadataAndRelations(t *testing.T) {
	// Given: a Go file where main calls helper
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.go": goSource})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	// When: indexed
	_, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	// Then: both symbols are stored with metadata
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CodeChunks)

	key := DocumentKey(filepath.Join(root, "main.go"))
	id, ok, err := st.ChunkIDBySymbol(ctx, key, "main")
	require.NoError(t, err)
	require.True(t, ok)
	meta, err := st.CodeMetadata(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "function", meta.SymbolType)
	assert.Equal(t, "go", meta.Language)
	assert.Equal(t, 7, meta.StartLine)

	// And the call edge carries the file line and resolves in-file
	rels, err := st.FindSymbolRelations(ctx, "helper", store.DirectionIncoming, "calls")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "main", rels[0].SourceName)
	assert.Equal(t, key, rels[0].SourceFile)
	assert.Equal(t, 8, rels[0].SourceLine)
	require.NotNil(t, rels[0].TargetChunkID)
	assert.Equal(t, store.ConfidenceSameFile, rels[0].Confidence)
}

func TestIndexDirectory_StoresImportsAndMethodCalls(t *testing.T) {
	// Given: Go, Python and TypeScript files with top-level imports
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.go": "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n",
		"load.py": "import os\n\ndef load():\n    return os.getcwd()\n",
		"repo.ts": `import { a } from "./a";

class Repo {
  save(x) {
    this.write(x);
  }

  write(x) {
    a(x);
  }
}
`,
	})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	// When: indexed
	_, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	// Then: import edges are stored with their file line
	rels, err := st.FindSymbolRelations(ctx, "fmt", store.DirectionIncoming, "imports")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "main", rels[0].SourceName)
	assert.Equal(t, 3, rels[0].SourceLine)

	rels, err = st.FindSymbolRelations(ctx, "load", store.DirectionOutgoing, "imports")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "os", rels[0].TargetName)

	// And: every TypeScript symbol carries the file import
	rels, err = st.FindSymbolRelations(ctx, "./a", store.DirectionIncoming, "imports")
	require.NoError(t, err)
	var importers []string
	for _, r := range rels {
		importers = append(importers, r.SourceName)
	}
	assert.ElementsMatch(t, []string{"Repo", "save", "write"}, importers)

	// And: a method declaration is not a call to itself
	rels, err = st.FindSymbolRelations(ctx, "save", store.DirectionOutgoing, "calls")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "write", rels[0].TargetName)
	assert.Equal(t, 5, rels[0].SourceLine)

	rels, err = st.FindSymbolRelations(ctx, "save", store.DirectionIncoming, "calls")
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestIndexDirectory_MarkdownChunking(t *testing.T) {
	root := t.TempDir()
	para := strings.Repeat("word ", 20)
	writeFiles(t, root, map[string]string{"long.md": para + "\n\n" + para + "\n\n" + para})
	e, st := newTestEngine(t, Options{ChunkSize: 120})

	_, err := e.IndexDirectory(context.Background(), root, false)
	require.NoError(t, err)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 0, stats.CodeChunks)
}

func TestIndexDirectory_EmptyFileRecorded(t *testing.T) {
	// Given: an empty markdown file
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"empty.md": "  \n"})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	// When: synced twice
	first, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)
	second, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	// Then: it is recorded without chunks and skipped the second time
	assert.Equal(t, 1, first.Added)
	assert.Equal(t, 1, second.Skipped)
	docs, err := st.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 0, docs[0].Chunks)
}

func TestIndexDirectory_FailureRollsBackCounter(t *testing.T) {
	// Given: an embedder that fails for one file's content
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"good.md": "fine content",
		"bad.md":  "FAIL here",
	})
	st := newTestStore(t)
	metrics := telemetry.New()
	emb := failingEmbedder{MockEmbedder: embed.NewMockEmbedder(testDims), marker: "FAIL"}
	e, err := NewEngine(st, emb, nil, Options{Metrics: metrics})
	require.NoError(t, err)
	ctx := context.Background()

	// When: syncing
	res, err := e.IndexDirectory(ctx, root, false)

	// Then: the walk completes and the failure is not counted as added
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Indexed)

	// And the failed file is retried as new on the next run
	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	res, err = e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Added)
}

func TestIndexDirectory_ExcludeAndGitignore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".gitignore":       "build/\n",
		"build/gen.go":     goSource,
		"vendor/lib.go":    goSource,
		"src/main.go":      goSource,
		"src/readme.md":    "hi",
		".git/config.md":   "x",
		"node/index.ts":    "function a() {}",
		"node/skip.min.ts": "x",
	})
	e, st := newTestEngine(t, Options{Exclude: []string{"vendor/", "*.min.ts"}})

	res, err := e.IndexDirectory(context.Background(), root, false)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Added)
	docs, err := st.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, docs, DocumentKey(filepath.Join(root, "build", "gen.go")))
	assert.NotContains(t, docs, DocumentKey(filepath.Join(root, "vendor", "lib.go")))
}

func TestIndexDirectory_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "x", "b.md": "y"})
	e, _ := newTestEngine(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.IndexDirectory(ctx, root, false)

	assert.Error(t, err)
}

func TestIndexFile_AndRemoveFile(t *testing.T) {
	// Given: a single file outside any sync
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"one.md": "alpha\n\nbeta"})
	path := filepath.Join(root, "one.md")
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()

	// When: indexed directly
	require.NoError(t, e.IndexFile(ctx, path))

	// Then: it is stored under its cleaned key
	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Contains(t, docs, DocumentKey(path))

	// When: removed twice
	removed, err := e.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = e.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestIndexFile_Errors(t *testing.T) {
	e, _ := newTestEngine(t, Options{})
	ctx := context.Background()

	err := e.IndexFile(ctx, filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = e.IndexFile(ctx, t.TempDir())
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInput))
}

func TestRemoveTree(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"docs/a.md":     "a",
		"docs/sub/b.md": "b",
		"docsx/c.md":    "c",
	})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()
	_, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	n, err := e.RemoveTree(ctx, filepath.Join(root, "docs"))

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestPrune_DropsIgnoredAndDeleted(t *testing.T) {
	// Given: an indexed tree
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"keep.md": "k", "gone.md": "g", "gen/out.md": "o"})
	e, st := newTestEngine(t, Options{})
	ctx := context.Background()
	_, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	// When: one file is deleted and a directory becomes ignored
	require.NoError(t, os.Remove(filepath.Join(root, "gone.md")))
	writeFiles(t, root, map[string]string{".gitignore": "gen/\n"})
	e.Scanner().InvalidateGitignoreCache()
	n, err := e.Prune(ctx, root)

	// Then: only the live, visible file remains
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DocumentKey(filepath.Join(root, "keep.md"))}, keys(docs))
}

func keys(m map[string]time.Time) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestIndexDirectory_ReportsProgress(t *testing.T) {
	// Given: two files, one already indexed
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.md": "# A\n\nalpha", "b.go": goSource})
	var seen []Progress
	e, _ := newTestEngine(t, Options{Progress: func(p Progress) { seen = append(seen, p) }})
	ctx := context.Background()
	require.NoError(t, e.IndexFile(ctx, filepath.Join(root, "a.md")))

	// When: syncing the directory
	_, err := e.IndexDirectory(ctx, root, false)
	require.NoError(t, err)

	// Then: every file is reported once, against the scan total
	require.Len(t, seen, 2)
	outcomes := map[string]string{}
	for i, p := range seen {
		assert.Equal(t, i+1, p.Done)
		assert.Equal(t, 2, p.Total)
		outcomes[filepath.Base(p.Path)] = p.Outcome
	}
	assert.Equal(t, telemetry.OutcomeSkipped, outcomes["a.md"])
	assert.Equal(t, telemetry.OutcomeAdded, outcomes["b.go"])
}
