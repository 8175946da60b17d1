package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

func newTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	ext, err := InitVectorExtension()
	require.NoError(t, err)
	s, err := Open(ext, MemoryPath, dims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func chunkAt(pos int, content string, vec ...float32) ChunkRecord {
	return ChunkRecord{Position: pos, Content: content, Embedding: vec}
}

func TestInitVectorExtension_Idempotent(t *testing.T) {
	a, err := InitVectorExtension()
	require.NoError(t, err)
	b, err := InitVectorExtension()
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.NotEmpty(t, a.Driver())
}

func TestOpen_RequiresExtension(t *testing.T) {
	_, err := Open(nil, MemoryPath, 3)

	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeStorageOpen, rerrors.GetCode(err))
}

func TestOpen_DimensionMismatchOnReopen(t *testing.T) {
	// Given: a store created for 3-dimensional vectors
	ext, err := InitVectorExtension()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "vectors.db")
	s, err := Open(ext, path, 3)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// When: reopening with another dimension
	_, err = Open(ext, path, 4)

	// Then: the schema mismatch is reported
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeSchemaMismatch, rerrors.GetCode(err))
	assert.True(t, rerrors.IsFatal(err))

	// And the original dimension still opens
	s, err = Open(ext, path, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Dimensions())
	require.NoError(t, s.Close())
}

func TestInsertDocument_ReplacesChunks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	mod := time.Unix(1_700_000_000, 0)

	// Given: a document indexed with two chunks
	require.NoError(t, s.InsertDocument(ctx, "docs/a.md", mod, []ChunkRecord{
		chunkAt(0, "one", 1, 0),
		chunkAt(1, "two", 0, 1),
	}))

	// When: it is re-indexed with one chunk
	later := mod.Add(time.Hour)
	require.NoError(t, s.InsertDocument(ctx, "docs/a.md", later, []ChunkRecord{
		chunkAt(0, "three", 1, 1),
	}))

	// Then: only the new chunk remains and the mtime is updated
	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, later.Unix(), docs["docs/a.md"].Unix())

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
	assert.Equal(t, 1, stats.Chunks)

	infos, err := s.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 1, infos[0].Chunks)
}

func TestInsertDocument_EmptyDocumentIsRecorded(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)

	require.NoError(t, s.InsertDocument(ctx, "empty.md", time.Unix(10, 0), nil))

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Contains(t, docs, "empty.md")
}

func TestInsertDocument_RejectsWrongDimensions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)

	err := s.InsertDocument(ctx, "a.md", time.Now(), []ChunkRecord{chunkAt(0, "x", 1, 2)})

	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeDimensionMismatch, rerrors.GetCode(err))
	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestSearchWithFilter_RanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)
	require.NoError(t, s.InsertDocument(ctx, "a.md", time.Now(), []ChunkRecord{
		chunkAt(0, "opposite", -1, 0, 0),
		chunkAt(1, "same", 2, 0, 0),
		chunkAt(2, "orthogonal", 0, 1, 0),
	}))

	results, err := s.SearchWithFilter(ctx, []float32{1, 0, 0}, 10, SearchFilter{})

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "same", results[0].ChunkContent)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "orthogonal", results[1].ChunkContent)
	assert.InDelta(t, 0.5, results[1].Similarity, 1e-6)
	assert.Equal(t, "opposite", results[2].ChunkContent)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-6)
	assert.Nil(t, results[0].Metadata)
	assert.Equal(t, 1, results[0].Position)
}

func TestSearchWithFilter_TopKLimits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.InsertDocument(ctx, "a.md", time.Now(), []ChunkRecord{
		chunkAt(0, "a", 1, 0),
		chunkAt(1, "b", 1, 1),
		chunkAt(2, "c", 0, 1),
	}))

	results, err := s.SearchWithFilter(ctx, []float32{1, 0}, 2, SearchFilter{})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchWithFilter_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)

	_, err := s.SearchWithFilter(ctx, []float32{1, 0, 0}, 0, SearchFilter{})
	require.Error(t, err)
	assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInput))

	_, err = s.SearchWithFilter(ctx, []float32{1, 0}, 5, SearchFilter{})
	require.Error(t, err)
	assert.Equal(t, rerrors.ErrCodeDimensionMismatch, rerrors.GetCode(err))
}

func TestSearchWithFilter_Directory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	for _, name := range []string{"docs/a.md", "docs/sub/b.md", "docsextra/c.md", `docs\d.md`, "other/e.md"} {
		require.NoError(t, s.InsertDocument(ctx, name, time.Now(), []ChunkRecord{chunkAt(0, name, 1, 0)}))
	}

	results, err := s.SearchWithFilter(ctx, []float32{1, 0}, 10, SearchFilter{Directory: "docs/"})

	require.NoError(t, err)
	var names []string
	for _, r := range results {
		names = append(names, r.DocumentName)
	}
	assert.ElementsMatch(t, []string{"docs/a.md", "docs/sub/b.md", `docs\d.md`}, names)
}

func TestSearchWithFilter_DirectoryIsLiteral(t *testing.T) {
	// Given: directories whose names differ only where LIKE has wildcards
	ctx := context.Background()
	s := newTestStore(t, 2)
	for _, name := range []string{"my_docs/a.md", "myXdocs/b.md", "100%/c.md", "100x/d.md", `my_docs\e.md`} {
		require.NoError(t, s.InsertDocument(ctx, name, time.Now(), []ChunkRecord{chunkAt(0, name, 1, 0)}))
	}

	tests := []struct {
		dir  string
		want []string
	}{
		{"my_docs", []string{"my_docs/a.md", `my_docs\e.md`}},
		{"100%", []string{"100%/c.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			// When: filtering by the directory
			results, err := s.SearchWithFilter(ctx, []float32{1, 0}, 10, SearchFilter{Directory: tt.dir})

			// Then: underscore and percent match only themselves
			require.NoError(t, err)
			var names []string
			for _, r := range results {
				names = append(names, r.DocumentName)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestSearchWithFilter_FilePattern(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	for _, name := range []string{"src/main.go", "main.go", "src/mainXtest.go", "src/main_test.go", "README.md"} {
		require.NoError(t, s.InsertDocument(ctx, name, time.Now(), []ChunkRecord{chunkAt(0, name, 1, 0)}))
	}

	tests := []struct {
		pattern string
		want    []string
	}{
		{"main.go", []string{"src/main.go", "main.go"}},
		{"main_test.go", []string{"src/main_test.go"}},
		{"*.go", []string{"src/main.go", "main.go", "src/mainXtest.go", "src/main_test.go"}},
		{"READM?.md", []string{"README.md"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			results, err := s.SearchWithFilter(ctx, []float32{1, 0}, 10, SearchFilter{FilePattern: tt.pattern})
			require.NoError(t, err)
			var names []string
			for _, r := range results {
				names = append(names, r.DocumentName)
			}
			assert.ElementsMatch(t, tt.want, names)
		})
	}
}

func TestSearchWithFilter_FiltersCombine(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	for _, name := range []string{"src/a.go", "src/a.md", "lib/a.go"} {
		require.NoError(t, s.InsertDocument(ctx, name, time.Now(), []ChunkRecord{chunkAt(0, name, 1, 0)}))
	}

	results, err := s.SearchWithFilter(ctx, []float32{1, 0}, 10, SearchFilter{Directory: "src", FilePattern: "*.go"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "src/a.go", results[0].DocumentName)
}

func TestGlobToLike(t *testing.T) {
	tests := []struct{ in, want string }{
		{"*.go", "%.go"},
		{"a?c", "a_c"},
		{"100%", `100\%`},
		{"snake_case", `snake\_case`},
		{`a\b`, `a\\b`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, globToLike(tt.in), tt.in)
	}
}

func TestCosineDistance(t *testing.T) {
	d, err := cosineDistance([]float32{1, 0}, []float32{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	d, err = cosineDistance([]float32{1, 2}, []float32{2, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-9)

	_, err = cosineDistance([]float32{1}, []float32{1, 2})
	assert.Error(t, err)

	_, err = blobCosineDistance([]byte{1, 2, 3}, encodeVector([]float32{1}))
	assert.Error(t, err)
}

func TestEncodeVector_LittleEndian(t *testing.T) {
	blob := encodeVector([]float32{1})
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f}, blob)

	v, err := decodeVector(blob)
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
}

func TestClose_Idempotent(t *testing.T) {
	ext, err := InitVectorExtension()
	require.NoError(t, err)
	s, err := Open(ext, MemoryPath, 2)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.ListDocuments(context.Background())
	assert.Error(t, err)
}
