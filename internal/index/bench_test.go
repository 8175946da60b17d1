package index

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Michaol/RustRAG/internal/embed"
	"github.com/Michaol/RustRAG/internal/store"
)

var benchNouns = []string{"cache", "store", "parser", "router", "index", "queue", "worker", "session"}

const benchGoTemplate = `package %[1]s

import "fmt"

// %[2]s holds %[1]s state.
type %[2]s struct {
	name string
}

// New%[2]s creates a %[2]s.
func New%[2]s(name string) *%[2]s {
	return &%[2]s{name: name}
}

// Run processes input.
func (s *%[2]s) Run(input string) string {
	return fmt.Sprintf("%%s: %%s", s.name, helper%[3]d(input))
}

func helper%[3]d(s string) string {
	return s
}
`

// generateCorpus writes n files, three Go sources for every markdown
// note, with deterministic names and content.
func generateCorpus(tb testing.TB, root string, n int) {
	tb.Helper()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		noun := benchNouns[rng.Intn(len(benchNouns))]
		dir := filepath.Join(root, fmt.Sprintf("pkg%02d", i%16))
		require.NoError(tb, os.MkdirAll(dir, 0o755))

		var name, content string
		if i%4 == 3 {
			name = fmt.Sprintf("notes_%d.md", i)
			content = fmt.Sprintf("# %s %d\n\n%s\n", noun, i,
				strings.Repeat("The "+noun+" keeps track of pending work. ", 20+rng.Intn(40)))
		} else {
			typ := strings.ToUpper(noun[:1]) + noun[1:]
			name = fmt.Sprintf("%s_%d.go", noun, i)
			content = fmt.Sprintf(benchGoTemplate, noun, typ, i)
		}
		require.NoError(tb, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func newBenchEngine(b *testing.B) *Engine {
	b.Helper()
	ext, err := store.InitVectorExtension()
	require.NoError(b, err)
	st, err := store.Open(ext, store.MemoryPath, testDims)
	require.NoError(b, err)
	b.Cleanup(func() { _ = st.Close() })
	e, err := NewEngine(st, embed.NewMockEmbedder(testDims), nil, Options{})
	require.NoError(b, err)
	return e
}

func BenchmarkIndexDirectory(b *testing.B) {
	root := b.TempDir()
	generateCorpus(b, root, 200)
	ctx := context.Background()

	b.Run("full", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			e := newBenchEngine(b)
			_, err := e.IndexDirectory(ctx, root, false)
			require.NoError(b, err)
		}
	})

	b.Run("unchanged", func(b *testing.B) {
		e := newBenchEngine(b)
		_, err := e.IndexDirectory(ctx, root, false)
		require.NoError(b, err)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			res, err := e.IndexDirectory(ctx, root, false)
			require.NoError(b, err)
			require.Zero(b, res.Indexed)
		}
	})
}
