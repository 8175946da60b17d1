package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

type edge struct {
	name string
	kind RelationType
}

func edges(rels []CodeRelation) []edge {
	out := make([]edge, 0, len(rels))
	for _, r := range rels {
		out = append(out, edge{r.TargetName, r.Type})
	}
	return out
}

func newTestRelationExtractor(t *testing.T) *RelationExtractor {
	t.Helper()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	return NewRelationExtractor(reg)
}

func TestRelationExtractor_Go(t *testing.T) {
	// Given: a Go function with builtins, qualified calls and repeated calls
	src := `package main

import (
	"fmt"
	"strings"
)

func run(items []string) {
	n := len(items)
	fmt.Println(strings.Join(items, ","), n)
	helper()
	helper()
}
`
	r := newTestRelationExtractor(t)

	// When: extracting relations
	rels, err := r.Extract(context.Background(), []byte(src), "go", "main.go", "run")

	// Then: builtins are dropped, repeats collapse, quotes are stripped
	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"Println", RelationCalls},
		{"Join", RelationCalls},
		{"helper", RelationCalls},
		{"fmt", RelationImports},
		{"strings", RelationImports},
	}, edges(rels))

	for _, rel := range rels {
		assert.Equal(t, "run", rel.SourceSymbol)
		assert.Equal(t, "main.go", rel.SourceFile)
		if rel.TargetName == "fmt" {
			assert.Equal(t, 4, rel.SourceLine)
		}
		if rel.TargetName == "helper" {
			assert.Equal(t, 11, rel.SourceLine)
		}
	}
}

func TestRelationExtractor_Python(t *testing.T) {
	src := `import os
from collections import OrderedDict

class Cache(OrderedDict):
    def get(self, key):
        print(key)
        return os.path.join(key)
`
	r := newTestRelationExtractor(t)

	rels, err := r.Extract(context.Background(), []byte(src), "python", "cache.py", "Cache")

	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"join", RelationCalls},
		{"os", RelationImports},
		{"collections", RelationImports},
		{"OrderedDict", RelationInherits},
	}, edges(rels))
}

func TestRelationExtractor_Rust(t *testing.T) {
	src := `use std::collections::HashMap;

fn build() {
    let m = HashMap::new();
    helper(&m);
    m.len();
}
`
	r := newTestRelationExtractor(t)

	rels, err := r.Extract(context.Background(), []byte(src), "rust", "lib.rs", "build")

	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"new", RelationCalls},
		{"helper", RelationCalls},
		{"std::collections::HashMap", RelationImports},
	}, edges(rels))
}

func TestRelationExtractor_JavaScript(t *testing.T) {
	src := `import { readFile } from "fs";

class Base {}

class Child extends Base {
  run() {
    helper();
    this.log();
  }
}
`
	r := newTestRelationExtractor(t)

	rels, err := r.Extract(context.Background(), []byte(src), "javascript", "child.js", "Child")

	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"helper", RelationCalls},
		{"log", RelationCalls},
		{"fs", RelationImports},
		{"Base", RelationInherits},
	}, edges(rels))
}

func TestRelationExtractor_TypeScriptImplements(t *testing.T) {
	src := `class Person implements Greeter {
  greet(): string {
    return format("hi");
  }
}
`
	r := newTestRelationExtractor(t)

	rels, err := r.Extract(context.Background(), []byte(src), "ts", "person.ts", "Person")

	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{
		{"format", RelationCalls},
		{"Greeter", RelationInherits},
	}, edges(rels))
}

func TestRelationExtractor_UnknownLanguage(t *testing.T) {
	// Given: a language with no registry entry
	r := newTestRelationExtractor(t)

	// When: extracting
	rels, err := r.Extract(context.Background(), []byte("anything"), "cobol", "x.cbl", "X")

	// Then: no relations and no error
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestRelationExtractor_EmptySymbol(t *testing.T) {
	r := newTestRelationExtractor(t)

	for _, symbol := range []string{"", "  \t"} {
		rels, err := r.Extract(context.Background(), []byte("package main"), "go", "main.go", symbol)

		assert.True(t, rerrors.IsCategory(err, rerrors.CategoryInput), "symbol %q", symbol)
		assert.Nil(t, rels)
	}
}

func TestRelationExtractor_ExtractChunks_MethodsKeepTheirOwnCalls(t *testing.T) {
	// Given: a TypeScript class whose methods call each other
	src := `import { Writer } from "./writer";

class Repo {
  save(x) {
    this.write(x);
  }

  write(x) {
    flush(x);
  }
}
`
	ctx := context.Background()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	chunks, err := NewExtractor(reg).ParseCode(ctx, []byte(src), "typescript")
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	// When: extracting relations for the whole file at once
	rels, err := NewRelationExtractor(reg).ExtractChunks(ctx, []byte(src), "typescript", "repo.ts", chunks)

	// Then: each method calls only what its body calls, never itself
	require.NoError(t, err)
	require.Len(t, rels, 3)
	byName := make(map[string][]edge)
	for i, c := range chunks {
		byName[c.SymbolName] = edges(rels[i])
	}
	assert.ElementsMatch(t, []edge{{"write", RelationCalls}, {"./writer", RelationImports}}, byName["save"])
	assert.ElementsMatch(t, []edge{{"flush", RelationCalls}, {"./writer", RelationImports}}, byName["write"])

	// And: the class holds every call in its body
	assert.ElementsMatch(t, []edge{
		{"write", RelationCalls},
		{"flush", RelationCalls},
		{"./writer", RelationImports},
	}, byName["Repo"])

	// And: lines are file lines
	for i, c := range chunks {
		if c.SymbolName != "save" {
			continue
		}
		for _, rel := range rels[i] {
			if rel.Type == RelationCalls {
				assert.Equal(t, 5, rel.SourceLine)
			}
		}
	}
}

func TestRelationExtractor_ExtractChunks_ImportsReachEverySymbol(t *testing.T) {
	// Given: a Go file whose imports sit outside every symbol
	src := `package main

import "fmt"

func a() { fmt.Println() }

func b() {}
`
	ctx := context.Background()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	chunks, err := NewExtractor(reg).ParseCode(ctx, []byte(src), "go")
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// When: extracting per chunk
	rels, err := NewRelationExtractor(reg).ExtractChunks(ctx, []byte(src), "go", "main.go", chunks)

	// Then: both symbols carry the import, only a carries the call
	require.NoError(t, err)
	assert.ElementsMatch(t, []edge{{"Println", RelationCalls}, {"fmt", RelationImports}}, edges(rels[0]))
	assert.Equal(t, []edge{{"fmt", RelationImports}}, edges(rels[1]))
	assert.Equal(t, 3, rels[1][0].SourceLine)
	assert.Equal(t, "b", rels[1][0].SourceSymbol)
}

func TestParseRelationType(t *testing.T) {
	rt, ok := ParseRelationType("inherits")
	assert.True(t, ok)
	assert.Equal(t, RelationInherits, rt)

	_, ok = ParseRelationType("owns")
	assert.False(t, ok)
}
