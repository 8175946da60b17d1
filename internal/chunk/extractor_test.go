package chunk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	return NewExtractor(reg)
}

func byName(chunks []CodeChunk, name string, kind SymbolType) (CodeChunk, bool) {
	for _, c := range chunks {
		if c.SymbolName == name && c.SymbolType == kind {
			return c, true
		}
	}
	return CodeChunk{}, false
}

func assertContiguous(t *testing.T, chunks []CodeChunk) {
	t.Helper()
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
	}
}

func TestExtractor_Go(t *testing.T) {
	// Given: a Go file with a struct, an interface, a function and a method
	src := `package main

import "fmt"

type Server struct {
	Name string
}

type Handler interface {
	Serve()
}

func NewServer(name string) *Server {
	return &Server{Name: name}
}

func (s *Server) Start() error {
	fmt.Println("start")
	return nil
}
`
	e := newTestExtractor(t)

	// When: extracting symbols
	chunks, err := e.ParseCode(context.Background(), []byte(src), "go")

	// Then: every symbol is found with its kind, span and signature
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assertContiguous(t, chunks)

	server, ok := byName(chunks, "Server", SymbolStruct)
	require.True(t, ok)
	assert.Equal(t, 5, server.StartLine)
	assert.Equal(t, 7, server.EndLine)
	assert.Equal(t, "type Server struct", server.Signature)
	assert.Equal(t, "go", server.Language)

	handler, ok := byName(chunks, "Handler", SymbolInterface)
	require.True(t, ok)
	assert.Equal(t, "type Handler interface", handler.Signature)

	fn, ok := byName(chunks, "NewServer", SymbolFunction)
	require.True(t, ok)
	assert.Equal(t, "func NewServer(name string) *Server", fn.Signature)
	assert.Equal(t, 13, fn.StartLine)
	assert.Equal(t, 15, fn.EndLine)
	assert.Contains(t, fn.Content, "return &Server{Name: name}")
	assert.Empty(t, fn.ParentSymbol)

	method, ok := byName(chunks, "Start", SymbolMethod)
	require.True(t, ok)
	assert.Equal(t, "func (s *Server) Start() error", method.Signature)
}

func TestExtractor_Python(t *testing.T) {
	// Given: two classes with methods of the same name
	src := `class Animal:
    def speak(self):
        return "..."

class Dog(Animal):
    def speak(self):
        return "woof"

def main():
    d = Dog()
    print(d.speak())
`
	e := newTestExtractor(t)

	// When: extracting by extension
	chunks, err := e.ParseCode(context.Background(), []byte(src), "py")

	// Then: both methods are kept and attributed to their class
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	assertContiguous(t, chunks)

	dog, ok := byName(chunks, "Dog", SymbolClass)
	require.True(t, ok)
	assert.Equal(t, "class Dog(Animal)", dog.Signature)

	parents := map[string]bool{}
	for _, c := range chunks {
		if c.SymbolName == "speak" {
			assert.Equal(t, "def speak(self)", c.Signature)
			parents[c.ParentSymbol] = true
		}
	}
	assert.Equal(t, map[string]bool{"Animal": true, "Dog": true}, parents)

	main, ok := byName(chunks, "main", SymbolFunction)
	require.True(t, ok)
	assert.Empty(t, main.ParentSymbol)
	assert.Equal(t, "python", main.Language)
}

func TestExtractor_Rust_ImplBlockIsContainer(t *testing.T) {
	// Given: a struct, an impl block with one method, and a free function
	src := `pub struct Server {
    port: u16,
}

impl Server {
    pub fn start(&self) -> bool {
        true
    }
}

fn main() {
    let s = Server { port: 8080 };
    s.start();
}
`
	e := newTestExtractor(t)

	// When: extracting symbols
	chunks, err := e.ParseCode(context.Background(), []byte(src), "rust")

	// Then: exactly three chunks, the method parented to the impl type
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assertContiguous(t, chunks)

	server, ok := byName(chunks, "Server", SymbolStruct)
	require.True(t, ok)
	assert.Equal(t, "pub struct Server", server.Signature)

	start, ok := byName(chunks, "start", SymbolFunction)
	require.True(t, ok)
	assert.Equal(t, "Server", start.ParentSymbol)
	assert.Equal(t, "pub fn start(&self) -> bool", start.Signature)
	assert.Equal(t, 6, start.StartLine)
	assert.Equal(t, 8, start.EndLine)

	main, ok := byName(chunks, "main", SymbolFunction)
	require.True(t, ok)
	assert.Empty(t, main.ParentSymbol)
}

func TestExtractor_Rust_TraitImplIsOneChunk(t *testing.T) {
	// Given: a struct with an inherent impl and a trait impl
	src := `struct Point {
    x: i32,
}

impl Point {
    fn new() -> Self {
        Point { x: 0 }
    }
}

impl fmt::Display for Point {
    fn fmt(&self, f: &mut fmt::Formatter) -> fmt::Result {
        write!(f, "{}", self.x)
    }
}
`
	e := newTestExtractor(t)

	// When: extracting symbols
	chunks, err := e.ParseCode(context.Background(), []byte(src), "rust")

	// Then: the trait impl adds exactly one chunk, the inherent impl none
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assertContiguous(t, chunks)

	var impls []CodeChunk
	for _, c := range chunks {
		if c.SymbolType == SymbolStruct && c.SymbolName == "Point" {
			impls = append(impls, c)
		}
	}
	require.Len(t, impls, 2)
	assert.Equal(t, "struct Point", impls[0].Signature)
	assert.Equal(t, "impl fmt::Display for Point", impls[1].Signature)
	assert.Equal(t, 11, impls[1].StartLine)
	assert.Empty(t, impls[1].ParentSymbol)

	// And: methods in both impls are parented to the type
	for _, name := range []string{"new", "fmt"} {
		fn, ok := byName(chunks, name, SymbolFunction)
		require.True(t, ok, name)
		assert.Equal(t, "Point", fn.ParentSymbol)
	}
}

func TestExtractor_Go_GroupedTypesKeepFirst(t *testing.T) {
	// Given: two structs in one grouped declaration
	src := "package p\n\ntype (\n\tA struct{}\n\tB struct{}\n)\n"
	e := newTestExtractor(t)

	// When: extracting symbols
	chunks, err := e.ParseCode(context.Background(), []byte(src), "go")

	// Then: both specs share the declaration span, so one chunk remains
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "A", chunks[0].SymbolName)
	assert.Equal(t, SymbolStruct, chunks[0].SymbolType)
	assert.Contains(t, chunks[0].Content, "B struct{}")
}

func TestExtractor_TypeScript(t *testing.T) {
	// Given: an interface, a class with a method, an arrow function and a function
	src := `interface Greeter {
  greet(): string;
}

class Person implements Greeter {
  greet(): string {
    return "hi";
  }
}

const add = (a: number, b: number): number => a + b;

function main() {
  return add(1, 2);
}
`
	e := newTestExtractor(t)

	// When: extracting symbols
	chunks, err := e.ParseCode(context.Background(), []byte(src), "typescript")

	// Then: five symbols with heuristic signatures
	require.NoError(t, err)
	require.Len(t, chunks, 5)
	assertContiguous(t, chunks)

	iface, ok := byName(chunks, "Greeter", SymbolInterface)
	require.True(t, ok)
	assert.Equal(t, "interface Greeter", iface.Signature)

	person, ok := byName(chunks, "Person", SymbolClass)
	require.True(t, ok)
	assert.Equal(t, "class Person implements Greeter", person.Signature)

	greet, ok := byName(chunks, "greet", SymbolMethod)
	require.True(t, ok)
	assert.Equal(t, "Person", greet.ParentSymbol)
	assert.Equal(t, "greet(): string", greet.Signature)

	add, ok := byName(chunks, "add", SymbolFunction)
	require.True(t, ok)
	assert.Equal(t, "const add = (a: number, b: number): number =>", add.Signature)

	main, ok := byName(chunks, "main", SymbolFunction)
	require.True(t, ok)
	assert.Equal(t, "function main()", main.Signature)
}

func TestExtractor_JavaScript(t *testing.T) {
	src := `class Base {}

class Child extends Base {
  run() {
    return 1;
  }
}

function helper() {
  return 2;
}
`
	e := newTestExtractor(t)

	chunks, err := e.ParseCode(context.Background(), []byte(src), "javascript")

	require.NoError(t, err)
	require.Len(t, chunks, 4)

	run, ok := byName(chunks, "run", SymbolMethod)
	require.True(t, ok)
	assert.Equal(t, "Child", run.ParentSymbol)

	_, ok = byName(chunks, "helper", SymbolFunction)
	assert.True(t, ok)
}

func TestExtractor_UnsupportedLanguage(t *testing.T) {
	e := newTestExtractor(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"unknown name", func() error {
			_, err := e.ParseCode(context.Background(), []byte("x"), "cobol")
			return err
		}},
		{"unknown extension", func() error {
			_, err := e.ParseFile(context.Background(), "notes.txt")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnsupportedLanguage))
			assert.Equal(t, rerrors.CategoryParse, rerrors.GetCategory(err))
		})
	}
}

func TestExtractor_ParseFile(t *testing.T) {
	// Given: a Go file on disk
	dir := t.TempDir()
	path := filepath.Join(dir, "util.go")
	require.NoError(t, os.WriteFile(path, []byte("package util\n\nfunc Add(a, b int) int { return a + b }\n"), 0o644))
	e := newTestExtractor(t)

	// When: parsing by path
	chunks, err := e.ParseFile(context.Background(), path)

	// Then: the function is extracted with a one-line span
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Add", chunks[0].SymbolName)
	assert.Equal(t, 3, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, "func Add(a, b int) int", chunks[0].Signature)
}

func TestExtractor_ParseFile_MissingFile(t *testing.T) {
	e := newTestExtractor(t)

	_, err := e.ParseFile(context.Background(), filepath.Join(t.TempDir(), "gone.go"))

	require.Error(t, err)
	assert.Equal(t, rerrors.CategoryIO, rerrors.GetCategory(err))
}

func TestExtractor_EmptySource(t *testing.T) {
	e := newTestExtractor(t)

	chunks, err := e.ParseCode(context.Background(), nil, "go")

	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestExtractor_DeduplicatesBySpanAndKind(t *testing.T) {
	// Given: a language whose query matches the same node twice as a
	// function and once as a method
	spec := DefaultLanguages()[0]
	spec.SymbolQuery = `
(function_declaration name: (identifier) @name) @function
(function_declaration name: (identifier) @name) @function
(function_declaration) @method
`
	reg, err := NewRegistry([]LanguageSpec{spec})
	require.NoError(t, err)
	defer reg.Close()

	// When: extracting a single function
	chunks, err := NewExtractor(reg).ParseCode(context.Background(), []byte("package p\n\nfunc F() {}\n"), "go")

	// Then: one chunk per distinct kind survives
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, SymbolFunction, chunks[0].SymbolType)
	assert.Equal(t, SymbolMethod, chunks[1].SymbolType)
	assertContiguous(t, chunks)
}

func TestCodeChunk_EmbeddingText(t *testing.T) {
	c := CodeChunk{Language: "rust", SymbolName: "main", Content: "fn main() {}"}
	assert.Equal(t, "rust main: fn main() {}", c.EmbeddingText())
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		language string
		want     string
	}{
		{"go brace", "func A(\n\tx int,\n) {\n}", "go", "func A( x int, )"},
		{"rust no brace", "struct Unit;\n", "rust", "struct Unit;"},
		{"python colon", "def f(a):\n    pass", "python", "def f(a)"},
		{"python multiline", "def f(\n    a,\n):\n    pass", "python", "def f( a, )"},
		{"ts arrow", "const f = (x) => {\n  return x;\n}", "typescript", "const f = (x) =>"},
		{"js brace", "function g() {\n}", "javascript", "function g()"},
		{"unknown language", "proc x {\n}", "tcl", "proc x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Signature(tt.content, tt.language))
		})
	}
}
