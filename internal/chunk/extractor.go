package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// ErrUnsupportedLanguage is returned for files and language names the
// registry does not know. Match with errors.Is.
var ErrUnsupportedLanguage = rerrors.New(rerrors.ErrCodeUnsupportedLanguage, "unsupported language", nil)

func unsupported(what string) error {
	return rerrors.New(rerrors.ErrCodeUnsupportedLanguage, "unsupported language: "+what, nil)
}

// Extractor splits source files into symbol chunks.
// It is safe for concurrent use.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor over registry.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Registry returns the language registry the extractor resolves against.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Supports reports whether path has a registered extension.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.registry.GetByPath(path)
	return ok
}

// ParseFile reads path and extracts its symbols. The language is chosen by
// file extension.
func (e *Extractor) ParseFile(ctx context.Context, path string) ([]CodeChunk, error) {
	if !e.Supports(path) {
		return nil, unsupported(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.IOError(fmt.Sprintf("read %s", path), err)
	}
	return e.ParseSource(ctx, path, source)
}

// ParseSource extracts symbols from source already read from path. The
// language is chosen by the extension of path.
func (e *Extractor) ParseSource(ctx context.Context, path string, source []byte) ([]CodeChunk, error) {
	lang, ok := e.registry.GetByPath(path)
	if !ok {
		return nil, unsupported(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	return e.extract(ctx, lang, source)
}

// ParseCode extracts symbols from source. language may be a language name
// ("rust") or an extension ("rs").
func (e *Extractor) ParseCode(ctx context.Context, source []byte, language string) ([]CodeChunk, error) {
	lang, ok := e.registry.Lookup(language)
	if !ok {
		return nil, unsupported(language)
	}
	return e.extract(ctx, lang, source)
}

type spanKey struct {
	start, end uint32
	kind       SymbolType
}

func (e *Extractor) extract(ctx context.Context, lang *Language, source []byte) ([]CodeChunk, error) {
	tree, err := parse(ctx, lang, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var chunks []CodeChunk
	seen := make(map[spanKey]bool)

	eachMatch(lang.symbols, tree.RootNode(), func(caps []capture) {
		var anchor *sitter.Node
		var kind SymbolType
		var name string
		for _, c := range caps {
			if c.name == "name" {
				name = c.node.Content(source)
				continue
			}
			if st, ok := symbolCaptures[c.name]; ok {
				anchor, kind = c.node, st
			}
		}
		if anchor == nil {
			return
		}

		key := spanKey{start: anchor.StartByte(), end: anchor.EndByte(), kind: kind}
		if seen[key] {
			return
		}
		seen[key] = true

		content := anchor.Content(source)
		chunks = append(chunks, CodeChunk{
			Content:      content,
			Position:     len(chunks),
			SymbolName:   name,
			SymbolType:   kind,
			Language:     lang.Name(),
			StartLine:    lineOf(anchor.StartPoint()),
			EndLine:      lineOf(anchor.EndPoint()),
			ParentSymbol: parentSymbol(anchor, lang, source),
			Signature:    Signature(content, lang.Name()),
			StartByte:    int(anchor.StartByte()),
			EndByte:      int(anchor.EndByte()),
		})
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

// parentSymbol walks up from n to the nearest container and returns its
// name, or "" when n is top level.
func parentSymbol(n *sitter.Node, lang *Language, source []byte) string {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if !lang.isContainer(p.Type()) {
			continue
		}
		if name := containerName(p, source); name != "" {
			return name
		}
	}
	return ""
}

func containerName(n *sitter.Node, source []byte) string {
	switch n.Type() {
	case "impl_item":
		if t := n.ChildByFieldName("type"); t != nil {
			return t.Content(source)
		}
		return ""
	case "type_declaration":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			spec := n.NamedChild(i)
			if spec.Type() != "type_spec" {
				continue
			}
			if name := spec.ChildByFieldName("name"); name != nil {
				return name.Content(source)
			}
		}
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		kind := child.Type()
		if strings.Contains(kind, "identifier") || kind == "name" {
			return child.Content(source)
		}
	}
	return ""
}

// Signature derives a one-line declaration from a symbol's source. The
// result is a best-effort heuristic, not a parse.
func Signature(content, language string) string {
	content = strings.TrimSpace(content)
	firstLine, _, _ := strings.Cut(content, "\n")

	switch language {
	case "python":
		firstLine = strings.TrimSpace(firstLine)
		if s, ok := strings.CutSuffix(firstLine, ":"); ok {
			return s
		}
		if idx := strings.Index(content, "):"); idx >= 0 {
			return collapseSpace(content[:idx+1])
		}
		return firstLine
	case "typescript", "javascript":
		if idx := strings.Index(content, "=>"); idx >= 0 {
			return collapseSpace(content[:idx+2])
		}
	}

	if idx := strings.IndexByte(content, '{'); idx >= 0 {
		return collapseSpace(content[:idx])
	}
	return firstLine
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
