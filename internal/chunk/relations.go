package chunk

import (
	"context"
	"strings"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// builtinCalls are call targets too common to be useful edges.
var builtinCalls = map[string]bool{
	"len": true, "make": true, "append": true, "delete": true,
	"print": true, "println": true, "panic": true, "recover": true,
	"range": true, "return": true, "break": true, "continue": true,
}

// RelationExtractor mines call, import and inheritance edges from source.
// It is safe for concurrent use.
type RelationExtractor struct {
	registry *Registry
}

// NewRelationExtractor creates a relation extractor over registry.
func NewRelationExtractor(registry *Registry) *RelationExtractor {
	return &RelationExtractor{registry: registry}
}

type relationKey struct {
	name string
	kind RelationType
}

// relationHit is one relation capture in a parsed file.
type relationHit struct {
	name       string
	kind       RelationType
	line       int
	start, end int
}

// Extract returns the deduplicated relations found anywhere in source,
// attributed to symbol in file. An unknown language yields no relations
// and no error.
func (r *RelationExtractor) Extract(ctx context.Context, source []byte, language, file, symbol string) ([]CodeRelation, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, rerrors.InputError("relation source symbol must not be empty", nil)
	}
	whole := []CodeChunk{{SymbolName: symbol, StartByte: 0, EndByte: len(source)}}
	rels, err := r.ExtractChunks(ctx, source, language, file, whole)
	if err != nil {
		return nil, err
	}
	return rels[0], nil
}

// ExtractChunks parses a whole file once and returns the relations of each
// chunk, indexed like chunks. Calls and inheritance belong to every chunk
// whose byte span contains them. Imports are file scoped and belong to
// every chunk. Chunks without a symbol name get no relations.
func (r *RelationExtractor) ExtractChunks(ctx context.Context, source []byte, language, file string, chunks []CodeChunk) ([][]CodeRelation, error) {
	out := make([][]CodeRelation, len(chunks))
	lang, ok := r.registry.Lookup(language)
	if !ok || len(lang.relations) == 0 || len(chunks) == 0 {
		return out, nil
	}

	hits, err := scanRelations(ctx, lang, source)
	if err != nil {
		return nil, err
	}

	for i, c := range chunks {
		if strings.TrimSpace(c.SymbolName) == "" {
			continue
		}
		seen := make(map[relationKey]bool)
		for _, h := range hits {
			if h.kind != RelationImports && (h.start < c.StartByte || h.end > c.EndByte) {
				continue
			}
			key := relationKey{name: h.name, kind: h.kind}
			if seen[key] {
				continue
			}
			seen[key] = true

			out[i] = append(out[i], CodeRelation{
				SourceSymbol: c.SymbolName,
				TargetName:   h.name,
				Type:         h.kind,
				SourceFile:   file,
				SourceLine:   h.line,
			})
		}
	}
	return out, nil
}

// scanRelations runs every relation query over the file tree.
func scanRelations(ctx context.Context, lang *Language, source []byte) ([]relationHit, error) {
	tree, err := parse(ctx, lang, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var hits []relationHit
	for _, q := range lang.relations {
		eachMatch(q, tree.RootNode(), func(caps []capture) {
			for _, c := range caps {
				kind, ok := relationCaptures[c.name]
				if !ok {
					continue
				}
				name := strings.Trim(strings.TrimSpace(c.node.Content(source)), `"'`)
				if name == "" {
					continue
				}
				if kind == RelationCalls && builtinCalls[name] {
					continue
				}
				hits = append(hits, relationHit{
					name:  name,
					kind:  kind,
					line:  lineOf(c.node.StartPoint()),
					start: int(c.node.StartByte()),
					end:   int(c.node.EndByte()),
				})
			}
		})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return hits, nil
}
