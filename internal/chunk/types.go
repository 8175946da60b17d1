// Package chunk turns source files and prose into indexable units.
//
// Code is parsed with tree-sitter and split along symbol boundaries
// (functions, methods, classes, structs, interfaces). Prose is split into
// bounded paragraphs. A relation pass mines call, import and inheritance
// edges from each file and attributes them to
// the symbols that contain them.
package chunk

// SymbolType is the kind of a code symbol.
type SymbolType string

const (
	SymbolFunction  SymbolType = "function"
	SymbolMethod    SymbolType = "method"
	SymbolClass     SymbolType = "class"
	SymbolStruct    SymbolType = "struct"
	SymbolInterface SymbolType = "interface"
)

// symbolCaptures maps query capture names to the symbol type they anchor.
var symbolCaptures = map[string]SymbolType{
	"function":  SymbolFunction,
	"method":    SymbolMethod,
	"class":     SymbolClass,
	"struct":    SymbolStruct,
	"interface": SymbolInterface,
}

// CodeChunk is one symbol extracted from a source file.
type CodeChunk struct {
	// Content is the verbatim source text of the symbol node.
	Content string `json:"content"`
	// Position is the 0-based order of the chunk within its file.
	Position   int        `json:"position"`
	SymbolName string     `json:"symbol_name"`
	SymbolType SymbolType `json:"symbol_type"`
	Language   string     `json:"language"`
	// StartLine and EndLine are 1-based and inclusive.
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	// ParentSymbol names the enclosing class, type or impl, if any.
	ParentSymbol string `json:"parent_symbol,omitempty"`
	Signature    string `json:"signature"`
	// StartByte and EndByte delimit the symbol node in its file.
	StartByte int `json:"-"`
	EndByte   int `json:"-"`
}

// EmbeddingText returns the text fed to the embedder for this chunk.
func (c CodeChunk) EmbeddingText() string {
	return c.Language + " " + c.SymbolName + ": " + c.Content
}

// TextChunk is one segment of a prose document.
type TextChunk struct {
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// RelationType is the kind of edge between two symbols.
type RelationType string

const (
	RelationCalls    RelationType = "calls"
	RelationImports  RelationType = "imports"
	RelationInherits RelationType = "inherits"
)

// ParseRelationType converts a string to a RelationType.
func ParseRelationType(s string) (RelationType, bool) {
	switch RelationType(s) {
	case RelationCalls, RelationImports, RelationInherits:
		return RelationType(s), true
	}
	return "", false
}

// relationCaptures maps query capture names to relation types.
var relationCaptures = map[string]RelationType{
	"call":    RelationCalls,
	"import":  RelationImports,
	"inherit": RelationInherits,
}

// CodeRelation is an edge mined from a symbol's source.
type CodeRelation struct {
	SourceSymbol string       `json:"source_symbol"`
	TargetName   string       `json:"target_name"`
	Type         RelationType `json:"relation_type"`
	SourceFile   string       `json:"source_file"`
	// TargetFile is set once the target is resolved to an indexed symbol.
	TargetFile string `json:"target_file,omitempty"`
	// SourceLine is the 1-based line of the captured reference.
	SourceLine int `json:"source_line"`
}
