package chunk

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// LanguageSpec describes what the extractors need to know about a language.
// Queries use anchor captures named after SymbolType values plus @name for
// symbols, and @call, @import, @inherit for relations. An empty relation
// query means the language has no such relation.
type LanguageSpec struct {
	Name         string
	Extensions   []string
	Grammar      func() *sitter.Language
	SymbolQuery  string
	CallQuery    string
	ImportQuery  string
	InheritQuery string
	// Containers are node kinds whose name becomes a symbol's parent.
	Containers []string
}

// A grouped declaration, type ( A struct{}; B struct{} ), anchors every
// spec on the same node, so only its first type survives dedup.
const goSymbols = `
(function_declaration name: (identifier) @name) @function
(method_declaration name: (field_identifier) @name) @method
(type_declaration (type_spec name: (type_identifier) @name type: (struct_type))) @struct
(type_declaration (type_spec name: (type_identifier) @name type: (interface_type))) @interface
`

const goCalls = `
(call_expression function: (identifier) @call)
(call_expression function: (selector_expression field: (field_identifier) @call))
`

const goImports = `(import_spec path: (interpreted_string_literal) @import)`

const pythonSymbols = `
(function_definition name: (identifier) @name) @function
(class_definition name: (identifier) @name) @class
`

const pythonCalls = `
(call function: (identifier) @call)
(call function: (attribute attribute: (identifier) @call))
`

const pythonImports = `
(import_statement name: (dotted_name) @import)
(import_from_statement module_name: (dotted_name) @import)
`

const pythonInherits = `(class_definition superclasses: (argument_list (identifier) @inherit))`

const typescriptSymbols = `
(function_declaration name: (identifier) @name) @function
(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @function
(class_declaration name: (type_identifier) @name) @class
(interface_declaration name: (type_identifier) @name) @interface
(method_definition name: (property_identifier) @name) @method
`

const jsCalls = `
(call_expression function: (identifier) @call)
(call_expression function: (member_expression property: (property_identifier) @call))
`

const jsImports = `(import_statement source: (string) @import)`

const typescriptInherits = `
(class_heritage (extends_clause (identifier) @inherit))
(class_heritage (implements_clause (type_identifier) @inherit))
`

const javascriptSymbols = `
(function_declaration name: (identifier) @name) @function
(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @function
(class_declaration name: (identifier) @name) @class
(method_definition name: (property_identifier) @name) @method
`

const javascriptInherits = `(class_heritage (identifier) @inherit)`

// Inherent impl blocks are only containers. A trait impl is also a struct
// chunk named after the implementing type.
const rustSymbols = `
(function_item name: (identifier) @name) @function
(impl_item trait: (_) type: (_) @name) @struct
(struct_item name: (type_identifier) @name) @struct
(enum_item name: (type_identifier) @name) @struct
(trait_item name: (type_identifier) @name) @interface
(mod_item name: (identifier) @name) @function
`

const rustCalls = `
(call_expression function: (identifier) @call)
(call_expression function: (field_expression field: (field_identifier) @call))
(call_expression function: (scoped_identifier name: (identifier) @call))
`

const rustImports = `
(use_declaration argument: (scoped_identifier) @import)
(use_declaration argument: (identifier) @import)
(use_declaration argument: (use_wildcard) @import)
`

// DefaultLanguages returns the built-in language table.
func DefaultLanguages() []LanguageSpec {
	return []LanguageSpec{
		{
			Name:        "go",
			Extensions:  []string{".go"},
			Grammar:     golang.GetLanguage,
			SymbolQuery: goSymbols,
			CallQuery:   goCalls,
			ImportQuery: goImports,
			Containers:  []string{"type_declaration"},
		},
		{
			Name:         "python",
			Extensions:   []string{".py"},
			Grammar:      python.GetLanguage,
			SymbolQuery:  pythonSymbols,
			CallQuery:    pythonCalls,
			ImportQuery:  pythonImports,
			InheritQuery: pythonInherits,
			Containers:   []string{"class_definition"},
		},
		{
			Name:         "typescript",
			Extensions:   []string{".ts", ".tsx"},
			Grammar:      typescript.GetLanguage,
			SymbolQuery:  typescriptSymbols,
			CallQuery:    jsCalls,
			ImportQuery:  jsImports,
			InheritQuery: typescriptInherits,
			Containers:   []string{"class_declaration"},
		},
		{
			Name:         "javascript",
			Extensions:   []string{".js", ".jsx"},
			Grammar:      javascript.GetLanguage,
			SymbolQuery:  javascriptSymbols,
			CallQuery:    jsCalls,
			ImportQuery:  jsImports,
			InheritQuery: javascriptInherits,
			Containers:   []string{"class_declaration"},
		},
		{
			Name:        "rust",
			Extensions:  []string{".rs"},
			Grammar:     rust.GetLanguage,
			SymbolQuery: rustSymbols,
			CallQuery:   rustCalls,
			ImportQuery: rustImports,
			Containers:  []string{"impl_item", "struct_item", "trait_item"},
		},
	}
}

// Language is a LanguageSpec with its grammar loaded and queries compiled.
// Compiled queries are read-only and shared between goroutines.
type Language struct {
	Spec       LanguageSpec
	grammar    *sitter.Language
	symbols    *sitter.Query
	relations  []*sitter.Query
	containers map[string]bool
}

// Name returns the language name.
func (l *Language) Name() string {
	return l.Spec.Name
}

func (l *Language) isContainer(kind string) bool {
	return l.containers[kind]
}

// Registry resolves languages by name or file extension.
type Registry struct {
	mu        sync.RWMutex
	languages map[string]*Language
	extToLang map[string]string
}

// NewRegistry compiles every spec. A query that fails to compile is
// reported as ERR_603_QUERY_INVALID naming the language.
func NewRegistry(specs []LanguageSpec) (*Registry, error) {
	r := &Registry{
		languages: make(map[string]*Language, len(specs)),
		extToLang: make(map[string]string),
	}
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Register compiles and adds a language, replacing any previous one with
// the same name.
func (r *Registry) Register(spec LanguageSpec) error {
	if spec.Grammar == nil {
		return rerrors.New(rerrors.ErrCodeQueryInvalid, fmt.Sprintf("language %s has no grammar", spec.Name), nil)
	}
	grammar := spec.Grammar()

	compile := func(kind, src string) (*sitter.Query, error) {
		q, err := sitter.NewQuery([]byte(src), grammar)
		if err != nil {
			return nil, rerrors.New(rerrors.ErrCodeQueryInvalid,
				fmt.Sprintf("compile %s %s query", spec.Name, kind), err)
		}
		return q, nil
	}

	symbols, err := compile("symbol", spec.SymbolQuery)
	if err != nil {
		return err
	}
	lang := &Language{
		Spec:       spec,
		grammar:    grammar,
		symbols:    symbols,
		containers: make(map[string]bool, len(spec.Containers)),
	}
	for _, c := range spec.Containers {
		lang.containers[c] = true
	}

	for _, rq := range []struct{ kind, src string }{
		{"call", spec.CallQuery},
		{"import", spec.ImportQuery},
		{"inherit", spec.InheritQuery},
	} {
		if strings.TrimSpace(rq.src) == "" {
			continue
		}
		q, err := compile(rq.kind, rq.src)
		if err != nil {
			lang.close()
			return err
		}
		lang.relations = append(lang.relations, q)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.languages[spec.Name]; ok {
		old.close()
	}
	r.languages[spec.Name] = lang
	for _, ext := range spec.Extensions {
		r.extToLang[normalizeExt(ext)] = spec.Name
	}
	return nil
}

// GetByName returns the language registered under name.
func (r *Registry) GetByName(name string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.languages[strings.ToLower(name)]
	return l, ok
}

// GetByExtension returns the language for a file extension, with or
// without the leading dot.
func (r *Registry) GetByExtension(ext string) (*Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.extToLang[normalizeExt(ext)]
	if !ok {
		return nil, false
	}
	l, ok := r.languages[name]
	return l, ok
}

// GetByPath returns the language for a file path.
func (r *Registry) GetByPath(path string) (*Language, bool) {
	return r.GetByExtension(filepath.Ext(path))
}

// Lookup accepts either a language name or an extension.
func (r *Registry) Lookup(nameOrExt string) (*Language, bool) {
	if l, ok := r.GetByName(nameOrExt); ok {
		return l, true
	}
	return r.GetByExtension(nameOrExt)
}

// SupportedExtensions returns all registered extensions, sorted.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Close releases compiled queries.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, l := range r.languages {
		l.close()
		delete(r.languages, name)
	}
}

func (l *Language) close() {
	if l.symbols != nil {
		l.symbols.Close()
	}
	for _, q := range l.relations {
		q.Close()
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return NewRegistry(DefaultLanguages())
})

// DefaultRegistry returns the process-wide registry of built-in languages.
func DefaultRegistry() (*Registry, error) {
	return defaultRegistry()
}
