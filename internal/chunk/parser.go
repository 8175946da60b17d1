package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// parse builds a syntax tree for source. A fresh tree-sitter parser is
// created per call because parsers are not safe for concurrent use.
// Callers must Close the returned tree.
func parse(ctx context.Context, lang *Language, source []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, rerrors.ParseError(fmt.Sprintf("parse %s source", lang.Name()), err)
	}
	if tree == nil {
		return nil, rerrors.ParseError(fmt.Sprintf("parse %s source: nil tree", lang.Name()), nil)
	}
	return tree, nil
}

// capture is one node captured by a query, labelled with its capture name.
type capture struct {
	name string
	node *sitter.Node
}

// eachMatch runs q over root and calls fn with the captures of every match,
// in match order.
func eachMatch(q *sitter.Query, root *sitter.Node, fn func([]capture)) {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(q, root)

	for {
		m, ok := qc.NextMatch()
		if !ok {
			return
		}
		caps := make([]capture, 0, len(m.Captures))
		for _, c := range m.Captures {
			caps = append(caps, capture{name: q.CaptureNameForId(c.Index), node: c.Node})
		}
		fn(caps)
	}
}

// lineOf returns the 1-based line of a point.
func lineOf(p sitter.Point) int {
	return int(p.Row) + 1
}
