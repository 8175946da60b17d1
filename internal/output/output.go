// Package output renders CLI results, with colors when writing to a
// terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Michaol/RustRAG/internal/chunk"
	"github.com/Michaol/RustRAG/internal/store"
)

// Palette, 256-color codes.
const (
	ColorLime     = "154"
	ColorGray     = "245"
	ColorDarkGray = "238"
	ColorRed      = "196"
	ColorYellow   = "220"
)

// snippetLines bounds how much chunk content a text result shows.
const snippetLines = 6

// Styles holds the text styles used by Writer.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorLime)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
	}
}

// NoColorStyles returns unstyled components for plain output.
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Header: plain, Success: plain, Warning: plain, Error: plain, Dim: plain, Label: plain}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// Writer prints CLI output. Write errors are ignored: console output is
// best effort.
type Writer struct {
	out    io.Writer
	styles Styles
}

// New creates a Writer that colors output only on a terminal without
// NO_COLOR.
func New(out io.Writer) *Writer {
	return NewWithColor(out, IsTTY(out) && !DetectNoColor())
}

// NewWithColor creates a Writer with color forced on or off.
func NewWithColor(out io.Writer, color bool) *Writer {
	styles := NoColorStyles()
	if color {
		styles = DefaultStyles()
	}
	return &Writer{out: out, styles: styles}
}

// Status prints msg, prefixed by icon when one is given.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

func (w *Writer) Successf(format string, args ...any) {
	w.Status(w.styles.Success.Render("✓"), fmt.Sprintf(format, args...))
}

func (w *Writer) Warningf(format string, args ...any) {
	w.Status(w.styles.Warning.Render("!"), fmt.Sprintf(format, args...))
}

func (w *Writer) Errorf(format string, args ...any) {
	w.Status(w.styles.Error.Render("✗"), fmt.Sprintf(format, args...))
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// SearchResults prints ranked results with a short content snippet.
func (w *Writer) SearchResults(results []store.SearchResult) {
	if len(results) == 0 {
		w.Status("", w.styles.Dim.Render("no results"))
		return
	}
	for i, r := range results {
		head := fmt.Sprintf("%d. %s", i+1, r.DocumentName)
		score := w.styles.Label.Render(fmt.Sprintf("(%.3f)", r.Similarity))
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Header.Render(head), score)
		if m := r.Metadata; m != nil {
			_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Label.Render(symbolLine(m)))
		} else {
			_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Label.Render(fmt.Sprintf("chunk %d", r.Position)))
		}
		for _, line := range snippet(r.ChunkContent, snippetLines) {
			_, _ = fmt.Fprintf(w.out, "   %s %s\n", w.styles.Dim.Render("│"), line)
		}
		_, _ = fmt.Fprintln(w.out)
	}
}

func symbolLine(m *store.CodeMetadata) string {
	name := m.SymbolName
	if m.ParentSymbol != "" {
		name = m.ParentSymbol + "." + name
	}
	return fmt.Sprintf("%s %s [%s] L%d-%d", m.SymbolType, name, m.Language, m.StartLine, m.EndLine)
}

// snippet returns at most n lines of s, marking a cut with an ellipsis.
func snippet(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = append(lines[:n:n], "…")
	}
	return lines
}

// Chunks prints extracted symbols, one per line.
func (w *Writer) Chunks(chunks []chunk.CodeChunk) {
	if len(chunks) == 0 {
		w.Status("", w.styles.Dim.Render("no symbols"))
		return
	}
	for _, c := range chunks {
		loc := w.styles.Label.Render(fmt.Sprintf("L%d-%d", c.StartLine, c.EndLine))
		name := c.SymbolName
		if c.ParentSymbol != "" {
			name = c.ParentSymbol + "." + name
		}
		_, _ = fmt.Fprintf(w.out, "%-9s %s %s\n", c.SymbolType, w.styles.Header.Render(name), loc)
		if c.Signature != "" {
			_, _ = fmt.Fprintf(w.out, "          %s\n", w.styles.Dim.Render(c.Signature))
		}
	}
}

// Relations prints graph edges as "source -type-> target".
func (w *Writer) Relations(rels []store.Relation) {
	if len(rels) == 0 {
		w.Status("", w.styles.Dim.Render("no relations"))
		return
	}
	for _, r := range rels {
		target := r.TargetName
		if r.TargetFile != "" {
			target += " (" + r.TargetFile + ")"
		} else if r.TargetChunkID == nil {
			target += w.styles.Dim.Render(" (unresolved)")
		}
		src := fmt.Sprintf("%s:%d %s", r.SourceFile, r.SourceLine, r.SourceName)
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			src, w.styles.Label.Render("-"+r.Type+"->"), target)
	}
}

// Documents prints indexed documents with their chunk counts.
func (w *Writer) Documents(docs []store.DocumentInfo) {
	if len(docs) == 0 {
		w.Status("", w.styles.Dim.Render("no documents"))
		return
	}
	for _, d := range docs {
		meta := fmt.Sprintf("%d chunks, indexed %s", d.Chunks, d.IndexedAt.Format("2006-01-02 15:04:05"))
		_, _ = fmt.Fprintf(w.out, "%s %s\n", d.Filename, w.styles.Label.Render(meta))
	}
}

// Stats prints store counters.
func (w *Writer) Stats(s store.Stats) {
	rows := [][2]string{
		{"documents", fmt.Sprint(s.Documents)},
		{"chunks", fmt.Sprint(s.Chunks)},
		{"code chunks", fmt.Sprint(s.CodeChunks)},
		{"relations", fmt.Sprint(s.Relations)},
		{"dimensions", fmt.Sprint(s.Dimensions)},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Label.Render(fmt.Sprintf("%-12s", r[0])), r[1])
	}
}

// TextChunks prints prose chunks with their rune length and a snippet.
func (w *Writer) TextChunks(chunks []chunk.TextChunk) {
	if len(chunks) == 0 {
		w.Status("", w.styles.Dim.Render("no chunks"))
		return
	}
	for _, c := range chunks {
		head := fmt.Sprintf("chunk %d", c.Position)
		size := w.styles.Label.Render(fmt.Sprintf("(%d runes)", utf8.RuneCountInString(c.Content)))
		_, _ = fmt.Fprintf(w.out, "%s %s\n", w.styles.Header.Render(head), size)
		for _, line := range snippet(c.Content, snippetLines) {
			_, _ = fmt.Fprintf(w.out, "   %s %s\n", w.styles.Dim.Render("│"), line)
		}
	}
}

// CodeRelations prints freshly extracted edges, before any resolution.
func (w *Writer) CodeRelations(rels []chunk.CodeRelation) {
	if len(rels) == 0 {
		w.Status("", w.styles.Dim.Render("no relations"))
		return
	}
	for _, r := range rels {
		src := fmt.Sprintf("%s:%d %s", r.SourceFile, r.SourceLine, r.SourceSymbol)
		_, _ = fmt.Fprintf(w.out, "%s %s %s\n",
			src, w.styles.Label.Render("-"+string(r.Type)+"->"), r.TargetName)
	}
}
