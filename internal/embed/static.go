package embed

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// StaticEmbedder hashes code-aware tokens and character trigrams into a
// fixed-size vector. It needs no model or network and is deterministic,
// at the cost of purely lexical similarity.
type StaticEmbedder struct {
	dims int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*StaticEmbedder)(nil)

// stopWords are keywords that carry no signal across languages.
var stopWords = map[string]bool{
	"func": true, "fn": true, "function": true, "def": true, "class": true,
	"return": true, "import": true, "const": true, "var": true,
	"let": true, "pub": true, "impl": true, "self": true, "this": true,
	"true": true, "false": true, "nil": true, "null": true, "none": true,
	"the": true, "a": true, "an": true, "and": true, "of": true,
}

const (
	tokenWeight = 0.7
	gramWeight  = 0.3
	gramSize    = 3
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// NewStaticEmbedder creates a static embedder. dims <= 0 selects
// DefaultDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed returns the unit-length vector for text. Blank text maps to the
// zero vector.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, errClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dims)
	text = strings.TrimSpace(text)
	if text == "" {
		return vec, nil
	}

	for _, tok := range tokenize(text) {
		if stopWords[tok] {
			continue
		}
		vec[bucket(tok, e.dims)] += tokenWeight
	}
	for _, g := range trigrams(text) {
		vec[bucket(g, e.dims)] += gramWeight
	}
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text in turn.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *StaticEmbedder) Dimensions() int   { return e.dims }
func (e *StaticEmbedder) ModelName() string { return "static" }

// Close marks the embedder closed. Further calls fail.
func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// tokenize lowercases words and splits snake_case and camelCase identifiers.
func tokenize(text string) []string {
	var tokens []string
	for _, word := range wordPattern.FindAllString(text, -1) {
		for _, part := range strings.Split(word, "_") {
			for _, sub := range splitCamelCase(part) {
				tokens = append(tokens, strings.ToLower(sub))
			}
		}
	}
	return tokens
}

// splitCamelCase splits "parseHTTPRequest" into parse, HTTP, Request.
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	runes := []rune(s)
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := unicode.IsLower(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
			out = append(out, string(runes[start:i]))
			start = i
		}
	}
	return append(out, string(runes[start:]))
}

// trigrams returns rune trigrams of the lowercased letters and digits.
func trigrams(text string) []string {
	var runes []rune
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) < gramSize {
		return nil
	}
	out := make([]string, 0, len(runes)-gramSize+1)
	for i := 0; i+gramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+gramSize]))
	}
	return out
}

func bucket(s string, size int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum64() % uint64(size))
}
