package chunk

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// DefaultChunkSize is the target chunk length in runes.
const DefaultChunkSize = 500

const paragraphSep = "\n\n"

// ChunkText splits prose into positioned chunks of at most chunkSize runes,
// preferring paragraph and then sentence boundaries.
func ChunkText(text string, chunkSize int) ([]TextChunk, error) {
	if chunkSize <= 0 {
		return nil, rerrors.InputError(fmt.Sprintf("chunk size must be positive, got %d", chunkSize), nil)
	}
	return Chunk(text, chunkSize), nil
}

// ChunkFile reads a prose file and chunks it.
func ChunkFile(path string, chunkSize int) ([]TextChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.IOError(fmt.Sprintf("read %s", path), err)
	}
	return ChunkText(string(data), chunkSize)
}

// Chunk is Split with positions attached.
func Chunk(text string, chunkSize int) []TextChunk {
	parts := Split(text, chunkSize)
	chunks := make([]TextChunk, len(parts))
	for i, p := range parts {
		chunks[i] = TextChunk{Position: i, Content: p}
	}
	return chunks
}

// Split breaks text into pieces of at most chunkSize runes. A non-positive
// chunkSize disables splitting.
func Split(text string, chunkSize int) []string {
	if chunkSize <= 0 || utf8.RuneCountInString(text) <= chunkSize {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range strings.Split(text, paragraphSep) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		paraLen := utf8.RuneCountInString(para)

		if curLen > 0 && curLen+paraLen+2 > chunkSize {
			flush()
		}

		if paraLen > chunkSize {
			flush()
			chunks = append(chunks, splitParagraph(para, chunkSize)...)
			continue
		}

		if curLen > 0 {
			cur.WriteString(paragraphSep)
			curLen += 2
		}
		cur.WriteString(para)
		curLen += paraLen
	}
	flush()

	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '\n', '。':
		return true
	}
	return false
}

// splitParagraph cuts an oversized paragraph, looking back from chunkSize to
// chunkSize/2 for a sentence end and falling back to a hard cut.
func splitParagraph(para string, chunkSize int) []string {
	var out []string
	runes := []rune(para)

	for len(runes) > chunkSize {
		cut := chunkSize
		for i := chunkSize; i >= chunkSize/2; i-- {
			if i < len(runes) && isSentenceEnd(runes[i]) {
				cut = i + 1
				break
			}
		}

		if piece := strings.TrimSpace(string(runes[:cut])); piece != "" {
			out = append(out, piece)
		}
		runes = []rune(strings.TrimSpace(string(runes[cut:])))
	}

	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
