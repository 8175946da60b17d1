// Package store persists documents, chunks, embeddings and code graph
// data in SQLite, and ranks chunks by cosine distance to a query vector.
package store

import "time"

// Relation directions accepted by FindSymbolRelations.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
	DirectionBoth     = "both"
)

// Relation confidence assigned when a target symbol is resolved.
const (
	ConfidenceSameFile  = 1.0
	ConfidenceCrossFile = 0.5
)

// ChunkRecord is one chunk to be written with its embedding.
type ChunkRecord struct {
	Position  int
	Content   string
	Embedding []float32
}

// CodeMetadata describes the symbol a code chunk holds.
type CodeMetadata struct {
	ChunkID      int64  `json:"chunk_id,omitempty"`
	SymbolName   string `json:"symbol_name"`
	SymbolType   string `json:"symbol_type"`
	Language     string `json:"language"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	ParentSymbol string `json:"parent_symbol,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// RelationRecord is an outgoing edge of a code chunk, before its target
// has been resolved to a stored chunk.
type RelationRecord struct {
	TargetName string
	Type       string
	TargetFile string
	SourceLine int
}

// CodeChunkRecord is a symbol chunk with its metadata and relations.
type CodeChunkRecord struct {
	ChunkRecord
	Metadata  CodeMetadata
	Relations []RelationRecord
}

// Relation is a stored edge in the code graph. SourceName and SourceFile
// are only filled by FindSymbolRelations.
type Relation struct {
	ID            int64   `json:"id"`
	SourceChunkID int64   `json:"source_chunk_id"`
	TargetChunkID *int64  `json:"target_chunk_id,omitempty"`
	Type          string  `json:"relation_type"`
	TargetName    string  `json:"target_name"`
	TargetFile    string  `json:"target_file,omitempty"`
	SourceLine    int     `json:"source_line,omitempty"`
	Confidence    float64 `json:"confidence"`
	SourceName    string  `json:"source_name,omitempty"`
	SourceFile    string  `json:"source_file,omitempty"`
}

// SearchFilter narrows a search. Empty fields do not filter.
type SearchFilter struct {
	// Directory keeps documents under this path prefix.
	Directory string
	// FilePattern is a glob (* and ?) matched against the base name
	// or the whole stored path.
	FilePattern string
}

// SearchResult is one ranked chunk.
type SearchResult struct {
	DocumentName string        `json:"document_name"`
	ChunkContent string        `json:"chunk_content"`
	Similarity   float64       `json:"similarity"`
	Position     int           `json:"position"`
	ChunkID      int64         `json:"chunk_id"`
	Metadata     *CodeMetadata `json:"metadata,omitempty"`
}

// DocumentInfo is a row of the documents table.
type DocumentInfo struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	ModifiedAt time.Time `json:"modified_at"`
	IndexedAt  time.Time `json:"indexed_at"`
	Chunks     int       `json:"chunks"`
}

// Stats summarises store contents.
type Stats struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	CodeChunks int `json:"code_chunks"`
	Relations  int `json:"relations"`
	Dimensions int `json:"dimensions"`
}
