package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// ListDocuments returns filename -> source modification time for every
// stored document.
func (s *Store) ListDocuments(ctx context.Context) (map[string]time.Time, error) {
	docs := make(map[string]time.Time)
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, "SELECT filename, modified_at FROM documents")
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var name string
			var mod int64
			if err := rows.Scan(&name, &mod); err != nil {
				return err
			}
			docs[name] = time.Unix(mod, 0)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Documents returns every stored document with its chunk count, ordered
// by filename.
func (s *Store) Documents(ctx context.Context) ([]DocumentInfo, error) {
	var out []DocumentInfo
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT d.id, d.filename, d.modified_at, d.indexed_at, COUNT(c.id)
			FROM documents d
			LEFT JOIN chunks c ON c.document_id = d.id
			GROUP BY d.id
			ORDER BY d.filename`)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var info DocumentInfo
			var mod, idx int64
			if err := rows.Scan(&info.ID, &info.Filename, &mod, &idx, &info.Chunks); err != nil {
				return err
			}
			info.ModifiedAt = time.Unix(mod, 0)
			info.IndexedAt = time.Unix(idx, 0)
			out = append(out, info)
		}
		return rows.Err()
	})
	return out, err
}

// InsertDocument replaces the chunks of filename with chunks in one
// transaction. A document with no chunks is still recorded.
func (s *Store) InsertDocument(ctx context.Context, filename string, modTime time.Time, chunks []ChunkRecord) error {
	for _, c := range chunks {
		if err := s.checkVector(c.Embedding); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		docID, err := upsertDocument(ctx, tx, filename, modTime)
		if err != nil {
			return err
		}
		for _, c := range chunks {
			if _, err := insertChunk(ctx, tx, docID, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertCodeDocument replaces the chunks of filename with symbol chunks,
// writing vectors, metadata and relations in one transaction.
// Relation targets are resolved against stored symbols of the same name,
// preferring this file.
func (s *Store) InsertCodeDocument(ctx context.Context, filename string, modTime time.Time, chunks []CodeChunkRecord) error {
	for _, c := range chunks {
		if err := s.checkVector(c.Embedding); err != nil {
			return err
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		docID, err := upsertDocument(ctx, tx, filename, modTime)
		if err != nil {
			return err
		}

		ids := make([]int64, len(chunks))
		for i, c := range chunks {
			id, err := insertChunk(ctx, tx, docID, c.ChunkRecord)
			if err != nil {
				return err
			}
			if err := insertMetadata(ctx, tx, id, c.Metadata); err != nil {
				return err
			}
			ids[i] = id
		}

		// Relations go last so that targets defined later in the same
		// file resolve too.
		for i, c := range chunks {
			if err := insertRelations(ctx, tx, ids[i], filename, c.Relations); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertRelations adds outgoing relations to an existing chunk.
func (s *Store) InsertRelations(ctx context.Context, sourceChunkID int64, relations []RelationRecord) error {
	if len(relations) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var filename string
		err := tx.QueryRowContext(ctx, `
			SELECT d.filename FROM chunks c JOIN documents d ON d.id = c.document_id
			WHERE c.id = ?`, sourceChunkID).Scan(&filename)
		if errors.Is(err, sql.ErrNoRows) {
			return rerrors.InputError(fmt.Sprintf("chunk %d does not exist", sourceChunkID), nil)
		}
		if err != nil {
			return err
		}
		return insertRelations(ctx, tx, sourceChunkID, filename, relations)
	})
}

// DeleteDocument removes filename and, by cascade, its chunks, vectors,
// metadata and outgoing relations. It reports whether a row was deleted.
func (s *Store) DeleteDocument(ctx context.Context, filename string) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE filename = ?", filename)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func (s *Store) checkVector(v []float32) error {
	if len(v) != s.dims {
		return rerrors.New(rerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, store expects %d", len(v), s.dims), nil)
	}
	return nil
}

// upsertDocument creates or refreshes the document row and clears its
// previous chunks.
func upsertDocument(ctx context.Context, tx *sql.Tx, filename string, modTime time.Time) (int64, error) {
	now := time.Now().Unix()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (filename, indexed_at, modified_at) VALUES (?, ?, ?)
		ON CONFLICT(filename) DO UPDATE SET indexed_at = excluded.indexed_at, modified_at = excluded.modified_at`,
		filename, now, modTime.Unix())
	if err != nil {
		return 0, fmt.Errorf("upsert document: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE filename = ?", filename).Scan(&id); err != nil {
		return 0, fmt.Errorf("read document id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", id); err != nil {
		return 0, fmt.Errorf("clear chunks: %w", err)
	}
	return id, nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, docID int64, c ChunkRecord) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO chunks (document_id, position, content) VALUES (?, ?, ?)",
		docID, c.Position, c.Content)
	if err != nil {
		return 0, fmt.Errorf("insert chunk: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert chunk: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chunk_vectors (chunk_id, embedding) VALUES (?, ?)",
		id, encodeVector(c.Embedding)); err != nil {
		return 0, fmt.Errorf("insert vector: %w", err)
	}
	return id, nil
}

func insertMetadata(ctx context.Context, tx *sql.Tx, chunkID int64, m CodeMetadata) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO code_metadata
			(chunk_id, symbol_name, symbol_type, language, start_line, end_line, parent_symbol, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunkID, m.SymbolName, m.SymbolType, m.Language, m.StartLine, m.EndLine,
		nullString(m.ParentSymbol), nullString(m.Signature))
	if err != nil {
		return fmt.Errorf("insert code metadata: %w", err)
	}
	return nil
}

func insertRelations(ctx context.Context, tx *sql.Tx, sourceID int64, filename string, rels []RelationRecord) error {
	for _, r := range rels {
		target, targetFile, confidence, err := resolveTarget(ctx, tx, r.TargetName, filename)
		if err != nil {
			return err
		}
		if r.TargetFile != "" {
			targetFile = r.TargetFile
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO code_relations
				(source_chunk_id, target_chunk_id, relation_type, target_name, target_file, source_line, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sourceID, target, r.Type, r.TargetName, nullString(targetFile), r.SourceLine, confidence)
		if err != nil {
			return fmt.Errorf("insert relation: %w", err)
		}
	}
	return nil
}

// resolveTarget finds the chunk defining name. A qualified name such as
// pkg.Func or mod::func falls back to its last segment.
func resolveTarget(ctx context.Context, tx *sql.Tx, name, filename string) (sql.NullInt64, string, float64, error) {
	candidates := []string{name}
	if short := lastSegment(name); short != name {
		candidates = append(candidates, short)
	}

	for _, cand := range candidates {
		var id int64
		var file string
		err := tx.QueryRowContext(ctx, `
			SELECT cm.chunk_id, d.filename
			FROM code_metadata cm
			JOIN chunks c ON c.id = cm.chunk_id
			JOIN documents d ON d.id = c.document_id
			WHERE cm.symbol_name = ?
			ORDER BY (d.filename = ?) DESC, cm.chunk_id
			LIMIT 1`, cand, filename).Scan(&id, &file)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return sql.NullInt64{}, "", 0, fmt.Errorf("resolve relation target: %w", err)
		}
		confidence := ConfidenceCrossFile
		if file == filename {
			confidence = ConfidenceSameFile
		}
		return sql.NullInt64{Int64: id, Valid: true}, file, confidence, nil
	}
	return sql.NullInt64{}, "", ConfidenceSameFile, nil
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
