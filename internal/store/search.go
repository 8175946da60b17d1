package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

const resultColumns = `d.filename, c.content, c.position, c.id,
	cm.symbol_name, cm.symbol_type, cm.language, cm.start_line, cm.end_line,
	cm.parent_symbol, cm.signature`

// SearchWithFilter returns the topK chunks closest to vector by cosine
// distance, nearest first.
func (s *Store) SearchWithFilter(ctx context.Context, vector []float32, topK int, filter SearchFilter) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, rerrors.New(rerrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if len(vector) != s.dims {
		return nil, rerrors.New(rerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query vector has %d dimensions, store expects %d", len(vector), s.dims), nil)
	}

	query := `SELECT ` + resultColumns + `, ` + cosineFunc + `(v.embedding, ?) AS distance
		FROM chunk_vectors v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		LEFT JOIN code_metadata cm ON cm.chunk_id = c.id
		WHERE 1 = 1`
	args := []any{encodeVector(vector)}

	where, fargs := filterClause(filter)
	query += where
	args = append(args, fargs...)

	query += " ORDER BY distance ASC, c.id ASC LIMIT ?"
	args = append(args, topK)

	var out []SearchResult
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var distance float64
			r, err := scanResult(rows, &distance)
			if err != nil {
				return err
			}
			r.Similarity = similarityFromDistance(distance)
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// SearchSymbols matches keywords as case-insensitive substrings of
// symbol names. Every hit has similarity 1.
func (s *Store) SearchSymbols(ctx context.Context, keywords []string, limit int) ([]SearchResult, error) {
	var conds []string
	var args []any
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		conds = append(conds, `LOWER(cm.symbol_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(kw))+"%")
	}
	if len(conds) == 0 || limit <= 0 {
		return nil, nil
	}

	query := `SELECT ` + resultColumns + `
		FROM code_metadata cm
		JOIN chunks c ON c.id = cm.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE (` + strings.Join(conds, " OR ") + `)
		ORDER BY d.filename, c.position
		LIMIT ?`
	args = append(args, limit)

	var out []SearchResult
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			r, err := scanResult(rows)
			if err != nil {
				return err
			}
			r.Similarity = 1
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// Stats counts stored rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Dimensions: s.dims}
	err := s.read(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM code_metadata),
			(SELECT COUNT(*) FROM code_relations)`).
			Scan(&st.Documents, &st.Chunks, &st.CodeChunks, &st.Relations)
	})
	return st, err
}

// filterClause renders the directory and file pattern filters as
// AND-ed SQL conditions.
func filterClause(f SearchFilter) (string, []any) {
	var sb strings.Builder
	var args []any

	if f.Directory != "" {
		dir := escapeLike(strings.TrimRight(f.Directory, `/\`))
		sb.WriteString(` AND (d.filename LIKE ? ESCAPE '\' OR d.filename LIKE ? ESCAPE '\')`)
		args = append(args, dir+"/%", dir+`\\%`)
	}
	if f.FilePattern != "" {
		p := globToLike(f.FilePattern)
		sb.WriteString(` AND (d.filename LIKE '%/' || ? ESCAPE '\' OR d.filename LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	return sb.String(), args
}

// escapeLike escapes LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// globToLike escapes LIKE metacharacters with a backslash and turns
// glob * and ? into % and _.
func globToLike(glob string) string {
	var sb strings.Builder
	for _, r := range glob {
		switch r {
		case '\\', '%', '_':
			sb.WriteRune('\\')
			sb.WriteRune(r)
		case '*':
			sb.WriteRune('%')
		case '?':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func scanResult(rows *sql.Rows, extra ...any) (SearchResult, error) {
	var (
		r               SearchResult
		name, typ, lang sql.NullString
		parent, sig     sql.NullString
		start, end      sql.NullInt64
	)
	dest := append([]any{
		&r.DocumentName, &r.ChunkContent, &r.Position, &r.ChunkID,
		&name, &typ, &lang, &start, &end, &parent, &sig,
	}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return r, err
	}
	if typ.Valid {
		r.Metadata = &CodeMetadata{
			ChunkID:      r.ChunkID,
			SymbolName:   name.String,
			SymbolType:   typ.String,
			Language:     lang.String,
			StartLine:    int(start.Int64),
			EndLine:      int(end.Int64),
			ParentSymbol: parent.String,
			Signature:    sig.String,
		}
	}
	return r, nil
}
