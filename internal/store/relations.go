package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

const relationColumns = `cr.id, cr.source_chunk_id, cr.target_chunk_id, cr.relation_type,
	cr.target_name, cr.target_file, cr.source_line, cr.confidence`

// FindSymbolRelations returns relations touching a symbol by name.
// Incoming relations name it as target; outgoing ones leave a chunk that
// defines it; both returns either. relType filters when non-empty.
// A blank symbol is an input error.
func (s *Store) FindSymbolRelations(ctx context.Context, symbol, direction, relType string) ([]Relation, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, rerrors.InputError("symbol must not be empty", nil)
	}
	query := `SELECT ` + relationColumns + `, cm.symbol_name, d.filename
		FROM code_relations cr
		JOIN code_metadata cm ON cm.chunk_id = cr.source_chunk_id
		JOIN chunks c ON c.id = cm.chunk_id
		JOIN documents d ON d.id = c.document_id`
	var args []any

	switch direction {
	case DirectionIncoming:
		query += " WHERE cr.target_name = ?"
		args = append(args, symbol)
	case DirectionOutgoing:
		query += " WHERE cm.symbol_name = ?"
		args = append(args, symbol)
	case DirectionBoth, "":
		query += " WHERE (cr.target_name = ? OR cm.symbol_name = ?)"
		args = append(args, symbol, symbol)
	default:
		return nil, rerrors.InputError(fmt.Sprintf("unknown relation direction %q", direction), nil)
	}
	if relType != "" {
		query += " AND cr.relation_type = ?"
		args = append(args, relType)
	}
	query += " ORDER BY d.filename, cr.source_line, cr.id"

	return s.queryRelations(ctx, query, args, true)
}

// RelationsFrom returns relations whose source is chunkID.
func (s *Store) RelationsFrom(ctx context.Context, chunkID int64, relType string) ([]Relation, error) {
	return s.basicRelations(ctx, "cr.source_chunk_id", chunkID, relType)
}

// RelationsTo returns relations resolved to chunkID as target.
func (s *Store) RelationsTo(ctx context.Context, chunkID int64, relType string) ([]Relation, error) {
	return s.basicRelations(ctx, "cr.target_chunk_id", chunkID, relType)
}

func (s *Store) basicRelations(ctx context.Context, column string, chunkID int64, relType string) ([]Relation, error) {
	query := `SELECT ` + relationColumns + ` FROM code_relations cr WHERE ` + column + ` = ?`
	args := []any{chunkID}
	if relType != "" {
		query += " AND cr.relation_type = ?"
		args = append(args, relType)
	}
	query += " ORDER BY cr.id"
	return s.queryRelations(ctx, query, args, false)
}

func (s *Store) queryRelations(ctx context.Context, query string, args []any, withSource bool) ([]Relation, error) {
	var out []Relation
	err := s.read(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var (
				r          Relation
				target     sql.NullInt64
				targetFile sql.NullString
				line       sql.NullInt64
				confidence sql.NullFloat64
			)
			dest := []any{&r.ID, &r.SourceChunkID, &target, &r.Type, &r.TargetName, &targetFile, &line, &confidence}
			var srcName sql.NullString
			if withSource {
				dest = append(dest, &srcName, &r.SourceFile)
			}
			if err := rows.Scan(dest...); err != nil {
				return err
			}
			if target.Valid {
				id := target.Int64
				r.TargetChunkID = &id
			}
			r.TargetFile = targetFile.String
			r.SourceLine = int(line.Int64)
			r.Confidence = ConfidenceSameFile
			if confidence.Valid {
				r.Confidence = confidence.Float64
			}
			r.SourceName = srcName.String
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// ChunkIDBySymbol returns the chunk defining symbol in filename.
// ok is false when no such symbol is stored.
func (s *Store) ChunkIDBySymbol(ctx context.Context, filename, symbol string) (id int64, ok bool, err error) {
	err = s.read(func(db *sql.DB) error {
		err := db.QueryRowContext(ctx, `
			SELECT cm.chunk_id
			FROM code_metadata cm
			JOIN chunks c ON c.id = cm.chunk_id
			JOIN documents d ON d.id = c.document_id
			WHERE d.filename = ? AND cm.symbol_name = ?
			ORDER BY cm.chunk_id
			LIMIT 1`, filename, symbol).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		ok = true
		return nil
	})
	return id, ok, err
}

// CodeMetadata returns the symbol metadata of a chunk, or nil for a
// prose chunk.
func (s *Store) CodeMetadata(ctx context.Context, chunkID int64) (*CodeMetadata, error) {
	var out *CodeMetadata
	err := s.read(func(db *sql.DB) error {
		var (
			m                 CodeMetadata
			name, parent, sig sql.NullString
			start, end        sql.NullInt64
		)
		err := db.QueryRowContext(ctx, `
			SELECT chunk_id, symbol_name, symbol_type, language, start_line, end_line, parent_symbol, signature
			FROM code_metadata WHERE chunk_id = ?`, chunkID).
			Scan(&m.ChunkID, &name, &m.SymbolType, &m.Language, &start, &end, &parent, &sig)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		m.SymbolName = name.String
		m.StartLine = int(start.Int64)
		m.EndLine = int(end.Int64)
		m.ParentSymbol = parent.String
		m.Signature = sig.String
		out = &m
		return nil
	})
	return out, err
}
