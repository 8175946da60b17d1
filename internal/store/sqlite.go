package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	rerrors "github.com/Michaol/RustRAG/internal/errors"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const metaKeyDimensions = "embedding_dimensions"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	filename    TEXT NOT NULL UNIQUE,
	indexed_at  INTEGER NOT NULL,
	modified_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	content     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);

CREATE TABLE IF NOT EXISTS chunk_vectors (
	chunk_id  INTEGER PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
	embedding BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS code_metadata (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	chunk_id      INTEGER NOT NULL UNIQUE REFERENCES chunks(id) ON DELETE CASCADE,
	symbol_name   TEXT,
	symbol_type   TEXT NOT NULL,
	language      TEXT NOT NULL,
	start_line    INTEGER,
	end_line      INTEGER,
	parent_symbol TEXT,
	signature     TEXT
);
CREATE INDEX IF NOT EXISTS idx_code_symbol ON code_metadata(symbol_name);

CREATE TABLE IF NOT EXISTS code_relations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	source_chunk_id INTEGER NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
	target_chunk_id INTEGER REFERENCES chunks(id) ON DELETE SET NULL,
	relation_type   TEXT NOT NULL,
	target_name     TEXT NOT NULL,
	target_file     TEXT,
	source_line     INTEGER,
	confidence      REAL DEFAULT 1.0
);
CREATE INDEX IF NOT EXISTS idx_rel_source ON code_relations(source_chunk_id);
CREATE INDEX IF NOT EXISTS idx_rel_target ON code_relations(target_chunk_id);
CREATE INDEX IF NOT EXISTS idx_rel_name ON code_relations(target_name);
`

// Store is the SQLite-backed document and vector store.
// A single mutex serialises every transaction and query; callers keep
// parsing and embedding outside of it.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	dims int
}

// Open opens or creates the database at path for vectors of the given
// dimension. Reopening a store created with another dimension fails with
// ERR_804_SCHEMA_MISMATCH.
func Open(ext *VectorExtension, path string, dimensions int) (*Store, error) {
	if ext == nil {
		return nil, rerrors.New(rerrors.ErrCodeStorageOpen,
			"vector extension not initialised; call InitVectorExtension first", nil)
	}
	if dimensions <= 0 {
		return nil, rerrors.InputError(fmt.Sprintf("invalid embedding dimensions %d", dimensions), nil)
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, rerrors.New(rerrors.ErrCodeStorageOpen, "create database directory", err)
		}
	}

	db, err := sql.Open(ext.Driver(), path)
	if err != nil {
		return nil, rerrors.New(rerrors.ErrCodeStorageOpen, "open database", err)
	}

	// One connection: an in-memory database lives and dies with it, and
	// the store lock already serialises access.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, rerrors.New(rerrors.ErrCodeStorageOpen, "configure database", err).
				WithDetail("pragma", p)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, rerrors.New(rerrors.ErrCodeStorageOpen, "create schema", err)
	}

	s := &Store{db: db, path: path, dims: dimensions}
	if err := s.pinDimensions(); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("store_opened",
		slog.String("path", path),
		slog.String("driver", BuildMode),
		slog.Int("dimensions", dimensions))
	return s, nil
}

// pinDimensions records the embedding dimension on first open and
// rejects a different one afterwards.
func (s *Store) pinDimensions() error {
	var stored string
	err := s.db.QueryRow("SELECT value FROM store_meta WHERE key = ?", metaKeyDimensions).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec("INSERT INTO store_meta (key, value) VALUES (?, ?)",
			metaKeyDimensions, strconv.Itoa(s.dims))
		if err != nil {
			return rerrors.New(rerrors.ErrCodeStorageOpen, "record embedding dimensions", err)
		}
		return nil
	case err != nil:
		return rerrors.New(rerrors.ErrCodeStorageOpen, "read store metadata", err)
	}

	if stored != strconv.Itoa(s.dims) {
		return rerrors.New(rerrors.ErrCodeSchemaMismatch,
			fmt.Sprintf("store was created for %s-dimensional embeddings, got %d; reindex with --force into a new database", stored, s.dims),
			nil).
			WithDetail("stored", stored).
			WithDetail("requested", strconv.Itoa(s.dims))
	}
	return nil
}

// Dimensions returns the embedding dimension the store is pinned to.
func (s *Store) Dimensions() int { return s.dims }

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	if s.path != MemoryPath {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// withTx runs fn in a transaction under the store lock. The transaction
// is rolled back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return rerrors.StorageError("store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rerrors.StorageError("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		var rerr *rerrors.Error
		if errors.As(err, &rerr) {
			return err
		}
		return rerrors.StorageError("transaction failed", err)
	}
	if err := tx.Commit(); err != nil {
		return rerrors.StorageError("commit transaction", err)
	}
	return nil
}

// read runs fn under the store lock.
func (s *Store) read(fn func(db *sql.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return rerrors.New(rerrors.ErrCodeStorageQuery, "store is closed", nil)
	}
	if err := fn(s.db); err != nil {
		var rerr *rerrors.Error
		if errors.As(err, &rerr) {
			return err
		}
		return rerrors.New(rerrors.ErrCodeStorageQuery, "query failed", err)
	}
	return nil
}
