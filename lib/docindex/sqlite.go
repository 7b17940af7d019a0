// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package docindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/codec"
	"github.com/totorinodavid/docvault/lib/sqlitepool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS documents (
		hash         TEXT PRIMARY KEY,
		size         INTEGER NOT NULL,
		filename     TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL,
		metadata     BLOB
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
`

// SQLiteIndex is the production Index backed by SQLite. Metadata maps
// are stored as deterministic CBOR blobs. Safe for concurrent use.
type SQLiteIndex struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// IndexConfig holds the parameters for opening an index.
type IndexConfig struct {
	// Path is the SQLite database file. The parent directory must
	// exist.
	Path string

	// PoolSize is the connection pool size. Defaults to 4 if zero or
	// negative.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// OpenIndex opens the index, creating the database file and schema on
// first use. The caller must Close the index when done.
func OpenIndex(cfg IndexConfig) (*SQLiteIndex, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docindex: %w", err)
	}

	return &SQLiteIndex{pool: pool, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (x *SQLiteIndex) Close() error {
	return x.pool.Close()
}

// Create inserts a new record. The unique constraint on the hash
// column is the linearization point for concurrent uploads of
// identical content: the first insert wins, every later one returns
// ErrDuplicateHash.
func (x *SQLiteIndex) Create(ctx context.Context, record Record) error {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("docindex: create: %w", err)
	}
	defer x.pool.Put(conn)

	var metadataBlob any
	if len(record.Metadata) > 0 {
		data, err := codec.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("docindex: marshal metadata: %w", err)
		}
		metadataBlob = data
	}

	err = sqlitex.Execute(conn, `INSERT INTO documents
		(hash, size, filename, content_type, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			blobstore.FormatHash(record.Hash),
			record.Size,
			record.Filename,
			record.ContentType,
			record.CreatedAt.UnixNano(),
			metadataBlob,
		},
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("docindex: %s: %w",
				blobstore.FormatHash(record.Hash), ErrDuplicateHash)
		}
		return fmt.Errorf("docindex: create: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. The hash column is declared PRIMARY KEY, so the extended
// code is CONSTRAINT_PRIMARYKEY rather than CONSTRAINT_UNIQUE.
func isUniqueViolation(err error) bool {
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintPrimaryKey ||
		code == sqlite.ResultConstraintUnique
}

// FindByHash returns the record for hash, or ErrNotFound.
func (x *SQLiteIndex) FindByHash(ctx context.Context, hash blobstore.Hash) (Record, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("docindex: find: %w", err)
	}
	defer x.pool.Put(conn)

	var record Record
	found := false
	err = sqlitex.Execute(conn, `SELECT hash, size, filename, content_type,
		created_at, metadata FROM documents WHERE hash = ?`, &sqlitex.ExecOptions{
		Args: []any{blobstore.FormatHash(hash)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			var scanErr error
			record, scanErr = scanRecord(stmt)
			return scanErr
		},
	})
	if err != nil {
		return Record{}, fmt.Errorf("docindex: find %s: %w", blobstore.FormatHash(hash), err)
	}
	if !found {
		return Record{}, fmt.Errorf("docindex: %s: %w", blobstore.FormatHash(hash), ErrNotFound)
	}
	return record, nil
}

// Exists reports whether a record exists for hash. Used by the
// reconciler to classify blobs without decoding full records.
func (x *SQLiteIndex) Exists(ctx context.Context, hash blobstore.Hash) (bool, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("docindex: exists: %w", err)
	}
	defer x.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn, "SELECT 1 FROM documents WHERE hash = ?", &sqlitex.ExecOptions{
		Args: []any{blobstore.FormatHash(hash)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("docindex: exists %s: %w", blobstore.FormatHash(hash), err)
	}
	return found, nil
}

// Delete removes the record for hash. Deleting a missing record is not
// an error.
func (x *SQLiteIndex) Delete(ctx context.Context, hash blobstore.Hash) error {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("docindex: delete: %w", err)
	}
	defer x.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM documents WHERE hash = ?", &sqlitex.ExecOptions{
		Args: []any{blobstore.FormatHash(hash)},
	})
	if err != nil {
		return fmt.Errorf("docindex: delete %s: %w", blobstore.FormatHash(hash), err)
	}
	return nil
}

// Count returns the number of records in the index.
func (x *SQLiteIndex) Count(ctx context.Context) (int64, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("docindex: count: %w", err)
	}
	defer x.pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM documents", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("docindex: count: %w", err)
	}
	return count, nil
}

// List returns all records ordered by creation time, oldest first.
// Used by the archive exporter and the stat command.
func (x *SQLiteIndex) List(ctx context.Context) ([]Record, error) {
	conn, err := x.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("docindex: list: %w", err)
	}
	defer x.pool.Put(conn)

	var records []Record
	err = sqlitex.Execute(conn, `SELECT hash, size, filename, content_type,
		created_at, metadata FROM documents ORDER BY created_at, hash`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, scanErr := scanRecord(stmt)
			if scanErr != nil {
				return scanErr
			}
			records = append(records, record)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docindex: list: %w", err)
	}
	return records, nil
}

func scanRecord(stmt *sqlite.Stmt) (Record, error) {
	var record Record

	// Columns: hash(0), size(1), filename(2), content_type(3),
	// created_at(4), metadata(5)

	hash, err := blobstore.ParseHash(stmt.ColumnText(0))
	if err != nil {
		return record, fmt.Errorf("docindex: stored hash invalid: %w", err)
	}
	record.Hash = hash
	record.Size = stmt.ColumnInt64(1)
	record.Filename = stmt.ColumnText(2)
	record.ContentType = stmt.ColumnText(3)
	record.CreatedAt = time.Unix(0, stmt.ColumnInt64(4)).UTC()

	if !stmt.ColumnIsNull(5) {
		blob := make([]byte, stmt.ColumnLen(5))
		stmt.ColumnBytes(5, blob)
		if err := codec.Unmarshal(blob, &record.Metadata); err != nil {
			return record, fmt.Errorf("docindex: unmarshal metadata: %w", err)
		}
	}

	return record, nil
}
