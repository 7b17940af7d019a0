// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package docindex

import (
	"context"
	"errors"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
)

// ErrNotFound is returned when no record exists for a hash.
var ErrNotFound = errors.New("docindex: record not found")

// ErrDuplicateHash is returned by Create when a record for the hash
// already exists. In a concurrent upload race, exactly one writer
// creates the record; every other writer sees this error.
var ErrDuplicateHash = errors.New("docindex: record already exists for hash")

// Record is the metadata for one stored document.
type Record struct {
	// Hash is the document's content hash, the primary key.
	Hash blobstore.Hash

	// Size is the document size in bytes, recorded at ingest.
	Size int64

	// Filename is the client-supplied name. Informational only; the
	// blob is addressed by hash, never by name.
	Filename string

	// ContentType is the client-supplied MIME type, if any.
	ContentType string

	// CreatedAt is when the winning writer created the record.
	CreatedAt time.Time

	// Metadata holds arbitrary client-supplied key/value pairs.
	Metadata map[string]any
}

// Index is the subset of index operations the ingest path needs.
// *SQLiteIndex is the production implementation; tests substitute
// fakes to exercise race recovery.
type Index interface {
	// FindByHash returns the record for hash, or ErrNotFound.
	FindByHash(ctx context.Context, hash blobstore.Hash) (Record, error)

	// Create inserts a new record. Returns ErrDuplicateHash if a
	// record for the hash already exists.
	Create(ctx context.Context, record Record) error
}
