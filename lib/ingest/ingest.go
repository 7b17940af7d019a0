// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/docindex"
)

// Document is the client-supplied metadata accompanying an upload.
// All fields are optional; content identity comes from the payload
// alone.
type Document struct {
	Filename    string
	ContentType string
	Metadata    map[string]any
}

// Result is the outcome of a successful ingest.
type Result struct {
	// Record is the index record for the content: freshly created,
	// or the existing one if Duplicate is true.
	Record docindex.Record

	// Duplicate reports whether the content was already stored. The
	// existing record's metadata wins; the duplicate upload's is
	// discarded.
	Duplicate bool
}

// Config holds the parameters for creating an Ingestor.
type Config struct {
	// Store is the blob store. Required.
	Store *blobstore.Store

	// Index is the metadata index. Required.
	Index docindex.Index

	// Clock stamps new records. Required.
	Clock clock.Clock

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger

	// MaxUploadBytes caps the payload size. Zero means unlimited.
	MaxUploadBytes int64
}

// Ingestor runs the upload path. Safe for concurrent use.
type Ingestor struct {
	store   *blobstore.Store
	index   docindex.Index
	clock   clock.Clock
	logger  *slog.Logger
	maxSize int64
}

// New creates an Ingestor.
func New(cfg Config) (*Ingestor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: Store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("ingest: Index is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("ingest: Clock is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Ingestor{
		store:   cfg.Store,
		index:   cfg.Index,
		clock:   cfg.Clock,
		logger:  logger,
		maxSize: cfg.MaxUploadBytes,
	}, nil
}

// Ingest streams content into the store and records it in the index.
//
// The payload is always staged first: its hash is not known until the
// stream is fully consumed, so there is no cheaper way to answer the
// duplicate question. The staging file is discarded on every path
// except the winning first upload, which finalizes it into the shard
// tree.
//
// Errors from the size cap wrap [blobstore.ErrPayloadTooLarge];
// stream errors propagate from the reader.
func (ing *Ingestor) Ingest(ctx context.Context, r io.Reader, doc Document) (Result, error) {
	staged, err := ing.store.Stage(ctx, r, ing.maxSize)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := staged.Discard(); err != nil {
				ing.logger.Warn("discarding staging file failed",
					"hash", blobstore.FormatHash(staged.Hash()),
					"error", err,
				)
			}
		}
	}()

	hash := staged.Hash()

	// Fast path: the content is already indexed.
	existing, err := ing.index.FindByHash(ctx, hash)
	if err == nil {
		ing.logger.Info("duplicate upload",
			"hash", blobstore.FormatHash(hash),
			"size", staged.Size(),
		)
		return Result{Record: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, docindex.ErrNotFound) {
		return Result{}, fmt.Errorf("ingest: index lookup: %w", err)
	}

	record := docindex.Record{
		Hash:        hash,
		Size:        staged.Size(),
		Filename:    doc.Filename,
		ContentType: doc.ContentType,
		CreatedAt:   ing.clock.Now().UTC(),
		Metadata:    doc.Metadata,
	}

	// The record insert is the commit point: whoever succeeds here
	// owns the content. A duplicate-hash failure means another writer
	// won between our lookup and our insert, so we take their record
	// instead.
	if err := ing.index.Create(ctx, record); err != nil {
		if errors.Is(err, docindex.ErrDuplicateHash) {
			winner, findErr := ing.index.FindByHash(ctx, hash)
			if findErr != nil {
				return Result{}, fmt.Errorf("ingest: fetching winning record: %w", findErr)
			}
			ing.logger.Info("lost upload race",
				"hash", blobstore.FormatHash(hash),
			)
			return Result{Record: winner, Duplicate: true}, nil
		}
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	// Finalize after the insert. If this fails the index holds a
	// record with no blob; the error is surfaced for operator repair
	// rather than rolling back the record, since the record is the
	// authority on the document's existence.
	if err := staged.Finalize(); err != nil {
		ing.logger.Error("finalize failed after record creation",
			"hash", blobstore.FormatHash(hash),
			"error", err,
		)
		return Result{}, fmt.Errorf("ingest: finalize: %w", err)
	}
	committed = true

	ing.logger.Info("document stored",
		"hash", blobstore.FormatHash(hash),
		"size", record.Size,
		"filename", record.Filename,
	)
	return Result{Record: record}, nil
}
