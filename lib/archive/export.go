// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/codec"
	"github.com/totorinodavid/docvault/lib/docindex"
)

// ManifestName is the path of the manifest inside the archive. It is
// the first tar entry, so readers can inspect an archive without
// scanning it fully.
const ManifestName = "manifest.cbor"

// blobPrefix is the directory blobs live under inside the archive.
const blobPrefix = "blobs/"

// Manifest describes an archive's contents.
type Manifest struct {
	// CreatedAt is when the export ran, Unix nanoseconds.
	CreatedAt int64 `cbor:"created_at"`

	// Documents lists every exported document in index order.
	Documents []ManifestEntry `cbor:"documents"`
}

// ManifestEntry is one document in the manifest.
type ManifestEntry struct {
	Hash        string         `cbor:"hash"`
	Size        int64          `cbor:"size"`
	Filename    string         `cbor:"filename,omitempty"`
	ContentType string         `cbor:"content_type,omitempty"`
	CreatedAt   int64          `cbor:"created_at"`
	Metadata    map[string]any `cbor:"metadata,omitempty"`
}

// Lister enumerates the index records to export.
// *docindex.SQLiteIndex satisfies it.
type Lister interface {
	List(ctx context.Context) ([]docindex.Record, error)
}

// Options configures a single export.
type Options struct {
	// Compression wraps the tar stream. Defaults to CompressionNone.
	Compression Compression
}

// Summary reports what an export wrote.
type Summary struct {
	// Documents is the number of documents exported.
	Documents int

	// Bytes is the total uncompressed document payload.
	Bytes int64
}

// Config holds the parameters for creating an Exporter.
type Config struct {
	// Store is the blob store to read from. Required.
	Store *blobstore.Store

	// Index enumerates the documents. Required.
	Index Lister

	// Clock stamps the manifest. Required.
	Clock clock.Clock

	// Logger receives progress messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// Exporter writes vault archives.
type Exporter struct {
	store  *blobstore.Store
	index  Lister
	clock  clock.Clock
	logger *slog.Logger
}

// New creates an Exporter.
func New(cfg Config) (*Exporter, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("archive: Store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("archive: Index is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("archive: Clock is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Exporter{
		store:  cfg.Store,
		index:  cfg.Index,
		clock:  cfg.Clock,
		logger: logger,
	}, nil
}

// Export writes every indexed document to w as a (possibly
// compressed) tar stream. A blob that is missing, truncated, or whose
// bytes no longer hash to its name fails the export: a partial or
// silently corrupted archive is worse than none.
func (e *Exporter) Export(ctx context.Context, w io.Writer, opts Options) (Summary, error) {
	records, err := e.index.List(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("archive: listing documents: %w", err)
	}

	compressed, err := wrapWriter(w, opts.Compression)
	if err != nil {
		return Summary{}, err
	}

	tarWriter := tar.NewWriter(compressed)

	manifest := Manifest{
		CreatedAt: e.clock.Now().UnixNano(),
		Documents: make([]ManifestEntry, len(records)),
	}
	for i, record := range records {
		manifest.Documents[i] = ManifestEntry{
			Hash:        blobstore.FormatHash(record.Hash),
			Size:        record.Size,
			Filename:    record.Filename,
			ContentType: record.ContentType,
			CreatedAt:   record.CreatedAt.UnixNano(),
			Metadata:    record.Metadata,
		}
	}

	manifestBytes, err := codec.Marshal(manifest)
	if err != nil {
		return Summary{}, fmt.Errorf("archive: encoding manifest: %w", err)
	}
	if err := writeTarFile(tarWriter, ManifestName, manifestBytes, e.clock.Now()); err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("archive: %w", err)
		}
		if err := e.exportBlob(tarWriter, record); err != nil {
			return summary, err
		}
		summary.Documents++
		summary.Bytes += record.Size
	}

	if err := tarWriter.Close(); err != nil {
		return summary, fmt.Errorf("archive: closing tar stream: %w", err)
	}
	if err := compressed.Close(); err != nil {
		return summary, fmt.Errorf("archive: closing compression stream: %w", err)
	}

	e.logger.Info("export complete",
		"documents", summary.Documents,
		"bytes", summary.Bytes,
		"compression", string(opts.Compression),
	)
	return summary, nil
}

// exportBlob copies one blob into the tar stream, re-hashing it on
// the way out.
func (e *Exporter) exportBlob(tarWriter *tar.Writer, record docindex.Record) error {
	name := blobstore.FormatHash(record.Hash)

	reader, err := e.store.Open(record.Hash)
	if err != nil {
		return fmt.Errorf("archive: blob %s: %w", name, err)
	}
	defer reader.Close()

	header := &tar.Header{
		Name:    blobPrefix + name,
		Mode:    0o644,
		Size:    record.Size,
		ModTime: record.CreatedAt,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("archive: blob %s header: %w", name, err)
	}

	hasher := sha256.New()
	written, err := io.Copy(tarWriter, io.TeeReader(reader, hasher))
	if err != nil {
		return fmt.Errorf("archive: blob %s: %w", name, err)
	}
	if written != record.Size {
		return fmt.Errorf("archive: blob %s: %d bytes on disk, index says %d",
			name, written, record.Size)
	}

	var actual blobstore.Hash
	hasher.Sum(actual[:0])
	if actual != record.Hash {
		return fmt.Errorf("archive: blob %s: content hashes to %s, store is corrupt",
			name, blobstore.FormatHash(actual))
	}

	return nil
}

func writeTarFile(tarWriter *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: modTime,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return fmt.Errorf("archive: %s header: %w", name, err)
	}
	if _, err := tarWriter.Write(data); err != nil {
		return fmt.Errorf("archive: %s: %w", name, err)
	}
	return nil
}
