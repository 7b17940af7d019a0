// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	// shardPrefixChars is the number of hex characters consumed per
	// shard level, and shardLevels is the number of directory levels
	// derived from the hash. Both the write path (BlobPath) and the
	// walker consume these constants — changing the shard geometry
	// in one place changes it everywhere.
	shardPrefixChars = 2
	shardLevels      = 2

	// stagingDirName is the directory under the store root holding
	// in-flight staging files. It shares a volume with the shard
	// tree so finalize is a single atomic rename. Its name is not
	// two hex characters, so the walker never descends into it.
	stagingDirName = "staging"

	// StagingSuffix is the reserved suffix for staging files. No
	// finalized blob ever carries it, and the walker skips any leaf
	// file that does, so in-flight writes are never misclassified
	// as orphans.
	StagingSuffix = ".tmp"
)

// Store manages a content-addressed blob tree rooted at a single
// directory. Finalized blobs live at BlobPath(hash); staging files
// live under the staging directory until finalized or discarded.
//
// The store holds no in-memory state and uses no in-process locking:
// blobs are immutable once finalized, finalize is an atomic rename,
// and both finalize and discard are idempotent. It is safe for
// concurrent use from any number of goroutines.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory, creating
// the root and staging directories if they do not exist. Shard
// directories are created lazily on finalize. Calling NewStore on an
// existing store is a no-op beyond the idempotent MkdirAll calls.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("blobstore: root directory is required")
	}
	for _, dir := range []string{root, filepath.Join(root, stagingDirName)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", dir, err)
		}
	}
	return &Store{root: filepath.Clean(root)}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// BlobPath returns the sharded filesystem path for a finalized blob:
// <root>/<hex[:2]>/<hex[2:4]>/<hex>. Pure path derivation — no I/O,
// no existence check. The input is a parsed Hash, so the result is
// always inside the shard tree.
func (s *Store) BlobPath(hash Hash) string {
	hex := FormatHash(hash)
	return filepath.Join(s.root, hex[:shardPrefixChars], hex[shardPrefixChars:2*shardPrefixChars], hex)
}

// stagingDir returns the directory holding in-flight staging files.
func (s *Store) stagingDir() string {
	return filepath.Join(s.root, stagingDirName)
}

// Exists reports whether a finalized blob is present on disk.
func (s *Store) Exists(hash Hash) bool {
	_, err := os.Stat(s.BlobPath(hash))
	return err == nil
}

// Open opens a finalized blob for reading. The caller must close the
// returned reader. Returns an error wrapping os.ErrNotExist if the
// blob is not on disk.
func (s *Store) Open(hash Hash) (io.ReadCloser, error) {
	file, err := os.Open(s.BlobPath(hash))
	if err != nil {
		return nil, fmt.Errorf("opening blob %s: %w", FormatHash(hash), err)
	}
	return file, nil
}

// ReadContent reads a finalized blob into memory. For large blobs,
// prefer Open with a streaming consumer.
func (s *Store) ReadContent(hash Hash) ([]byte, error) {
	data, err := os.ReadFile(s.BlobPath(hash))
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", FormatHash(hash), err)
	}
	return data, nil
}

// Remove unlinks a finalized blob. Used only by the reconciler's
// delete mode — the upload path never removes finalized blobs.
// Returns nil if the blob was removed or was already gone.
func (s *Store) Remove(hash Hash) error {
	if err := os.Remove(s.BlobPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", FormatHash(hash), err)
	}
	return nil
}
