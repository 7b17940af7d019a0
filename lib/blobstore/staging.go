// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrPayloadTooLarge is returned by Stage when the input stream
// exceeds the declared maximum size. The staging file is removed
// before the error is returned.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// copyBufferSize is the chunk size for the staging copy loop. The
// loop checks for context cancellation between chunks, so this also
// bounds how much is written after a client disconnect.
const copyBufferSize = 64 * 1024

// Staged is the handle for a fully-written staging file whose content
// hash is known. It supports exactly two terminal operations,
// Finalize and Discard, both idempotent. Every Staged must reach one
// of them — the staging file is otherwise left behind until an
// operator removes the staging directory.
//
// A Staged is owned by the single goroutine that created it and is
// not safe for concurrent use.
type Staged struct {
	store     *Store
	path      string
	hash      Hash
	size      int64
	finalized bool
}

// Stage streams r into a new staging file while computing its SHA-256
// digest incrementally — the final path cannot be known until the
// stream is exhausted, so bytes land in the staging directory first.
//
// If the stream exceeds maxSize bytes, Stage aborts with
// ErrPayloadTooLarge. If the context is cancelled or the stream or
// the write fails, Stage aborts with the wrapped cause. On every
// error path the staging file is removed before Stage returns; only
// a successful return hands ownership of the file to the caller via
// the Staged handle.
func (s *Store) Stage(ctx context.Context, r io.Reader, maxSize int64) (*Staged, error) {
	file, err := os.CreateTemp(s.stagingDir(), "upload-*"+StagingSuffix)
	if err != nil {
		return nil, fmt.Errorf("creating staging file: %w", err)
	}
	path := file.Name()

	success := false
	defer func() {
		if !success {
			file.Close()
			os.Remove(path)
		}
	}()

	digest := sha256.New()
	buffer := make([]byte, copyBufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("staging aborted: %w", err)
		}

		n, readErr := r.Read(buffer)
		if n > 0 {
			written += int64(n)
			if maxSize > 0 && written > maxSize {
				return nil, fmt.Errorf("staging %d bytes with limit %d: %w",
					written, maxSize, ErrPayloadTooLarge)
			}
			if _, err := file.Write(buffer[:n]); err != nil {
				return nil, fmt.Errorf("writing staging file: %w", err)
			}
			// Hash writes never fail.
			digest.Write(buffer[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading upload stream: %w", readErr)
		}
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("closing staging file: %w", err)
	}

	var hash Hash
	copy(hash[:], digest.Sum(nil))

	success = true
	return &Staged{
		store: s,
		path:  path,
		hash:  hash,
		size:  written,
	}, nil
}

// Hash returns the content hash of the staged bytes.
func (st *Staged) Hash() Hash {
	return st.hash
}

// Size returns the total number of staged bytes.
func (st *Staged) Size() int64 {
	return st.size
}

// Finalize atomically commits the staging file to its sharded
// location, creating intermediate shard directories as needed. If a
// blob already exists at that path, a concurrent writer committed
// identical content first: the staging file is discarded and the
// call still succeeds — dedup at the filesystem layer, independent
// of the metadata index. Calling Finalize again after success is a
// no-op.
func (st *Staged) Finalize() error {
	if st.finalized {
		return nil
	}

	finalPath := st.store.BlobPath(st.hash)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating shard directory for %s: %w", FormatHash(st.hash), err)
	}

	// Same hash means same content by construction, so the existing
	// blob is identical and the staged copy is redundant.
	if _, err := os.Stat(finalPath); err == nil {
		if err := st.Discard(); err != nil {
			return err
		}
		st.finalized = true
		return nil
	}

	if err := os.Rename(st.path, finalPath); err != nil {
		return fmt.Errorf("finalizing blob %s: %w", FormatHash(st.hash), err)
	}
	st.finalized = true
	return nil
}

// Discard removes the staging file. "Already gone" is success, so
// Discard is safe to call more than once and after Finalize — the
// usual pattern is an unconditional deferred Discard guarding every
// exit path of an upload.
func (st *Staged) Discard() error {
	if err := os.Remove(st.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("discarding staged blob %s: %w", FormatHash(st.hash), err)
	}
	return nil
}
