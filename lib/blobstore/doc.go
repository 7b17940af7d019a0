// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package blobstore implements the content-addressable blob storage
// layer. A blob is an immutable byte payload identified solely by the
// SHA-256 hash of its content; its on-disk location is a pure function
// of that hash (two levels of 2-hex-character fan-out, bounding any
// single directory to 256 entries).
//
// Writes are staged: content is streamed into a temporary file in the
// staging directory while the digest is computed incrementally, then
// either atomically renamed into its sharded location (Finalize) or
// unlinked (Discard). Staging files carry a reserved suffix and live
// on the same volume as the shard tree, so rename is atomic and the
// walker can exclude in-flight writes without opening them.
//
// The package performs no index or network access. Duplicate
// resolution against the metadata index lives in lib/ingest; orphan
// detection lives in lib/reconcile. Both consume the same path
// derivation and the lazy shard-tree walker exposed here.
package blobstore
