// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive exports the vault as a portable tar stream: a CBOR
// manifest of every index record followed by the blobs themselves.
// Each blob is re-hashed while it is copied out, so an export doubles
// as an integrity check — silent corruption on disk fails the export
// instead of propagating into the archive.
//
// The tar stream can be wrapped in zstd or lz4 compression; documents
// that are already compressed (media, PDFs) export faster with
// compression off.
package archive
