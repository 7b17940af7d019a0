// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile repairs drift between the blob store and the
// index. Crashed uploads and interrupted deletes can leave blobs on
// disk that no index record references; the reconciler walks the
// shard tree, classifies each blob against the index, and either
// reports orphans (scan mode) or removes them (delete mode).
//
// The sweep is read-only toward the index: the index is the authority
// on which documents exist, and a blob missing its record is garbage,
// never a record to resurrect. If the index cannot answer, the sweep
// aborts rather than classify blindly.
package reconcile
