// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool backing the
// document metadata index.
//
// It wraps zombiezen.com/go/sqlite with the pragmas the index needs:
// WAL journal mode so reconciler reads never block upload-path writes,
// NORMAL synchronous for process-crash durability without a fsync per
// commit (disk/index drift is repaired by the reconciler sweep, not by
// stronger fsync guarantees), and a busy timeout so concurrent uploads
// wait for the single writer instead of surfacing SQLITE_BUSY.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back. Connections are not safe for concurrent use — each goroutine
// holds its own for the duration of its work. The package exposes the
// zombiezen types directly: the index writes plain SQL with
// sqlitex.Execute and manages its own transactions.
package sqlitepool
