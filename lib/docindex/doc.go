// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package docindex is the metadata index over the content-addressed
// blob store. Every stored document has exactly one index record,
// keyed by its content hash.
//
// The index is the authority on which documents exist: a blob with no
// index record is an orphan eligible for garbage collection, and the
// unique constraint on the hash column is what decides the winner when
// two clients upload identical content concurrently. [Index.Create]
// surfaces that constraint as [ErrDuplicateHash] so the losing writer
// can recover the winner's record.
package docindex
