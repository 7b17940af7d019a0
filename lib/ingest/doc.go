// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest implements the document upload path: stream the
// payload into blob staging while hashing it, consult the index, and
// either finalize a new document or report the existing one.
//
// Concurrent uploads of identical content are resolved by the index's
// unique constraint, not by filesystem coordination: every writer
// stages independently, exactly one wins the record insert and
// finalizes, and the losers discard their staging files and return the
// winner's record. No client observes an error for a successful
// duplicate upload.
package ingest
