// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Hash is a 32-byte SHA-256 digest of a blob's content. The hex form
// (64 lowercase characters) is the canonical external representation:
// it names the blob on disk, keys the metadata index, and appears in
// logs and API responses.
type Hash [32]byte

// HashLength is the length of the canonical hex representation.
const HashLength = 2 * sha256.Size

// ErrInvalidHash is returned when a string does not parse as a
// canonical content hash. Anything that fails this check must never
// reach path derivation — it is the guard against path traversal.
var ErrInvalidHash = errors.New("invalid content hash")

// HashContent computes the content hash of a byte slice. The
// streaming write path computes the same digest incrementally; this
// is the convenience form for small payloads and tests.
func HashContent(data []byte) Hash {
	return sha256.Sum256(data)
}

// FormatHash returns the canonical lowercase hex representation.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a canonical content hash: exactly 64 lowercase
// hex characters. Uppercase digits are rejected — the canonical form
// is the only accepted one, so the same content never appears under
// two spellings of its hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	if len(hexString) != HashLength {
		return hash, fmt.Errorf("content hash is %d characters, want %d: %w",
			len(hexString), HashLength, ErrInvalidHash)
	}
	for i := 0; i < len(hexString); i++ {
		c := hexString[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return hash, fmt.Errorf("content hash has non-canonical character at position %d: %w",
				i, ErrInvalidHash)
		}
	}
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("decoding content hash: %w", ErrInvalidHash)
	}
	copy(hash[:], decoded)
	return hash, nil
}
