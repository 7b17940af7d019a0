// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package blobstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// BlobFile describes one leaf file discovered by WalkBlobs.
type BlobFile struct {
	// Path is the file's full filesystem path.
	Path string

	// Name is the leaf filename.
	Name string

	// Hash is the content hash parsed from Name. Zero when Valid is
	// false.
	Hash Hash

	// Valid reports whether Name parsed as a canonical content
	// hash. Files with Valid false are foreign objects in the shard
	// tree — the sweep reports them and never deletes them blindly.
	Valid bool
}

// WalkBlobs lazily enumerates the leaf files of the shard tree,
// calling fn for each one. Directories are read one at a time and
// never accumulated, so memory stays bounded on arbitrarily large
// stores. Return fs.SkipAll from fn to stop the walk early without
// an error; any other error aborts the walk and is returned.
//
// Only directories named with exactly two lowercase hex characters
// are descended, to the fixed shard depth — the staging directory
// and any foreign directory at the root are never entered. Leaf
// files with the staging suffix are skipped without being yielded,
// so in-flight writes are invisible to callers.
//
// The walk is a point-in-time enumeration with no snapshot
// semantics: entries created or removed concurrently may or may not
// be observed.
func (s *Store) WalkBlobs(fn func(BlobFile) error) error {
	err := s.walkLevel(s.root, 0, fn)
	if errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

// walkLevel recurses through shard directories down to shardLevels,
// then yields leaf files.
func (s *Store) walkLevel(dir string, depth int, fn func(BlobFile) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading shard directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if depth < shardLevels {
			if !entry.IsDir() || !isShardName(entry.Name()) {
				continue
			}
			if err := s.walkLevel(filepath.Join(dir, entry.Name()), depth+1, fn); err != nil {
				return err
			}
			continue
		}

		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, StagingSuffix) {
			continue
		}

		file := BlobFile{
			Path: filepath.Join(dir, name),
			Name: name,
		}
		if hash, err := ParseHash(name); err == nil {
			file.Hash = hash
			file.Valid = true
		}
		if err := fn(file); err != nil {
			return err
		}
	}
	return nil
}

// isShardName reports whether a directory name is a shard fan-out
// segment: exactly shardPrefixChars lowercase hex characters.
func isShardName(name string) bool {
	if len(name) != shardPrefixChars {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
