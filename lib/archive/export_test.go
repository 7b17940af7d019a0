// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/codec"
	"github.com/totorinodavid/docvault/lib/docindex"
)

type fixture struct {
	store    *blobstore.Store
	index    *docindex.SQLiteIndex
	exporter *Exporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()

	store, err := blobstore.NewStore(filepath.Join(base, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	index, err := docindex.OpenIndex(docindex.IndexConfig{
		Path: filepath.Join(base, "index.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { index.Close() })

	exporter, err := New(Config{
		Store: store,
		Index: index,
		Clock: clock.NewFake(time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: store, index: index, exporter: exporter}
}

// addDocument stores content and indexes it.
func (f *fixture) addDocument(t *testing.T, content []byte, filename string) blobstore.Hash {
	t.Helper()
	staged, err := f.store.Stage(context.Background(), bytes.NewReader(content), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := staged.Finalize(); err != nil {
		t.Fatal(err)
	}
	err = f.index.Create(context.Background(), docindex.Record{
		Hash:      staged.Hash(),
		Size:      staged.Size(),
		Filename:  filename,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return staged.Hash()
}

// readArchive unpacks an exported stream into manifest and blob
// contents keyed by hash.
func readArchive(t *testing.T, data []byte, compression Compression) (Manifest, map[string][]byte) {
	t.Helper()

	raw, err := OpenReader(bytes.NewReader(data), compression)
	if err != nil {
		t.Fatal(err)
	}
	tarReader := tar.NewReader(raw)

	var manifest Manifest
	blobs := make(map[string][]byte)
	first := true

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("reading archive: %v", err)
		}

		content, err := io.ReadAll(tarReader)
		if err != nil {
			t.Fatal(err)
		}

		if first {
			if header.Name != ManifestName {
				t.Fatalf("first entry = %q, want %q", header.Name, ManifestName)
			}
			if err := codec.Unmarshal(content, &manifest); err != nil {
				t.Fatalf("decoding manifest: %v", err)
			}
			first = false
			continue
		}

		name := strings.TrimPrefix(header.Name, "blobs/")
		if name == header.Name {
			t.Fatalf("unexpected archive entry %q", header.Name)
		}
		blobs[name] = content
	}

	return manifest, blobs
}

func TestExportRoundtrip(t *testing.T) {
	f := newFixture(t)
	contents := map[string][]byte{
		"minutes.txt": []byte("meeting minutes, draft 4"),
		"logo.png":    []byte{0x89, 'P', 'N', 'G', 0, 1, 2, 3},
	}
	hashes := make(map[string]blobstore.Hash)
	for name, content := range contents {
		hashes[name] = f.addDocument(t, content, name)
	}

	var out bytes.Buffer
	summary, err := f.exporter.Export(context.Background(), &out, Options{})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if summary.Documents != len(contents) {
		t.Errorf("Documents = %d, want %d", summary.Documents, len(contents))
	}

	manifest, blobs := readArchive(t, out.Bytes(), CompressionNone)
	if len(manifest.Documents) != len(contents) {
		t.Fatalf("manifest lists %d documents, want %d", len(manifest.Documents), len(contents))
	}

	for name, content := range contents {
		hex := blobstore.FormatHash(hashes[name])
		got, ok := blobs[hex]
		if !ok {
			t.Errorf("blob %s (%s) missing from archive", hex, name)
			continue
		}
		if !bytes.Equal(got, content) {
			t.Errorf("blob %s content mismatch", name)
		}
	}
}

func TestExportCompressed(t *testing.T) {
	for _, compression := range []Compression{CompressionLZ4, CompressionZstd} {
		t.Run(string(compression), func(t *testing.T) {
			f := newFixture(t)
			content := bytes.Repeat([]byte("compressible text "), 512)
			hash := f.addDocument(t, content, "verbose.log")

			var out bytes.Buffer
			if _, err := f.exporter.Export(context.Background(), &out, Options{
				Compression: compression,
			}); err != nil {
				t.Fatalf("Export failed: %v", err)
			}

			if out.Len() >= len(content) {
				t.Errorf("compressed archive (%d bytes) not smaller than payload (%d bytes)",
					out.Len(), len(content))
			}

			_, blobs := readArchive(t, out.Bytes(), compression)
			if !bytes.Equal(blobs[blobstore.FormatHash(hash)], content) {
				t.Error("content mismatch after compression round-trip")
			}
		})
	}
}

func TestExportEmptyVault(t *testing.T) {
	f := newFixture(t)

	var out bytes.Buffer
	summary, err := f.exporter.Export(context.Background(), &out, Options{})
	if err != nil {
		t.Fatalf("Export failed on empty vault: %v", err)
	}
	if summary.Documents != 0 {
		t.Errorf("Documents = %d, want 0", summary.Documents)
	}

	// Even an empty export carries a manifest.
	manifest, _ := readArchive(t, out.Bytes(), CompressionNone)
	if len(manifest.Documents) != 0 {
		t.Errorf("manifest lists %d documents, want 0", len(manifest.Documents))
	}
}

func TestExportDetectsCorruptBlob(t *testing.T) {
	f := newFixture(t)
	hash := f.addDocument(t, []byte("pristine content"), "doc.txt")

	// Flip the blob's bytes behind the store's back. Size is
	// preserved so only the hash check can catch it.
	if err := os.WriteFile(f.store.BlobPath(hash), []byte("tampered content"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := f.exporter.Export(context.Background(), io.Discard, Options{})
	if err == nil {
		t.Fatal("Export succeeded over a corrupted blob")
	}
	if !strings.Contains(err.Error(), "corrupt") {
		t.Errorf("error does not identify corruption: %v", err)
	}
}

func TestExportDetectsMissingBlob(t *testing.T) {
	f := newFixture(t)
	hash := f.addDocument(t, []byte("indexed but gone"), "ghost.txt")
	if err := f.store.Remove(hash); err != nil {
		t.Fatal(err)
	}

	if _, err := f.exporter.Export(context.Background(), io.Discard, Options{}); err == nil {
		t.Fatal("Export succeeded with an indexed blob missing from disk")
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		if _, err := ParseCompression(name); err != nil {
			t.Errorf("ParseCompression(%q) failed: %v", name, err)
		}
	}
	if _, err := ParseCompression("gzip"); err == nil {
		t.Error("ParseCompression accepted an unknown algorithm")
	}
}

func TestExportHonorsContext(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		f.addDocument(t, []byte(fmt.Sprintf("document %d", i)), fmt.Sprintf("d%d.txt", i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.exporter.Export(ctx, io.Discard, Options{}); err == nil {
		t.Error("Export succeeded with a cancelled context")
	}
}
