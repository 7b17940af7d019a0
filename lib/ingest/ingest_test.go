// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/docindex"
)

func newTestIngestor(t *testing.T, maxSize int64) (*Ingestor, *blobstore.Store, *docindex.SQLiteIndex) {
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

	ingestor, err := New(Config{
		Store:          store,
		Index:          index,
		Clock:          clock.NewFake(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)),
		MaxUploadBytes: maxSize,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ingestor, store, index
}

// stagingCount counts leftover files under the store's staging
// directory.
func stagingCount(t *testing.T, store *blobstore.Store) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(store.Root(), "staging"))
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func TestIngestNewDocument(t *testing.T) {
	ingestor, store, _ := newTestIngestor(t, 0)
	content := []byte("first of its kind")

	result, err := ingestor.Ingest(context.Background(), bytes.NewReader(content), Document{
		Filename:    "novel.txt",
		ContentType: "text/plain",
		Metadata:    map[string]any{"shelf": "A3"},
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if result.Duplicate {
		t.Error("first upload reported as duplicate")
	}
	if result.Record.Hash != blobstore.HashContent(content) {
		t.Error("record hash does not match content")
	}
	if result.Record.Size != int64(len(content)) {
		t.Errorf("record size = %d, want %d", result.Record.Size, len(content))
	}
	if result.Record.Filename != "novel.txt" {
		t.Errorf("record filename = %q", result.Record.Filename)
	}

	if !store.Exists(result.Record.Hash) {
		t.Error("blob not finalized")
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}

func TestIngestDuplicateKeepsOriginalMetadata(t *testing.T) {
	ingestor, store, _ := newTestIngestor(t, 0)
	content := []byte("same bytes, different names")

	first, err := ingestor.Ingest(context.Background(), bytes.NewReader(content), Document{
		Filename: "original.pdf",
	})
	if err != nil {
		t.Fatal(err)
	}

	second, err := ingestor.Ingest(context.Background(), bytes.NewReader(content), Document{
		Filename: "copy.pdf",
		Metadata: map[string]any{"note": "ignored"},
	})
	if err != nil {
		t.Fatalf("duplicate Ingest failed: %v", err)
	}

	if !second.Duplicate {
		t.Error("second upload not reported as duplicate")
	}
	if second.Record.Filename != "original.pdf" {
		t.Errorf("duplicate returned filename %q, want the original's", second.Record.Filename)
	}
	if !second.Record.CreatedAt.Equal(first.Record.CreatedAt) {
		t.Error("duplicate returned a different CreatedAt than the original record")
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}

func TestIngestOversizedPayload(t *testing.T) {
	ingestor, store, _ := newTestIngestor(t, 128)

	_, err := ingestor.Ingest(context.Background(),
		bytes.NewReader(make([]byte, 256)), Document{})
	if err == nil {
		t.Fatal("Ingest accepted an oversized payload")
	}
	if !errors.Is(err, blobstore.ErrPayloadTooLarge) {
		t.Errorf("error = %v, want ErrPayloadTooLarge", err)
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}

func TestIngestStreamError(t *testing.T) {
	ingestor, store, index := newTestIngestor(t, 0)
	streamErr := fmt.Errorf("peer hung up")

	_, err := ingestor.Ingest(context.Background(), &failingReader{
		data: []byte("half a document"),
		err:  streamErr,
	}, Document{})
	if err == nil {
		t.Fatal("Ingest succeeded on a failing stream")
	}
	if !errors.Is(err, streamErr) {
		t.Errorf("error = %v, want wrapped stream error", err)
	}

	// Nothing was committed anywhere.
	if count, err := index.Count(context.Background()); err != nil || count != 0 {
		t.Errorf("index count = %d (err %v), want 0", count, err)
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}

type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestIngestConcurrentIdenticalUploads(t *testing.T) {
	ingestor, store, index := newTestIngestor(t, 0)
	content := []byte("everyone uploads the quarterly report at once")
	const uploaders = 16

	var wg sync.WaitGroup
	results := make([]Result, uploaders)
	errs := make([]error, uploaders)

	for i := 0; i < uploaders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = ingestor.Ingest(context.Background(),
				bytes.NewReader(content), Document{Filename: "q1.pdf"})
		}(i)
	}
	wg.Wait()

	var winners int
	for i := 0; i < uploaders; i++ {
		if errs[i] != nil {
			t.Fatalf("uploader %d failed: %v", i, errs[i])
		}
		if !results[i].Duplicate {
			winners++
		}
		if results[i].Record.Hash != blobstore.HashContent(content) {
			t.Errorf("uploader %d got wrong hash", i)
		}
	}
	if winners != 1 {
		t.Errorf("%d uploads reported non-duplicate, want exactly 1", winners)
	}

	if count, err := index.Count(context.Background()); err != nil || count != 1 {
		t.Errorf("index count = %d (err %v), want 1", count, err)
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}

// racingIndex simulates losing the insert race: the first lookup
// misses, the insert collides, and the retry lookup sees the winner's
// record.
type racingIndex struct {
	mu      sync.Mutex
	lookups int
	winner  docindex.Record
}

func (x *racingIndex) FindByHash(ctx context.Context, hash blobstore.Hash) (docindex.Record, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.lookups++
	if x.lookups == 1 {
		return docindex.Record{}, docindex.ErrNotFound
	}
	return x.winner, nil
}

func (x *racingIndex) Create(ctx context.Context, record docindex.Record) error {
	return docindex.ErrDuplicateHash
}

func TestIngestRecoversFromLostInsertRace(t *testing.T) {
	base := t.TempDir()
	store, err := blobstore.NewStore(filepath.Join(base, "blobs"))
	if err != nil {
		t.Fatal(err)
	}

	content := []byte("contended content")
	index := &racingIndex{
		winner: docindex.Record{
			Hash:     blobstore.HashContent(content),
			Size:     int64(len(content)),
			Filename: "winner.txt",
		},
	}

	ingestor, err := New(Config{
		Store: store,
		Index: index,
		Clock: clock.Real(),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := ingestor.Ingest(context.Background(), bytes.NewReader(content), Document{
		Filename: "loser.txt",
	})
	if err != nil {
		t.Fatalf("Ingest failed after losing the race: %v", err)
	}
	if !result.Duplicate {
		t.Error("race loser not reported as duplicate")
	}
	if result.Record.Filename != "winner.txt" {
		t.Errorf("race loser got record %q, want the winner's", result.Record.Filename)
	}
	if n := stagingCount(t, store); n != 0 {
		t.Errorf("%d staging files left behind", n)
	}
}
