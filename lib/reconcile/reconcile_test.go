// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/docindex"
)

type fixture struct {
	store *blobstore.Store
	index *docindex.SQLiteIndex
	rec   *Reconciler
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

	rec, err := New(Config{Store: store, Index: index})
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{store: store, index: index, rec: rec}
}

// addIndexed finalizes a blob and gives it an index record.
func (f *fixture) addIndexed(t *testing.T, content []byte) blobstore.Hash {
	t.Helper()
	hash := f.addOrphan(t, content)
	err := f.index.Create(context.Background(), docindex.Record{
		Hash:      hash,
		Size:      int64(len(content)),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return hash
}

// addOrphan finalizes a blob with no index record.
func (f *fixture) addOrphan(t *testing.T, content []byte) blobstore.Hash {
	t.Helper()
	staged, err := f.store.Stage(context.Background(), bytes.NewReader(content), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := staged.Finalize(); err != nil {
		t.Fatal(err)
	}
	return staged.Hash()
}

func TestScanClassifiesBlobs(t *testing.T) {
	f := newFixture(t)
	indexed := f.addIndexed(t, []byte("kept document"))
	orphan := f.addOrphan(t, []byte("crashed upload leftovers"))

	report, err := f.rec.Run(context.Background(), Options{Mode: ModeScan})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Scanned != 2 {
		t.Errorf("Scanned = %d, want 2", report.Scanned)
	}
	if len(report.Orphans) != 1 || report.Orphans[0] != orphan {
		t.Errorf("Orphans = %v, want [%s]", report.Orphans, blobstore.FormatHash(orphan))
	}
	if report.Deleted != 0 {
		t.Errorf("scan mode deleted %d blobs", report.Deleted)
	}

	// Scan mode touches nothing.
	if !f.store.Exists(indexed) || !f.store.Exists(orphan) {
		t.Error("scan mode removed a blob")
	}
}

func TestDeleteRemovesOnlyOrphans(t *testing.T) {
	f := newFixture(t)
	indexed := f.addIndexed(t, []byte("still referenced"))
	orphans := []blobstore.Hash{
		f.addOrphan(t, []byte("orphan one")),
		f.addOrphan(t, []byte("orphan two")),
	}

	report, err := f.rec.Run(context.Background(), Options{Mode: ModeDelete})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Deleted != 2 {
		t.Errorf("Deleted = %d, want 2", report.Deleted)
	}
	if !f.store.Exists(indexed) {
		t.Error("delete mode removed an indexed blob")
	}
	for _, hash := range orphans {
		if f.store.Exists(hash) {
			t.Errorf("orphan %s survived delete mode", blobstore.FormatHash(hash))
		}
	}
}

func TestSweepIgnoresStagingFiles(t *testing.T) {
	f := newFixture(t)

	// An in-flight upload's staging file must not be classified at
	// all: it is not yet content.
	staged, err := f.store.Stage(context.Background(), bytes.NewReader([]byte("mid-upload")), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer staged.Discard()

	report, err := f.rec.Run(context.Background(), Options{Mode: ModeDelete})
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 0 {
		t.Errorf("Scanned = %d, want 0 (staging files are invisible)", report.Scanned)
	}

	// The upload can still complete.
	if err := staged.Finalize(); err != nil {
		t.Errorf("Finalize failed after sweep: %v", err)
	}
}

func TestSweepReportsMalformedWithoutDeleting(t *testing.T) {
	f := newFixture(t)
	hash := f.addIndexed(t, []byte("real blob"))

	shardDir := filepath.Dir(f.store.BlobPath(hash))
	foreign := filepath.Join(shardDir, "README")
	if err := os.WriteFile(foreign, []byte("not ours"), 0o644); err != nil {
		t.Fatal(err)
	}

	report, err := f.rec.Run(context.Background(), Options{Mode: ModeDelete})
	if err != nil {
		t.Fatal(err)
	}
	if report.Malformed != 1 {
		t.Errorf("Malformed = %d, want 1", report.Malformed)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("delete mode removed a malformed-named file")
	}
}

func TestSweepHonorsLimit(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		f.addOrphan(t, []byte(fmt.Sprintf("orphan %d", i)))
	}

	report, err := f.rec.Run(context.Background(), Options{Mode: ModeDelete, Limit: 3})
	if err != nil {
		t.Fatal(err)
	}
	if report.Deleted != 3 {
		t.Errorf("Deleted = %d, want 3", report.Deleted)
	}
	if !report.Truncated {
		t.Error("Truncated = false with orphans left in the tree")
	}

	// A second unlimited run picks up the rest.
	report, err = f.rec.Run(context.Background(), Options{Mode: ModeDelete})
	if err != nil {
		t.Fatal(err)
	}
	if report.Deleted != 7 {
		t.Errorf("second run Deleted = %d, want 7", report.Deleted)
	}
	if report.Truncated {
		t.Error("Truncated = true after the tree was fully swept")
	}
}

// downIndex fails every membership query.
type downIndex struct{}

func (downIndex) Exists(ctx context.Context, hash blobstore.Hash) (bool, error) {
	return false, fmt.Errorf("database is locked")
}

func TestSweepAbortsWhenIndexUnavailable(t *testing.T) {
	base := t.TempDir()
	store, err := blobstore.NewStore(filepath.Join(base, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	staged, err := store.Stage(context.Background(), bytes.NewReader([]byte("present")), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := staged.Finalize(); err != nil {
		t.Fatal(err)
	}

	rec, err := New(Config{Store: store, Index: downIndex{}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = rec.Run(context.Background(), Options{Mode: ModeDelete})
	if err == nil {
		t.Fatal("sweep succeeded with an unavailable index")
	}

	// Nothing was deleted: an unanswerable index must not classify
	// blobs as orphaned.
	if !store.Exists(staged.Hash()) {
		t.Error("blob deleted while the index was unavailable")
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.rec.Run(context.Background(), Options{Mode: "prune"}); err == nil {
		t.Error("Run accepted an unknown mode")
	}
}

func TestRunRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.addOrphan(t, []byte("slow to classify"))

	started := make(chan struct{})
	release := make(chan struct{})
	blockingRec, err := New(Config{
		Store: f.store,
		Index: blockingIndex{started: started, release: release},
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := blockingRec.Run(context.Background(), Options{})
		done <- err
	}()

	<-started
	if _, err := blockingRec.Run(context.Background(), Options{}); !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("overlapping Run error = %v, want ErrSweepInProgress", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// After the first sweep finishes, Run is available again.
	if _, err := f.rec.Run(context.Background(), Options{}); err != nil {
		t.Errorf("Run after completed sweep failed: %v", err)
	}
}

// blockingIndex signals when queried, then blocks until released.
type blockingIndex struct {
	started chan struct{}
	release chan struct{}
}

func (x blockingIndex) Exists(ctx context.Context, hash blobstore.Hash) (bool, error) {
	select {
	case x.started <- struct{}{}:
	default:
	}
	<-x.release
	return true, nil
}

func TestSweepHonorsContext(t *testing.T) {
	f := newFixture(t)
	f.addOrphan(t, []byte("unreachable"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.rec.Run(ctx, Options{})
	if err == nil {
		t.Fatal("sweep succeeded with a cancelled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
