// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/totorinodavid/docvault/lib/blobstore"
)

// Mode selects what the sweep does with orphaned blobs.
type Mode string

const (
	// ModeScan reports orphans without touching the filesystem.
	ModeScan Mode = "scan"

	// ModeDelete removes orphaned blobs from the shard tree.
	ModeDelete Mode = "delete"
)

// ErrSweepInProgress is returned by Run when another sweep on the
// same Reconciler has not finished.
var ErrSweepInProgress = errors.New("reconcile: sweep already in progress")

// Options configures a single sweep.
type Options struct {
	// Mode is scan or delete. Defaults to ModeScan.
	Mode Mode

	// Limit caps how many orphans the sweep acts on (collects in
	// scan mode, deletes in delete mode). Zero means unlimited. When
	// the limit stops the sweep early, Report.Truncated is true.
	Limit int
}

// remainingSampleSize bounds Report.Remaining so a sweep over a badly
// drifted store cannot accumulate an unbounded hash list.
const remainingSampleSize = 16

// Report summarizes a sweep.
type Report struct {
	// Scanned is the number of shard-tree entries visited.
	Scanned int

	// Orphans holds the hashes of valid-named blobs with no index
	// record, at most Limit of them.
	Orphans []blobstore.Hash

	// Malformed is the number of leaf files whose names are not
	// valid content hashes. These are never deleted; they were not
	// written by the store and need operator attention.
	Malformed int

	// Deleted is the number of orphaned blobs removed (delete mode).
	Deleted int

	// DeleteFailed is the number of orphans whose removal failed.
	DeleteFailed int

	// Remaining is a bounded sample of orphan hashes still on disk
	// after a delete sweep (removal failed). Empty in scan mode.
	Remaining []blobstore.Hash

	// Truncated reports that the sweep stopped at the limit with
	// more of the tree unvisited.
	Truncated bool
}

// IndexChecker answers membership queries during a sweep.
// *docindex.SQLiteIndex satisfies it.
type IndexChecker interface {
	Exists(ctx context.Context, hash blobstore.Hash) (bool, error)
}

// Reconciler runs sweeps over one store/index pair. At most one sweep
// runs at a time per Reconciler; overlapping Run calls return
// ErrSweepInProgress.
type Reconciler struct {
	store   *blobstore.Store
	index   IndexChecker
	logger  *slog.Logger
	running atomic.Bool
}

// Config holds the parameters for creating a Reconciler.
type Config struct {
	// Store is the blob store to sweep. Required.
	Store *blobstore.Store

	// Index answers membership queries. Required.
	Index IndexChecker

	// Logger receives per-orphan and summary messages. If nil, a
	// no-op logger is used.
	Logger *slog.Logger
}

// New creates a Reconciler.
func New(cfg Config) (*Reconciler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("reconcile: Store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("reconcile: Index is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Reconciler{
		store:  cfg.Store,
		index:  cfg.Index,
		logger: logger,
	}, nil
}

// Run performs one sweep and returns its report. An index query
// failure aborts the sweep: a dead index would classify every blob as
// orphaned, and in delete mode that empties the store.
//
// The partial report accumulated before an abort is returned along
// with the error.
func (r *Reconciler) Run(ctx context.Context, opts Options) (Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Report{}, ErrSweepInProgress
	}
	defer r.running.Store(false)

	mode := opts.Mode
	if mode == "" {
		mode = ModeScan
	}
	if mode != ModeScan && mode != ModeDelete {
		return Report{}, fmt.Errorf("reconcile: unknown mode %q", mode)
	}

	var report Report
	err := r.store.WalkBlobs(func(file blobstore.BlobFile) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++

		if !file.Valid {
			report.Malformed++
			r.logger.Warn("malformed file in shard tree",
				"path", file.Path,
			)
			return nil
		}

		exists, err := r.index.Exists(ctx, file.Hash)
		if err != nil {
			return fmt.Errorf("index query for %s: %w", file.Name, err)
		}
		if exists {
			return nil
		}

		report.Orphans = append(report.Orphans, file.Hash)
		if mode == ModeDelete {
			if err := r.store.Remove(file.Hash); err != nil {
				report.DeleteFailed++
				if len(report.Remaining) < remainingSampleSize {
					report.Remaining = append(report.Remaining, file.Hash)
				}
				r.logger.Error("orphan delete failed",
					"hash", file.Name,
					"error", err,
				)
			} else {
				report.Deleted++
				r.logger.Info("orphan deleted", "hash", file.Name)
			}
		} else {
			r.logger.Info("orphan found", "hash", file.Name)
		}

		if opts.Limit > 0 && len(report.Orphans) >= opts.Limit {
			report.Truncated = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("reconcile: sweep aborted: %w", err)
	}

	r.logger.Info("sweep complete",
		"mode", string(mode),
		"scanned", report.Scanned,
		"orphans", len(report.Orphans),
		"malformed", report.Malformed,
		"deleted", report.Deleted,
		"delete_failed", report.DeleteFailed,
		"truncated", report.Truncated,
	)
	return report, nil
}
