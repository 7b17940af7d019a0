// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/totorinodavid/docvault/cmd/docvault/cli"
	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/reconcile"
	"github.com/totorinodavid/docvault/lib/service"
)

func reconcileCommand() *cli.Command {
	var vault vaultFlags
	var doDelete bool
	var limit int

	return &cli.Command{
		Name:    "reconcile",
		Summary: "find and remove orphaned blobs",
		Description: "reconcile walks the blob store and classifies every blob\n" +
			"against the index. Blobs with no index record are orphans from\n" +
			"crashed uploads; by default they are only reported. Pass\n" +
			"--delete to remove them.",
		Usage: "docvault reconcile [flags]",
		Examples: []cli.Example{
			{
				Description: "report orphans without deleting",
				Command:     "docvault reconcile --root /srv/vault/blobs --db /srv/vault/index.db",
			},
			{
				Description: "delete up to 1000 orphans",
				Command:     "docvault reconcile --config /etc/docvault.yaml --delete --limit 1000",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
			vault.register(flags)
			flags.BoolVar(&doDelete, "delete", false, "delete orphaned blobs instead of reporting them")
			flags.IntVar(&limit, "limit", 0, "stop after this many orphans (0 = unlimited)")
			return flags
		},
		Run: func(args []string) error {
			store, index, cleanup, err := openVault(&vault)
			if err != nil {
				return err
			}
			defer cleanup()

			reconciler, err := reconcile.New(reconcile.Config{
				Store:  store,
				Index:  index,
				Logger: service.NewLogger(),
			})
			if err != nil {
				return err
			}

			mode := reconcile.ModeScan
			if doDelete {
				mode = reconcile.ModeDelete
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := reconciler.Run(ctx, reconcile.Options{
				Mode:  mode,
				Limit: limit,
			})
			if err != nil {
				return err
			}

			fmt.Printf("scanned:       %d\n", report.Scanned)
			fmt.Printf("orphans:       %d\n", len(report.Orphans))
			fmt.Printf("malformed:     %d\n", report.Malformed)
			if doDelete {
				fmt.Printf("deleted:       %d\n", report.Deleted)
				fmt.Printf("delete failed: %d\n", report.DeleteFailed)
			} else {
				for _, hash := range report.Orphans {
					fmt.Printf("  orphan %s\n", blobstore.FormatHash(hash))
				}
			}
			for _, hash := range report.Remaining {
				fmt.Printf("  undeleted %s\n", blobstore.FormatHash(hash))
			}
			if report.Truncated {
				fmt.Println("limit reached; run again to continue")
			}
			return nil
		},
	}
}
