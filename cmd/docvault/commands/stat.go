// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/totorinodavid/docvault/cmd/docvault/cli"
	"github.com/totorinodavid/docvault/lib/blobstore"
)

func statCommand() *cli.Command {
	var vault vaultFlags

	return &cli.Command{
		Name:    "stat",
		Summary: "show vault statistics",
		Description: "stat reports the number of indexed documents, their total\n" +
			"size, and the number of blobs on disk. A blob count above the\n" +
			"document count suggests orphans; run reconcile to confirm.",
		Usage: "docvault stat [flags]",
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("stat", pflag.ContinueOnError)
			vault.register(flags)
			return flags
		},
		Run: func(args []string) error {
			store, index, cleanup, err := openVault(&vault)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := context.Background()
			count, err := index.Count(ctx)
			if err != nil {
				return err
			}

			records, err := index.List(ctx)
			if err != nil {
				return err
			}
			var totalBytes int64
			for _, record := range records {
				totalBytes += record.Size
			}

			var blobs, malformed int
			err = store.WalkBlobs(func(file blobstore.BlobFile) error {
				if file.Valid {
					blobs++
				} else {
					malformed++
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Printf("documents:       %d\n", count)
			fmt.Printf("document bytes:  %d\n", totalBytes)
			fmt.Printf("blobs on disk:   %d\n", blobs)
			if malformed > 0 {
				fmt.Printf("malformed files: %d\n", malformed)
			}
			return nil
		},
	}
}
