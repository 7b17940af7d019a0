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
	"github.com/totorinodavid/docvault/lib/archive"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/service"
)

func exportCommand() *cli.Command {
	var vault vaultFlags
	var output string
	var compression string

	return &cli.Command{
		Name:    "export",
		Summary: "export the vault as a tar archive",
		Description: "export writes every indexed document to a tar archive with\n" +
			"a CBOR manifest. Blobs are re-hashed on the way out, so a\n" +
			"successful export certifies the store's integrity.",
		Usage: "docvault export [flags]",
		Examples: []cli.Example{
			{
				Description: "zstd-compressed archive to a file",
				Command:     "docvault export --config /etc/docvault.yaml --output vault.tar.zst --compression zstd",
			},
			{
				Description: "uncompressed archive to stdout",
				Command:     "docvault export --root ./blobs --db ./index.db --output -",
			},
		},
		Flags: func() *pflag.FlagSet {
			flags := pflag.NewFlagSet("export", pflag.ContinueOnError)
			vault.register(flags)
			flags.StringVar(&output, "output", "", "archive file to write (\"-\" for stdout)")
			flags.StringVar(&compression, "compression", "none", "archive compression: none, lz4, or zstd")
			return flags
		},
		Run: func(args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			algorithm, err := archive.ParseCompression(compression)
			if err != nil {
				return err
			}

			store, index, cleanup, err := openVault(&vault)
			if err != nil {
				return err
			}
			defer cleanup()

			exporter, err := archive.New(archive.Config{
				Store:  store,
				Index:  index,
				Clock:  clock.Real(),
				Logger: service.NewLogger(),
			})
			if err != nil {
				return err
			}

			out := os.Stdout
			if output != "-" {
				out, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer out.Close()
			}

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			summary, err := exporter.Export(ctx, out, archive.Options{
				Compression: algorithm,
			})
			if err != nil {
				if output != "-" {
					os.Remove(output)
				}
				return err
			}

			fmt.Fprintf(os.Stderr, "exported %d documents (%d bytes)\n",
				summary.Documents, summary.Bytes)
			return nil
		},
	}
}
