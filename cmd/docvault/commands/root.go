// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the docvault command tree.
package commands

import (
	"github.com/totorinodavid/docvault/cmd/docvault/cli"
)

// Root returns the top-level docvault command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "docvault",
		Summary: "administer a docvault content store",
		Description: "docvault administers a content-addressed document vault:\n" +
			"reconcile the blob store against the metadata index, export\n" +
			"portable archives, and inspect vault statistics.",
		Subcommands: []*cli.Command{
			reconcileCommand(),
			exportCommand(),
			statCommand(),
		},
	}
}
