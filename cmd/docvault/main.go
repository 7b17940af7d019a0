// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Command docvault is the vault administration tool: reconcile the
// blob store against the index, export archives, and inspect vault
// statistics.
package main

import (
	"fmt"
	"os"

	"github.com/totorinodavid/docvault/cmd/docvault/commands"
)

func main() {
	if err := commands.Root().Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
