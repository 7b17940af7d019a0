// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func testTree(t *testing.T, ran *string) *Command {
	t.Helper()
	return &Command{
		Name: "docvault",
		Subcommands: []*Command{
			{
				Name:    "reconcile",
				Summary: "sweep the store",
				Flags: func() *pflag.FlagSet {
					flags := pflag.NewFlagSet("reconcile", pflag.ContinueOnError)
					flags.Bool("delete", false, "")
					return flags
				},
				Run: func(args []string) error {
					*ran = "reconcile"
					return nil
				},
			},
			{
				Name:    "stat",
				Summary: "show statistics",
				Run: func(args []string) error {
					*ran = "stat"
					return nil
				},
			},
		},
	}
}

func TestDispatchToSubcommand(t *testing.T) {
	var ran string
	root := testTree(t, &ran)

	if err := root.Execute([]string{"reconcile", "--delete"}); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if ran != "reconcile" {
		t.Errorf("ran = %q, want reconcile", ran)
	}
}

func TestUnknownCommandSuggestion(t *testing.T) {
	var ran string
	root := testTree(t, &ran)

	err := root.Execute([]string{"reconsile"})
	if err == nil {
		t.Fatal("Execute accepted an unknown command")
	}
	if !strings.Contains(err.Error(), `"reconcile"`) {
		t.Errorf("error lacks suggestion: %v", err)
	}
}

func TestUnknownFlagSuggestion(t *testing.T) {
	var ran string
	root := testTree(t, &ran)

	err := root.Execute([]string{"reconcile", "--delte"})
	if err == nil {
		t.Fatal("Execute accepted an unknown flag")
	}
	if !strings.Contains(err.Error(), "--delete") {
		t.Errorf("error lacks flag suggestion: %v", err)
	}
}

func TestBareRootRequiresSubcommand(t *testing.T) {
	var ran string
	root := testTree(t, &ran)

	if err := root.Execute(nil); err == nil {
		t.Error("Execute succeeded without a subcommand")
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "stat", 4},
		{"stat", "stat", 0},
		{"stta", "stat", 2},
		{"export", "exprot", 2},
	}
	for _, c := range cases {
		if got := levenshtein(c.a, c.b); got != c.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
