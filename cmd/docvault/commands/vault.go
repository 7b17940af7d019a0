// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/config"
	"github.com/totorinodavid/docvault/lib/docindex"
	"github.com/totorinodavid/docvault/lib/service"
)

// vaultFlags are the location flags shared by every subcommand.
// Explicit --root/--db win over the config file; the config file is
// read from --config or DOCVAULT_CONFIG.
type vaultFlags struct {
	configPath string
	root       string
	db         string
}

func (vf *vaultFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&vf.configPath, "config", "", "path to docvault.yaml (default: $DOCVAULT_CONFIG)")
	flags.StringVar(&vf.root, "root", "", "blob store root directory")
	flags.StringVar(&vf.db, "db", "", "metadata index database file")
}

// resolve determines the store root and index path from flags and
// configuration.
func (vf *vaultFlags) resolve() (rootDir, dbPath string, err error) {
	rootDir = vf.root
	dbPath = vf.db
	if rootDir != "" && dbPath != "" {
		return rootDir, dbPath, nil
	}

	configPath := vf.configPath
	if configPath == "" {
		configPath = os.Getenv("DOCVAULT_CONFIG")
	}
	if configPath == "" {
		return "", "", fmt.Errorf("no vault location: pass --root and --db, or point --config/DOCVAULT_CONFIG at a config file")
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return "", "", fmt.Errorf("loading %s: %w", configPath, err)
	}
	if rootDir == "" {
		rootDir = cfg.Storage.Root
	}
	if dbPath == "" {
		dbPath = cfg.Index.Path
	}
	return rootDir, dbPath, nil
}

// openVault opens the blob store and index for a subcommand. The
// returned cleanup closes the index.
func openVault(vf *vaultFlags) (*blobstore.Store, *docindex.SQLiteIndex, func(), error) {
	rootDir, dbPath, err := vf.resolve()
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := blobstore.NewStore(rootDir)
	if err != nil {
		return nil, nil, nil, err
	}

	index, err := docindex.OpenIndex(docindex.IndexConfig{
		Path:   dbPath,
		Logger: service.NewLogger(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	return store, index, func() { index.Close() }, nil
}
