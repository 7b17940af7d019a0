// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Command docvault-service is the document upload service: an HTTP
// front over the blob store and metadata index. Clients POST document
// payloads and get back content-addressed records; identical content
// is stored once no matter how many clients upload it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/totorinodavid/docvault/lib/blobstore"
	"github.com/totorinodavid/docvault/lib/clock"
	"github.com/totorinodavid/docvault/lib/config"
	"github.com/totorinodavid/docvault/lib/docindex"
	"github.com/totorinodavid/docvault/lib/ingest"
	"github.com/totorinodavid/docvault/lib/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flags := pflag.NewFlagSet("docvault-service", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to docvault.yaml (default: $DOCVAULT_CONFIG)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	shutdownTimeout, err := cfg.ParseShutdownTimeout()
	if err != nil {
		return err
	}

	logger := service.NewLogger()

	store, err := blobstore.NewStore(cfg.Storage.Root)
	if err != nil {
		return err
	}

	index, err := docindex.OpenIndex(docindex.IndexConfig{
		Path:     cfg.Index.Path,
		PoolSize: cfg.Index.PoolSize,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer index.Close()

	ingestor, err := ingest.New(ingest.Config{
		Store:          store,
		Index:          index,
		Clock:          clock.Real(),
		Logger:         logger,
		MaxUploadBytes: cfg.Service.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	handler := newHandler(handlerConfig{
		Ingestor: ingestor,
		Index:    index,
		Store:    store,
		Logger:   logger,
	})

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Service.ListenAddress,
		Handler:         handler,
		ShutdownTimeout: shutdownTimeout,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Serve(ctx)
}
