// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides shared runtime plumbing for docvault
// binaries: the HTTP server lifecycle with graceful shutdown, and the
// standard structured logger.
package service
