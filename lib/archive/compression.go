// Copyright 2026 The Docvault Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the stream compression wrapped around the tar
// output.
type Compression string

const (
	// CompressionNone writes the tar stream uncompressed.
	CompressionNone Compression = "none"

	// CompressionLZ4 wraps the stream in an lz4 frame. Fast with a
	// modest ratio; the default for mixed content.
	CompressionLZ4 Compression = "lz4"

	// CompressionZstd wraps the stream in a zstd frame at the
	// default level. Better ratios for text-heavy vaults.
	CompressionZstd Compression = "zstd"
)

// ParseCompression parses a compression name as given on the command
// line.
func ParseCompression(name string) (Compression, error) {
	switch Compression(name) {
	case CompressionNone, CompressionLZ4, CompressionZstd:
		return Compression(name), nil
	default:
		return "", fmt.Errorf("archive: unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// nopWriteCloser adapts the uncompressed path to the WriteCloser the
// exporter expects. Close does not close the underlying writer; the
// caller owns it.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// wrapWriter returns w wrapped in the selected compression. The
// returned WriteCloser must be closed to flush the compression frame;
// closing it never closes w itself.
func wrapWriter(w io.Writer, compression Compression) (io.WriteCloser, error) {
	switch compression {
	case CompressionNone, "":
		return nopWriteCloser{w}, nil

	case CompressionLZ4:
		return lz4.NewWriter(w), nil

	case CompressionZstd:
		encoder, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("archive: zstd writer: %w", err)
		}
		return encoder, nil

	default:
		return nil, fmt.Errorf("archive: unknown compression %q", compression)
	}
}

// OpenReader unwraps a compressed archive stream for reading. Used by
// tests and by tooling that inspects exports.
func OpenReader(r io.Reader, compression Compression) (io.Reader, error) {
	switch compression {
	case CompressionNone, "":
		return r, nil

	case CompressionLZ4:
		return lz4.NewReader(r), nil

	case CompressionZstd:
		decoder, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("archive: zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil

	default:
		return nil, fmt.Errorf("archive: unknown compression %q", compression)
	}
}
