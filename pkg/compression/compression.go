// Package compression wraps output streams with gzip or zstd.
package compression

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Type represents the compression algorithm used.
type Type uint8

const (
	// TypeNone writes the stream unchanged.
	TypeNone Type = iota
	// TypeGzip uses gzip compression.
	TypeGzip
	// TypeZstd uses zstd compression.
	TypeZstd
)

// String returns the configuration name of the type.
func (t Type) String() string {
	switch t {
	case TypeGzip:
		return "gzip"
	case TypeZstd:
		return "zstd"
	default:
		return "none"
	}
}

// Extension returns the conventional file suffix, including the dot.
func (t Type) Extension() string {
	switch t {
	case TypeGzip:
		return ".gz"
	case TypeZstd:
		return ".zst"
	default:
		return ""
	}
}

// ParseType parses "none", "gzip" or "zstd".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TypeNone, nil
	case "gzip", "gz":
		return TypeGzip, nil
	case "zstd", "zst":
		return TypeZstd, nil
	default:
		return TypeNone, fmt.Errorf("unknown compression type: %q", s)
	}
}

// Level represents the compression level.
type Level int

const (
	// LevelFastest prioritizes speed over compression ratio
	LevelFastest Level = 1
	// LevelDefault balances speed and compression ratio
	LevelDefault Level = 3
	// LevelBest prioritizes compression ratio over speed
	LevelBest Level = 9
)

// ============================================================================
// Writers
// ============================================================================

// NewWriter wraps w so that everything written is compressed with t. Closing
// the returned writer flushes the compressor but does not close w.
func NewWriter(w io.Writer, t Type, level Level) (io.WriteCloser, error) {
	switch t {
	case TypeNone:
		return nopWriteCloser{w}, nil
	case TypeGzip:
		gzLevel := gzip.DefaultCompression
		switch level {
		case LevelFastest:
			gzLevel = gzip.BestSpeed
		case LevelBest:
			gzLevel = gzip.BestCompression
		}
		gw, err := gzip.NewWriterLevel(w, gzLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	case TypeZstd:
		zLevel := zstd.SpeedDefault
		switch level {
		case LevelFastest:
			zLevel = zstd.SpeedFastest
		case LevelBest:
			zLevel = zstd.SpeedBestCompression
		}
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zLevel))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// ============================================================================
// Readers
// ============================================================================

// NewReader wraps r with a decompressor for t.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case TypeNone:
		return io.NopCloser(r), nil
	case TypeGzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gr, nil
	case TypeZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zstdReadCloser{zr}, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", t)
	}
}

// zstd.Decoder.Close has no error result.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// ============================================================================
// Auto-Detection
// ============================================================================

// DetectType detects the compression type from magic bytes.
// Returns TypeGzip for gzip (0x1f 0x8b), TypeZstd for zstd (0x28 0xb5 0x2f 0xfd)
// and TypeNone otherwise.
func DetectType(data []byte) Type {
	if len(data) >= 4 && data[0] == 0x28 && data[1] == 0xb5 && data[2] == 0x2f && data[3] == 0xfd {
		return TypeZstd
	}
	if len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b {
		return TypeGzip
	}
	return TypeNone
}

// NewAutoReader sniffs the first bytes of r and returns a matching decompressor.
func NewAutoReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read magic bytes: %w", err)
	}
	return NewReader(br, DetectType(magic))
}
