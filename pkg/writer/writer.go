// Package writer renders sieve results as text or JSON into a possibly
// compressed file or stdout.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prime-sieve/pkg/compression"
	apperrors "github.com/prime-sieve/pkg/errors"
	"github.com/prime-sieve/pkg/model"
)

// Format selects the rendering of a result.
type Format string

const (
	// FormatText prints one prime per line, or the bare count.
	FormatText Format = "text"
	// FormatJSON prints a model.SieveResult document.
	FormatJSON Format = "json"
)

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON:
		return Format(s), nil
	case "":
		return FormatText, nil
	default:
		return "", apperrors.New(apperrors.CodeOutputError, fmt.Sprintf("unsupported output format: %q", s))
	}
}

// ============================================================================
// Sink
// ============================================================================

// Sink is a buffered, optionally compressed destination. Close flushes every
// layer in order and closes the file if one was opened.
type Sink struct {
	buf   *bufio.Writer
	comp  io.WriteCloser
	file  *os.File
	count int64
}

// Open returns a Sink writing to path, or to stdout when path is "" or "-".
func Open(path string, typ compression.Type) (*Sink, error) {
	var dst io.Writer = os.Stdout
	var file *os.File
	if path != "" && path != "-" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, apperrors.Wrap(apperrors.CodeOutputError, "failed to create output directory", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeOutputError, "failed to create output file", err)
		}
		dst, file = f, f
	}

	s, err := NewSink(dst, typ)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	s.file = file
	return s, nil
}

// NewSink wraps an existing writer. Close does not close w.
func NewSink(w io.Writer, typ compression.Type) (*Sink, error) {
	comp, err := compression.NewWriter(w, typ, compression.LevelDefault)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeOutputError, "failed to open compressor", err)
	}
	return &Sink{
		buf:  bufio.NewWriterSize(comp, 64*1024),
		comp: comp,
	}, nil
}

// Write implements io.Writer.
func (s *Sink) Write(p []byte) (int, error) {
	n, err := s.buf.Write(p)
	s.count += int64(n)
	return n, err
}

// BytesWritten returns the number of uncompressed bytes written.
func (s *Sink) BytesWritten() int64 {
	return s.count
}

// Close flushes and closes the sink.
func (s *Sink) Close() error {
	var firstErr error
	if err := s.buf.Flush(); err != nil {
		firstErr = err
	}
	if err := s.comp.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return apperrors.Wrap(apperrors.CodeOutputError, "failed to close output", firstErr)
	}
	return nil
}

// ============================================================================
// Result rendering
// ============================================================================

// WritePrimes writes one decimal prime per line.
func WritePrimes(w io.Writer, primes []uint64) error {
	line := make([]byte, 0, 24)
	for _, p := range primes {
		line = strconv.AppendUint(line[:0], p, 10)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return apperrors.Wrap(apperrors.CodeOutputError, "failed to write primes", err)
		}
	}
	return nil
}

// WriteResult renders r in the given format. In text format a count-mode
// result prints just the count, a generate-mode result prints the list.
func WriteResult(w io.Writer, format Format, r *model.SieveResult) error {
	switch format {
	case FormatJSON:
		if err := WriteJSON(w, r); err != nil {
			return apperrors.Wrap(apperrors.CodeOutputError, "failed to encode result", err)
		}
		return nil
	case FormatText:
		if r.Mode == model.RunModeCount.String() {
			if _, err := fmt.Fprintln(w, r.Count); err != nil {
				return apperrors.Wrap(apperrors.CodeOutputError, "failed to write count", err)
			}
			return nil
		}
		return WritePrimes(w, r.Primes)
	default:
		return apperrors.New(apperrors.CodeOutputError, fmt.Sprintf("unsupported output format: %q", format))
	}
}
