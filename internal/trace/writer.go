/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package trace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/substrate-run/substrate/metrics"
)

// Writer appends spans to a JSONL sink and performs best-effort,
// size-triggered rotation (spec §4.1, §6.1). Rotation renames the current
// file to "<path>.1" and opens a fresh file at <path>; any other process
// already holding the old path open keeps appending to the renamed file
// through its own descriptor, so no span is ever lost mid-write.
type Writer struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	written  int64
	file     *os.File
	fsync    bool
	raw      bool
	metrics  *metrics.TraceMetrics
}

// NewWriter opens (creating if absent) the trace file at path with mode
// 0o600, creating parent directories as needed. maxBytes <= 0 disables
// rotation.
func NewWriter(path string, maxBytes int64, fsync, raw bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("trace: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("trace: open log file: %w", err)
	}
	info, err := f.Stat()
	written := int64(0)
	if err == nil {
		written = info.Size()
	}
	return &Writer{
		path:     path,
		maxBytes: maxBytes,
		written:  written,
		file:     f,
		fsync:    fsync,
		raw:      raw,
	}, nil
}

// SetMetrics wires a TraceMetrics instance; nil is safe and disables
// instrumentation.
func (w *Writer) SetMetrics(m *metrics.TraceMetrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = m
}

// Raw reports whether this writer bypasses redaction (SHIM_LOG_OPTS=raw).
// Exposed so callers can decide whether to pre-redact Command/Argv
// themselves before calling Emit.
func (w *Writer) Raw() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.raw
}

// Emit appends one span as a single JSON line. Per spec §4.1, a write
// failure is surfaced to the caller but must never itself abort the
// command that triggered it — callers are expected to log the error and
// continue. There is no in-memory fallback: when the log cannot be opened
// at shell startup, the shell runs without a writer and its spans are not
// recorded.
func (w *Writer) Emit(span Span) error {
	if span.TS == "" {
		span.TS = Now()
	}
	if !w.Raw() {
		span.Command = Redact(span.Command)
		span.Argv = RedactArgv(span.Argv)
	}

	line, err := json.Marshal(span)
	if err != nil {
		return fmt.Errorf("trace: marshal span: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.written+int64(len(line)) > w.maxBytes {
		if err := w.rotate(); err != nil {
			// Rotation failure is a local-recovery case (spec §7): keep
			// writing to the existing file rather than losing the span.
			fmt.Fprintf(os.Stderr, "substrate: trace log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(line)
	if err != nil {
		if w.metrics != nil {
			w.metrics.WriteErrors.Inc()
		}
		return fmt.Errorf("trace: write span: %w", err)
	}
	w.written += int64(n)

	if w.fsync {
		_ = w.file.Sync()
	}

	if w.metrics != nil {
		w.metrics.SpansWritten.WithLabelValues(string(span.EventType)).Inc()
	}
	return nil
}

func (w *Writer) rotate() error {
	rotatedPath := w.path + ".1"
	_ = os.Rename(w.path, rotatedPath)

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	old := w.file
	w.file = f
	w.written = 0
	if old != nil {
		_ = old.Close()
	}
	if w.metrics != nil {
		w.metrics.RotationsTotal.Inc()
	}
	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
