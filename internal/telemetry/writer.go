package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends records as JSON lines to zstd-compressed files,
// rotating to a new file every TicksPerFile ticks of simulation time.
type JSONLZstdWriter struct {
	baseDir      string
	prefix       string
	ticksPerFile uint64

	mu      sync.Mutex
	curPart uint64
	open    bool
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
	failed  bool
}

// NewJSONLZstdWriter writes files named <prefix>-<part>.jsonl.zst under baseDir.
func NewJSONLZstdWriter(baseDir, prefix string, ticksPerFile uint64) *JSONLZstdWriter {
	if ticksPerFile == 0 {
		ticksPerFile = 1
	}
	return &JSONLZstdWriter{
		baseDir:      baseDir,
		prefix:       prefix,
		ticksPerFile: ticksPerFile,
	}
}

// Emit writes r, logging the first write failure and dropping records after it.
func (w *JSONLZstdWriter) Emit(r Record) {
	w.mu.Lock()
	failed := w.failed
	w.mu.Unlock()
	if failed {
		return
	}
	if err := w.Write(r.Tick, r); err != nil {
		w.mu.Lock()
		w.failed = true
		w.mu.Unlock()
		slog.Warn("telemetry write failed, dropping further records", "dir", w.baseDir, "error", err)
	}
}

// Write appends v as one JSON line to the file covering tick.
func (w *JSONLZstdWriter) Write(tick uint64, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	part := tick / w.ticksPerFile
	if !w.open || part != w.curPart {
		if err := w.rotateLocked(part); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines into the compressor.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Close flushes and closes the current file.
func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) rotateLocked(part uint64) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.PathFor(part), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curPart = part
	w.open = true
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.open = false
	return err1
}

// PathFor returns the file that holds records for the given part.
func (w *JSONLZstdWriter) PathFor(part uint64) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%05d.jsonl.zst", w.prefix, part))
}

// ReadFile decodes every record from one telemetry file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
