package file

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/hejijunhao/sleuth/internal/model"
	"github.com/hejijunhao/sleuth/internal/output"
)

const defaultBufSize = 64 * 1024 // 64KB

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation. For gzip files the uncompressed size counts.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithPretty indents each report.
func WithPretty(pretty bool) Option {
	return func(o *Output) { o.pretty = pretty }
}

// Output appends one JSON report per Write to a file with buffered I/O and
// optional size-based rotation. Paths ending in ".gz" are gzip-compressed;
// every open appends a new gzip member.
type Output struct {
	mu      sync.Mutex
	f       *os.File
	buf     *bufio.Writer
	gz      *gzip.Writer // nil for plain files
	w       io.Writer
	path    string
	pretty  bool
	maxSize int64 // 0 = no rotation
	written int64
	bufSize int
}

// New creates a file output that writes JSON reports to the given path.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{
		path:    path,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.openFile(); err != nil {
		return nil, err
	}
	return o, nil
}

// Write JSON-encodes the report and appends it to the file.
func (o *Output) Write(_ context.Context, r model.Report) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var data bytes.Buffer
	if err := output.EncodeJSON(&data, r, o.pretty); err != nil {
		return fmt.Errorf("file output: marshal: %w", err)
	}

	if o.maxSize > 0 && o.written > 0 && o.written+int64(data.Len()) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate: %w", err)
		}
	}

	n, err := o.w.Write(data.Bytes())
	o.written += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write: %w", err)
	}
	return nil
}

// Close flushes the buffers and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.flush(); err != nil {
		o.f.Close()
		return fmt.Errorf("file output: flush: %w", err)
	}
	return o.f.Close()
}

func (o *Output) compressed() bool {
	return strings.HasSuffix(o.path, ".gz")
}

// openFile opens (or creates) the output file and layers the buffer and,
// for .gz paths, the compressor on top.
func (o *Output) openFile() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file output: open %s: %w", o.path, err)
	}
	o.f = f
	o.buf = bufio.NewWriterSize(f, o.bufSize)
	o.w = o.buf
	o.gz = nil
	o.written = 0
	if o.compressed() {
		o.gz = gzip.NewWriter(o.buf)
		o.w = o.gz
		return nil
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: stat %s: %w", o.path, err)
	}
	o.written = info.Size()
	return nil
}

// flush closes the gzip member, if any, and drains the buffer.
func (o *Output) flush() error {
	if o.gz != nil {
		if err := o.gz.Close(); err != nil {
			return err
		}
	}
	return o.buf.Flush()
}

// rotate flushes, closes the current file, renames it to {path}.1
// (shifting existing rotated files), and opens a new file.
func (o *Output) rotate() error {
	if err := o.flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}

	// Shift existing rotated files: .2 → .3, .1 → .2, current → .1
	for i := 9; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", o.path, i)
		to := fmt.Sprintf("%s.%d", o.path, i+1)
		os.Rename(from, to) // missing files are fine
	}
	if err := os.Rename(o.path, o.path+".1"); err != nil {
		return err
	}
	return o.openFile()
}
