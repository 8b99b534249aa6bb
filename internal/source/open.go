package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	utf8BOM   = []byte{0xef, 0xbb, 0xbf}
	utf16LE   = []byte{0xff, 0xfe}
	utf16BE   = []byte{0xfe, 0xff}
)

// Open opens path for line scanning. Gzip and zstd files (rotated logs) are
// decompressed, and UTF-16 files with a byte order mark are decoded to
// UTF-8. Detection uses content, not the file name. Any other content is
// returned as is, so invalid UTF-8 reaches the scanner unchanged.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	rc, err := wrap(f, f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	return rc, nil
}

// wrap layers decompression and decoding over r. closer is closed last.
func wrap(r io.Reader, closer io.Closer) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return decode(zr, closers{zr, closer})
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return decode(zr, closers{zstdCloser{zr}, closer})
	}
	return decode(br, closers{closer})
}

// decode strips a UTF-8 byte order mark and converts UTF-16 to UTF-8.
func decode(r io.Reader, c closers) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, utf8BOM):
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	case bytes.HasPrefix(head, utf16LE), bytes.HasPrefix(head, utf16BE):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return readCloser{transform.NewReader(br, dec), c}, nil
	}
	return readCloser{br, c}, nil
}

type readCloser struct {
	io.Reader
	closers
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
