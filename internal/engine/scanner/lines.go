package scanner

import (
	"bufio"
	"errors"
	"io"
)

const readBufferSize = 32 * 1024

// lineReader yields lines without their terminators. Lines longer than max
// bytes are drained chunk by chunk and reported as oversize, so a single
// runaway line never grows the buffer past max.
type lineReader struct {
	br    *bufio.Reader
	max   int
	buf   []byte
	bytes int64
}

func newLineReader(r io.Reader, max int) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, readBufferSize), max: max}
}

// next returns the next line. The returned slice is only valid until the
// following call. io.EOF is returned once all lines have been read.
func (lr *lineReader) next() (line []byte, oversize bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		chunk, err := lr.br.ReadSlice('\n')
		lr.bytes += int64(len(chunk))
		if len(chunk) > 0 {
			read = true
		}

		n := len(chunk)
		if n > 0 && chunk[n-1] == '\n' {
			n--
		}
		if !oversize {
			if len(lr.buf)+n > lr.max {
				oversize = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk[:n]...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil:
			return trimCR(lr.buf), oversize, nil
		case errors.Is(err, io.EOF) && read:
			return trimCR(lr.buf), oversize, nil
		default:
			return nil, false, err
		}
	}
}

func trimCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
