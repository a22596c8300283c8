package csvfile

import (
	"bufio"
	"io"
)

// utf8BOM is the byte-order mark some exports prefix to UTF-8 files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// stripBOM removes a leading UTF-8 BOM from the stream, if present.
func stripBOM(r *bufio.Reader) *bufio.Reader {
	head, err := r.Peek(len(utf8BOM))
	if err == nil && head[0] == utf8BOM[0] && head[1] == utf8BOM[1] && head[2] == utf8BOM[2] {
		r.Discard(len(utf8BOM))
	}
	return r
}

// escapeNormalizer rewrites backslash-escaped quotes (\") into the standard
// doubled-quote convention ("") so encoding/csv can parse files exported
// with backslash escaping. The rewrite is byte-for-byte length preserving
// and never touches newlines, so record boundaries and line numbers are
// identical to the raw file.
//
// A lone backslash not followed by a quote passes through unchanged; the
// detection heuristic only selects this mode for files where \" is the
// escape convention in use.
type escapeNormalizer struct {
	src     *bufio.Reader
	pending bool // a second quote byte is owed to the caller
}

func newEscapeNormalizer(src *bufio.Reader) *escapeNormalizer {
	return &escapeNormalizer{src: src}
}

// Read implements io.Reader.
func (e *escapeNormalizer) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if e.pending {
			p[n] = '"'
			e.pending = false
			n++
			continue
		}

		b, err := e.src.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		if b == '\\' {
			next, perr := e.src.Peek(1)
			if perr == nil && next[0] == '"' {
				e.src.Discard(1)
				p[n] = '"'
				e.pending = true
				n++
				continue
			}
		}

		p[n] = b
		n++
	}
	return n, nil
}

// Ensure escapeNormalizer implements io.Reader.
var _ io.Reader = (*escapeNormalizer)(nil)
