package csvfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

const (
	// headSampleSize is read from the file start for detection.
	headSampleSize = 32 * 1024

	// extraSampleSize is read from the middle and near the end.
	extraSampleSize = 16 * 1024

	// midSampleThreshold is the file size above which a middle sample is
	// taken. Escape anomalies (embedded HTML/JSON with \" sequences) often
	// appear only in later rows; sampling only the head would misdetect
	// the escape style for the whole file.
	midSampleThreshold = 100 * 1000

	// endSampleThreshold is the file size above which an end sample is taken.
	endSampleThreshold = 50 * 1000
)

// Ensure Reader implements the Table port.
var _ driven.Table = (*Reader)(nil)

// Reader streams one delimited file. Construction runs delimiter and
// escape-style detection; headers and row count are computed lazily and
// cached for the Reader's lifetime. Not safe for concurrent use: each diff
// invocation owns its Readers exclusively.
type Reader struct {
	path string
	opts domain.TableOptions

	headerDelim     rune
	dataDelim       rune
	backslashEscape bool
	warnings        []string

	headers  []string
	rowCount int
	counted  bool
}

// Open constructs a Reader for path, sampling the file to detect the field
// delimiter (unless forced via opts) and the quote-escape style.
func Open(path string, opts domain.TableOptions) (*Reader, error) {
	r := &Reader{
		path:        path,
		opts:        opts,
		headerDelim: opts.Delimiter,
		dataDelim:   opts.Delimiter,
	}
	if err := r.detect(); err != nil {
		return nil, err
	}
	return r, nil
}

// Opener implements driven.TableOpener backed by this package.
type Opener struct{}

// Ensure Opener implements the port.
var _ driven.TableOpener = Opener{}

// Open implements driven.TableOpener.
func (Opener) Open(path string, opts domain.TableOptions) (driven.Table, error) {
	return Open(path, opts)
}

// detect samples the file and fixes the escape style and delimiters.
func (r *Reader) detect() error {
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", r.path, err)
	}
	defer f.Close()

	head := make([]byte, headSampleSize)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return fmt.Errorf("sampling %s: %w", r.path, err)
	}
	head = head[:n]

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", r.path, err)
	}
	size := info.Size()

	sample := append([]byte(nil), head...)
	if size > midSampleThreshold {
		if chunk := sampleAt(f, size/2); chunk != nil {
			sample = append(sample, chunk...)
		}
	}
	if size > endSampleThreshold {
		if chunk := sampleAt(f, max(0, size-extraSampleSize)); chunk != nil {
			sample = append(sample, chunk...)
		}
	}

	// Escape style: \" without any "" means backslash escaping. When both
	// appear, the doubled-quote convention wins; backslash-quote shows up
	// incidentally inside standard-quoted content.
	hasDoubled := bytes.Contains(sample, []byte(`""`))
	hasBackslash := bytes.Contains(sample, []byte(`\"`))
	if hasBackslash && !hasDoubled {
		r.backslashEscape = true
		logger.Debug("Detected backslash escape mode in %s", filepath.Base(r.path))
	}

	if r.opts.Delimiter != 0 {
		return nil
	}

	lines := strings.SplitN(string(head), "\n", 3)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		// Empty file: default everything to comma.
		r.headerDelim = ','
		r.dataDelim = ','
		return nil
	}

	r.headerDelim = dominantDelimiter(lines[0])
	if len(lines) > 1 && lines[1] != "" {
		r.dataDelim = dominantDelimiter(lines[1])
		if r.dataDelim != r.headerDelim {
			w := fmt.Sprintf("delimiter mismatch in %s: header uses %q, data uses %q",
				filepath.Base(r.path), r.headerDelim, r.dataDelim)
			r.warnings = append(r.warnings, w)
			logger.Warn("%s", w)
		}
	} else {
		r.dataDelim = r.headerDelim
	}
	return nil
}

// sampleAt reads one detection chunk starting at the first full line after
// offset. Returns nil on any seek/read problem; sampling is best effort.
func sampleAt(f *os.File, offset int64) []byte {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil
	}
	br := bufio.NewReader(f)
	// Skip the partial line the offset landed in.
	if _, err := br.ReadString('\n'); err != nil {
		return nil
	}
	chunk := make([]byte, extraSampleSize)
	n, _ := io.ReadFull(br, chunk)
	return chunk[:n]
}

// dominantDelimiter picks tab when a line holds more tabs than commas.
func dominantDelimiter(line string) rune {
	if strings.Count(line, "\t") > strings.Count(line, ",") {
		return '\t'
	}
	return ','
}

// openStream opens a fresh read of the file with BOM stripping and, when
// detected, backslash-escape normalization applied.
func (r *Reader) openStream() (io.Reader, io.Closer, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", r.path, err)
	}
	br := stripBOM(bufio.NewReader(f))
	if r.backslashEscape {
		return newEscapeNormalizer(br), f, nil
	}
	return br, f, nil
}

// newCSVReader builds an encoding/csv reader with the lenient settings
// feed exports need: variable field counts and lazy quoting.
func newCSVReader(src io.Reader, delim rune) *csv.Reader {
	cr := csv.NewReader(src)
	cr.Comma = delim
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	return cr
}

// Path implements driven.Table.
func (r *Reader) Path() string { return r.path }

// Warnings implements driven.Table.
func (r *Reader) Warnings() []string { return r.warnings }

// Headers returns the normalized column names, parsed from the header line
// with the header delimiter. Cached after the first call.
func (r *Reader) Headers() ([]string, error) {
	if r.headers != nil {
		return r.headers, nil
	}

	src, closer, err := r.openStream()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	cr := newCSVReader(src, r.headerDelim)
	record, err := cr.Read()
	if err == io.EOF {
		r.headers = []string{}
		return r.headers, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parsing header of %s: %w", r.path, err)
	}

	headers := make([]string, 0, len(record))
	for _, name := range record {
		headers = append(headers, normalizeHeader(name))
	}
	r.headers = headers
	return r.headers, nil
}

// normalizeHeader strips surrounding whitespace and literal quote characters
// from a column name. Applied once at parse time so call sites never
// re-normalize.
func normalizeHeader(name string) string {
	return strings.Trim(strings.TrimSpace(name), `"`)
}

// Rows implements driven.Table. Each call opens a fresh stream; the header
// record is consumed with the data delimiter and discarded, so a
// header/data delimiter mismatch cannot skew data parsing.
func (r *Reader) Rows() (driven.RowIterator, error) {
	headers, err := r.Headers()
	if err != nil {
		return nil, err
	}

	src, closer, err := r.openStream()
	if err != nil {
		return nil, err
	}

	cr := newCSVReader(src, r.dataDelim)
	if _, err := cr.Read(); err != nil && err != io.EOF {
		closer.Close()
		return nil, fmt.Errorf("skipping header of %s: %w", r.path, err)
	}

	return &rowIter{
		path:    r.path,
		closer:  closer,
		cr:      cr,
		headers: headers,
		maxRows: r.opts.MaxRows,
	}, nil
}

// CountRows counts logical data rows with structural parsing only: no row
// maps are built. Honors the row cap and caches the result.
func (r *Reader) CountRows() (int, error) {
	if r.counted {
		return r.rowCount, nil
	}

	src, closer, err := r.openStream()
	if err != nil {
		return 0, err
	}
	defer closer.Close()

	cr := newCSVReader(src, r.dataDelim)
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			r.rowCount = 0
			r.counted = true
			return 0, nil
		}
		return 0, fmt.Errorf("skipping header of %s: %w", r.path, err)
	}

	count := 0
	for {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, fmt.Errorf("counting rows of %s: %w", r.path, err)
		}
		count++
		if r.opts.MaxRows > 0 && count >= r.opts.MaxRows {
			break
		}
	}

	r.rowCount = count
	r.counted = true
	return count, nil
}

// rowIter streams data rows one at a time.
type rowIter struct {
	path    string
	closer  io.Closer
	cr      *csv.Reader
	headers []string
	maxRows int
	yielded int
	cur     domain.Row
	err     error
	closed  bool
}

// Next implements driven.RowIterator.
func (it *rowIter) Next() bool {
	if it.err != nil || it.closed {
		return false
	}
	if it.maxRows > 0 && it.yielded >= it.maxRows {
		return false
	}

	record, err := it.cr.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		it.err = fmt.Errorf("parsing %s: %w", it.path, err)
		return false
	}

	// FieldPos reports the physical line the row starts on, which stays
	// correct across multi-line quoted fields.
	line, _ := it.cr.FieldPos(0)

	values := make(map[string]string, len(it.headers))
	for i, h := range it.headers {
		if i < len(record) {
			values[h] = record[i]
		}
	}

	it.cur = domain.Row{Line: line, Values: values}
	it.yielded++
	return true
}

// Row implements driven.RowIterator.
func (it *rowIter) Row() domain.Row { return it.cur }

// Err implements driven.RowIterator.
func (it *rowIter) Err() error { return it.err }

// Close implements driven.RowIterator.
func (it *rowIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.closer.Close()
}
