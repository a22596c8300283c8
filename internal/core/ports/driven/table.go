package driven

import (
	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

// RowIterator streams logical rows from a table, one at a time.
// Iteration never materializes more than the current row. Usage:
//
//	it, err := table.Rows()
//	...
//	defer it.Close()
//	for it.Next() {
//	    row := it.Row()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
type RowIterator interface {
	// Next advances to the next row. It returns false when the stream is
	// exhausted, the row cap is reached, or an error occurred.
	Next() bool

	// Row returns the current row. Only valid after a true Next.
	// The returned Row's Values map is owned by the caller; the iterator
	// does not reuse it.
	Row() domain.Row

	// Err returns the first error encountered during iteration, or nil.
	Err() error

	// Close releases the underlying file handle. Safe to call twice.
	Close() error
}

// Table is streaming, repeatable access to one delimited file.
// Headers and row counts are cached by implementations; Rows may be called
// any number of times, each call opening a fresh stream from the start.
// A Table is owned by a single diff invocation and is not safe for
// concurrent use.
type Table interface {
	// Path returns the underlying file path.
	Path() string

	// Headers returns the normalized column names in file order.
	Headers() ([]string, error)

	// Rows opens a fresh streaming pass over the data rows.
	Rows() (RowIterator, error)

	// CountRows counts logical data rows with structural parsing only,
	// honoring the configured row cap. Cached after the first call.
	CountRows() (int, error)

	// Warnings returns non-fatal observations made while opening the
	// table, such as a header/data delimiter mismatch.
	Warnings() []string
}

// TableOpener constructs Tables from file paths. Detection of delimiter and
// quote-escape style happens at open time via sampling.
type TableOpener interface {
	Open(path string, opts domain.TableOptions) (Table, error)
}
