package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNoKeyColumns indicates a diff was requested without any key columns.
	ErrNoKeyColumns = errors.New("no key columns configured")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDigestInconsistency indicates the detail pass found no meaningful
	// column difference for a row the classification pass marked meaningful.
	// The two passes must agree; this is an implementation bug, never data.
	ErrDigestInconsistency = errors.New("digest classification inconsistency")

	// ErrMissingPair indicates a batch case lacks its prod or dev file.
	ErrMissingPair = errors.New("missing counterpart file")

	// ErrNoParams indicates the params file contained no usable test cases.
	ErrNoParams = errors.New("no valid parameters found")
)

// MissingKeyError reports key columns absent from one side of a comparison.
// It carries the available columns so a misconfigured key is self-diagnosable
// from the error message alone.
type MissingKeyError struct {
	Side      string   // "prod" or "dev"
	Missing   []string // key columns not present on that side
	Available []string // sorted headers actually present on that side
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("primary key(s) [%s] not found in %s file; available columns: [%s]",
		strings.Join(e.Missing, ", "), e.Side, strings.Join(e.Available, ", "))
}
