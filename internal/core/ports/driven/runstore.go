package driven

import (
	"context"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

// RunStore persists batch run history.
type RunStore interface {
	// SaveRun records one completed run.
	SaveRun(ctx context.Context, rec domain.RunRecord) error

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// Close releases the underlying storage.
	Close() error
}
