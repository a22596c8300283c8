package driving

import (
	"context"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

// Differ computes the full report for one prod/dev table pair.
type Differ interface {
	// Compute runs the three-pass diff over two local delimited files and
	// assembles the report. It returns no partial result: any
	// configuration, parse or I/O error aborts the whole diff.
	Compute(ctx context.Context, prodPath, devPath string) (*domain.Report, error)
}

// BatchRunner drives many independent table pairs through the Differ.
type BatchRunner interface {
	// RunFolder diffs every prod/dev response pair found in dir.
	RunFolder(ctx context.Context, dir string) (*domain.RunSummary, error)

	// RunURLs fetches each test case in the params file from the
	// configured prod and dev endpoints, then diffs the downloaded pairs.
	RunURLs(ctx context.Context, paramsFile string) (*domain.RunSummary, error)
}
