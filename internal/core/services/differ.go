package services

import (
	"context"
	"crypto/md5"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driving"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// ctxCheckInterval is how many rows a pass streams between context checks.
const ctxCheckInterval = 1024

// DiffConfig carries the per-invocation knobs of the diff engine.
type DiffConfig struct {
	// KeyColumns identify a logical row across both sides. Must be non-empty.
	KeyColumns domain.KeyColumns

	// Noise decides which columns never count as meaningful change.
	Noise domain.NoiseMatcher

	// MaxExamples caps each example set. Zero means DefaultMaxExamples.
	MaxExamples int

	// TableOpts is passed through to the table opener (row cap, forced
	// delimiter).
	TableOpts domain.TableOptions
}

// DiffService computes row-level diffs between two delimited files using a
// bounded-memory three-pass strategy: index prod, index dev and classify by
// final digests, then re-stream both sides for per-column detail on the
// meaningfully changed keys only. Full rows are never held for unchanged
// keys; the working set is two digest indexes plus the changed rows.
type DiffService struct {
	opener driven.TableOpener
	cfg    DiffConfig
}

// Ensure DiffService implements the driving port.
var _ driving.Differ = (*DiffService)(nil)

// NewDiffService creates a diff service with the given table opener.
func NewDiffService(opener driven.TableOpener, cfg DiffConfig) *DiffService {
	if cfg.MaxExamples <= 0 {
		cfg.MaxExamples = domain.DefaultMaxExamples
	}
	return &DiffService{opener: opener, cfg: cfg}
}

// digest is one md5 content hash of a row.
type digest [md5.Size]byte

// keyEntry is the per-key record of an index: the last occurrence's line,
// both digests, and the display key.
type keyEntry struct {
	line    int
	full    digest
	sig     digest
	display string
}

// keyIndex maps composite key to its last-occurrence entry, remembering the
// first-seen order of distinct keys so classification output is
// deterministic.
type keyIndex struct {
	entries    map[string]keyEntry
	order      []string
	duplicates int
	suspicious int
}

// Compute implements driving.Differ.
func (s *DiffService) Compute(ctx context.Context, prodPath, devPath string) (*domain.Report, error) {
	if len(s.cfg.KeyColumns) == 0 {
		return nil, domain.ErrNoKeyColumns
	}

	prod, err := s.opener.Open(prodPath, s.cfg.TableOpts)
	if err != nil {
		return nil, fmt.Errorf("opening prod table: %w", err)
	}
	dev, err := s.opener.Open(devPath, s.cfg.TableOpts)
	if err != nil {
		return nil, fmt.Errorf("opening dev table: %w", err)
	}

	prodHeaders, err := prod.Headers()
	if err != nil {
		return nil, err
	}
	devHeaders, err := dev.Headers()
	if err != nil {
		return nil, err
	}

	// Fail fast on a misconfigured key, before any full-file pass.
	if err := s.validateKeys("prod", prodHeaders); err != nil {
		return nil, err
	}
	if err := s.validateKeys("dev", devHeaders); err != nil {
		return nil, err
	}

	common, prodOnly, devOnly := columnSets(prodHeaders, devHeaders)

	// comparison excludes noise columns; when every common column is noise
	// the significant digest falls back to the full digest, so noise-only
	// classification degenerates to plain changed/unchanged.
	noise := make([]bool, len(common))
	comparisonCount := 0
	for i, col := range common {
		noise[i] = s.cfg.Noise.Match(col)
		if !noise[i] {
			comparisonCount++
		}
	}
	hasComparison := comparisonCount > 0
	if !hasComparison {
		logger.Warn("every common column matches a noise marker; noise-only detection disabled")
	}

	result, err := s.diff(ctx, prod, dev, common, noise, hasComparison)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		DiffResult:   *result,
		CommonKeys:   common,
		ProdOnlyKeys: prodOnly,
		DevOnlyKeys:  devOnly,
	}

	if report.ProdRowCount, err = prod.CountRows(); err != nil {
		return nil, err
	}
	if report.DevRowCount, err = dev.CountRows(); err != nil {
		return nil, err
	}

	if err := attachInStock(report, prod, dev, prodHeaders, devHeaders); err != nil {
		return nil, err
	}
	return report, nil
}

// validateKeys checks that every key column exists in one side's headers.
func (s *DiffService) validateKeys(side string, headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	var missing []string
	for _, k := range s.cfg.KeyColumns {
		if !present[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	available := append([]string(nil), headers...)
	sort.Strings(available)
	return &domain.MissingKeyError{Side: side, Missing: missing, Available: available}
}

// columnSets computes the sorted common and per-side-only column lists.
func columnSets(a, b []string) (common, onlyA, onlyB []string) {
	inB := make(map[string]bool, len(b))
	for _, col := range b {
		inB[col] = true
	}
	inA := make(map[string]bool, len(a))
	for _, col := range a {
		inA[col] = true
	}

	common = []string{}
	onlyA = []string{}
	onlyB = []string{}
	for col := range inA {
		if inB[col] {
			common = append(common, col)
		} else {
			onlyA = append(onlyA, col)
		}
	}
	for col := range inB {
		if !inA[col] {
			onlyB = append(onlyB, col)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return common, onlyA, onlyB
}

// diff runs the three passes and assembles the raw DiffResult.
func (s *DiffService) diff(ctx context.Context, prod, dev driven.Table, common []string, noise []bool, hasComparison bool) (*domain.DiffResult, error) {
	// Pass 1: index prod.
	prodIdx, err := s.buildIndex(ctx, prod, common, noise, hasComparison)
	if err != nil {
		return nil, fmt.Errorf("indexing prod: %w", err)
	}
	s.reportIndexObservations("prod", prodIdx)

	// Pass 2: index dev, then classify against the final stored digests.
	devIdx, err := s.buildIndex(ctx, dev, common, noise, hasComparison)
	if err != nil {
		return nil, fmt.Errorf("indexing dev: %w", err)
	}
	s.reportIndexObservations("dev", devIdx)

	result := &domain.DiffResult{
		DetailedKeyUpdateCounts: map[string]int{},
		ExampleIDs:              map[string]domain.LineRef{},
		ExampleIDsAdded:         map[string]domain.LineRef{},
		ExampleIDsRemoved:       map[string]domain.LineRef{},
		DuplicateProdKeys:       prodIdx.duplicates,
		DuplicateDevKeys:        devIdx.duplicates,
	}

	// Added: distinct keys in dev absent from prod, counted once per key.
	// A key duplicated within dev is still one addition.
	var meaningful []string
	for _, key := range devIdx.order {
		entry := devIdx.entries[key]
		prodEntry, ok := prodIdx.entries[key]
		if !ok {
			result.RowsAdded++
			if len(result.ExampleIDsAdded) < s.cfg.MaxExamples {
				result.ExampleIDsAdded[entry.display] = domain.LineRef{DevLine: entry.line}
			}
			continue
		}
		if entry.full == prodEntry.full {
			continue
		}
		if entry.sig == prodEntry.sig {
			result.RowsUpdatedNoiseOnly++
			continue
		}
		result.RowsUpdated++
		meaningful = append(meaningful, key)
		if len(result.ExampleIDs) < s.cfg.MaxExamples {
			result.ExampleIDs[entry.display] = domain.LineRef{
				ProdLine: prodEntry.line,
				DevLine:  entry.line,
			}
		}
	}

	// Removed: keys in prod absent from dev, using prod's last-occurrence
	// line for the example.
	for _, key := range prodIdx.order {
		if _, ok := devIdx.entries[key]; ok {
			continue
		}
		entry := prodIdx.entries[key]
		result.RowsRemoved++
		if len(result.ExampleIDsRemoved) < s.cfg.MaxExamples {
			result.ExampleIDsRemoved[entry.display] = domain.LineRef{ProdLine: entry.line}
		}
	}

	// Pass 3: per-column detail for the meaningfully changed keys.
	if len(meaningful) > 0 {
		if err := s.detailColumns(ctx, prod, dev, common, noise, hasComparison, meaningful, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// buildIndex streams one table and records the last occurrence of every
// composite key.
func (s *DiffService) buildIndex(ctx context.Context, table driven.Table, common []string, noise []bool, hasComparison bool) (*keyIndex, error) {
	idx := &keyIndex{entries: map[string]keyEntry{}}

	it, err := table.Rows()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++

		row := it.Row()
		key := s.cfg.KeyColumns.CompositeKey(row.Values)
		display := s.cfg.KeyColumns.DisplayKey(row.Values)
		if domain.SuspiciousDisplayKey(display) {
			idx.suspicious++
		}

		full, sig := rowDigests(row.Values, common, noise, hasComparison)
		if _, seen := idx.entries[key]; seen {
			idx.duplicates++
		} else {
			idx.order = append(idx.order, key)
		}
		idx.entries[key] = keyEntry{line: row.Line, full: full, sig: sig, display: display}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// reportIndexObservations logs the non-fatal data quality signals gathered
// while indexing one side.
func (s *DiffService) reportIndexObservations(side string, idx *keyIndex) {
	if idx.duplicates > 0 {
		logger.Warn("%d duplicate key(s) in %s file; last occurrence wins", idx.duplicates, side)
	}
	if idx.suspicious > 0 {
		logger.Warn("%d row(s) in %s file have an empty or null-like primary key value", idx.suspicious, side)
	}
	logger.Debug("indexed %d distinct key(s) from %s file", len(idx.order), side)
}

// detailColumns re-streams both tables retaining only the changed rows, then
// tallies which non-noise columns actually differ per changed key.
func (s *DiffService) detailColumns(ctx context.Context, prod, dev driven.Table, common []string, noise []bool, hasComparison bool, meaningful []string, result *domain.DiffResult) error {
	wanted := make(map[string]bool, len(meaningful))
	for _, key := range meaningful {
		wanted[key] = true
	}

	prodRows, err := s.retainRows(ctx, prod, wanted)
	if err != nil {
		return fmt.Errorf("re-reading prod: %w", err)
	}
	devRows, err := s.retainRows(ctx, dev, wanted)
	if err != nil {
		return fmt.Errorf("re-reading dev: %w", err)
	}

	for _, key := range meaningful {
		prodRow, okA := prodRows[key]
		devRow, okB := devRows[key]
		if !okA || !okB {
			// The classification pass saw this key on both sides.
			return fmt.Errorf("key %q vanished between passes: %w", key, domain.ErrDigestInconsistency)
		}

		found := false
		for i, col := range common {
			if prodRow.Get(col) == devRow.Get(col) {
				continue
			}
			// With no non-noise columns the significant digest fell back to
			// the full digest, so every differing column counts.
			if hasComparison && noise[i] {
				continue
			}
			result.DetailedKeyUpdateCounts[col]++
			found = true
		}
		if !found {
			// Pass 2 classified this key as meaningfully changed, so at
			// least one non-noise column must differ here.
			return fmt.Errorf("key %q: %w", key, domain.ErrDigestInconsistency)
		}
	}
	return nil
}

// retainRows streams a table keeping only rows whose composite key is wanted,
// last occurrence wins. The retained set matches the rows whose digests drove
// the classification.
func (s *DiffService) retainRows(ctx context.Context, table driven.Table, wanted map[string]bool) (map[string]domain.Row, error) {
	rows := make(map[string]domain.Row, len(wanted))

	it, err := table.Rows()
	if err != nil {
		return nil, err
	}
	defer it.Close()

	n := 0
	for it.Next() {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++

		row := it.Row()
		key := s.cfg.KeyColumns.CompositeKey(row.Values)
		if wanted[key] {
			rows[key] = row
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// fieldSep and pairSep delimit column names and values inside a digest so
// adjacent fields can never collapse into the same byte stream.
var (
	fieldSep = []byte{0x00}
	pairSep  = []byte{0x01}
)

// rowDigests computes the full digest over all common columns and the
// significant digest over the non-noise subset. Columns arrive pre-sorted,
// making the digests independent of file column order. With no non-noise
// columns the significant digest equals the full digest.
func rowDigests(values map[string]string, common []string, noise []bool, hasComparison bool) (full, sig digest) {
	fh := md5.New()
	var sh hash.Hash
	if hasComparison {
		sh = md5.New()
	}

	for i, col := range common {
		v := values[col]
		writeField(fh, col, v)
		if sh != nil && !noise[i] {
			writeField(sh, col, v)
		}
	}

	copy(full[:], fh.Sum(nil))
	if sh == nil {
		return full, full
	}
	copy(sig[:], sh.Sum(nil))
	return full, sig
}

func writeField(h hash.Hash, col, value string) {
	io.WriteString(h, col)
	h.Write(fieldSep)
	io.WriteString(h, value)
	h.Write(pairSep)
}
