package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driving"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// responseFilePattern matches the response files a fetch run writes:
// prod_response_3_0a1b2c.txt / dev_response_3_0a1b2c.txt.
var responseFilePattern = regexp.MustCompile(`^(prod|dev)_response_(\d+)_(\w+)\.txt$`)

// RunnerConfig configures a batch run.
type RunnerConfig struct {
	// ProdBaseURL and DevBaseURL are the two feed endpoints each test
	// case's params are appended to. Required for URL mode.
	ProdBaseURL string
	DevBaseURL  string

	// DedupKeys identify a test case's tenant for deduplication.
	// Nil means domain.DefaultDedupKeys.
	DedupKeys []string

	// MaxConcurrentFetches bounds test cases in the fetch phase at once.
	// Each case fetches its two environments sequentially within the slot,
	// so the same tenant never runs two exports at the same time.
	MaxConcurrentFetches int64

	// MaxConcurrentDiffs bounds concurrently running diffs. Diffs hold two
	// key indexes in memory, so this is the memory throttle.
	MaxConcurrentDiffs int64

	// SourceLimit truncates the deduplicated case list. Zero means all.
	SourceLimit int

	// OutputDir is where URL-mode run folders are created.
	OutputDir string

	// Metadata is recorded into the run folder; RunID and Timestamp are
	// filled in by the runner.
	Metadata domain.RunMetadata
}

// RunnerService drives many prod/dev pairs through the differ, either from
// an existing folder of response files or by fetching a params file's test
// cases first. Individual case failures become error entries in the summary;
// only context cancellation aborts a run.
type RunnerService struct {
	differ   driving.Differ
	fetcher  driven.FeedFetcher
	progress driven.ProgressSink
	cfg      RunnerConfig
}

// Ensure RunnerService implements the driving port.
var _ driving.BatchRunner = (*RunnerService)(nil)

// NewRunnerService creates a batch runner. fetcher may be nil when only
// folder mode is used; progress may be nil for no reporting.
func NewRunnerService(differ driving.Differ, fetcher driven.FeedFetcher, progress driven.ProgressSink, cfg RunnerConfig) *RunnerService {
	if progress == nil {
		progress = driven.NopProgress{}
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 250
	}
	if cfg.MaxConcurrentDiffs <= 0 {
		cfg.MaxConcurrentDiffs = 10
	}
	if cfg.DedupKeys == nil {
		cfg.DedupKeys = domain.DefaultDedupKeys()
	}
	return &RunnerService{differ: differ, fetcher: fetcher, progress: progress, cfg: cfg}
}

// casePair is one test case's pair of response files.
type casePair struct {
	testCase int
	hash     string
	prodPath string
	devPath  string
}

// RunFolder implements driving.BatchRunner.
func (s *RunnerService) RunFolder(ctx context.Context, dir string) (*domain.RunSummary, error) {
	start := time.Now()

	pairs, err := scanResponseFolder(dir)
	if err != nil {
		return nil, err
	}
	logger.Info("found %d test case(s) in %s", len(pairs), dir)

	results := make([]domain.CaseSummary, len(pairs))
	diffSem := semaphore.NewWeighted(s.cfg.MaxConcurrentDiffs)

	g, ctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		g.Go(func() error {
			if err := diffSem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer diffSem.Release(1)

			results[i] = s.diffCase(ctx, pair)
			s.progress.DiffCompleted()
			if results[i].Failed {
				s.progress.ErrorOccurred()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortCases(results)
	return &domain.RunSummary{
		Count:               len(results),
		TotalRuntimeSeconds: round2(time.Since(start).Seconds()),
		TestCases:           results,
	}, nil
}

// scanResponseFolder pairs up the response files found in dir.
// A case missing one side still yields an entry so it surfaces as an error.
func scanResponseFolder(dir string) ([]casePair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder: %w", err)
	}

	groups := map[string]*casePair{}
	for _, entry := range entries {
		m := responseFilePattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		testCase, _ := strconv.Atoi(m[2])
		key := m[2] + "_" + m[3]
		pair, ok := groups[key]
		if !ok {
			pair = &casePair{testCase: testCase, hash: m[3]}
			groups[key] = pair
		}
		path := filepath.Join(dir, entry.Name())
		if m[1] == "prod" {
			pair.prodPath = path
		} else {
			pair.devPath = path
		}
	}

	pairs := make([]casePair, 0, len(groups))
	for _, pair := range groups {
		pairs = append(pairs, *pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].testCase < pairs[j].testCase })
	return pairs, nil
}

// diffCase runs one pair through the differ, converting any failure into an
// error summary entry.
func (s *RunnerService) diffCase(ctx context.Context, pair casePair) domain.CaseSummary {
	summary := domain.CaseSummary{TestCase: pair.testCase, Hash: pair.hash}
	start := time.Now()

	if pair.prodPath == "" || pair.devPath == "" {
		missing := "prod"
		if pair.prodPath != "" {
			missing = "dev"
		}
		summary.Err = &domain.CaseError{Msg: fmt.Sprintf("Missing %s file", missing)}
		summary.Failed = true
		return summary
	}

	s.progress.Logf("[Test %d] Starting diff...", pair.testCase)
	report, err := s.differ.Compute(ctx, pair.prodPath, pair.devPath)
	summary.RuntimeSeconds = round2(time.Since(start).Seconds())
	if err != nil {
		s.progress.Logf("[Test %d] Error: %v", pair.testCase, err)
		summary.Err = &domain.CaseError{Msg: err.Error()}
		summary.Failed = true
		return summary
	}

	summary.Report = report
	if report.HasChanges() {
		s.progress.Logf("[Test %d] +%d added, -%d removed, ~%d changed",
			pair.testCase, report.RowsAdded, report.RowsRemoved, report.RowsUpdated)
	} else {
		s.progress.Logf("[Test %d] No differences", pair.testCase)
	}
	return summary
}

// RunURLs implements driving.BatchRunner.
func (s *RunnerService) RunURLs(ctx context.Context, paramsFile string) (*domain.RunSummary, error) {
	start := time.Now()

	params, err := PlanCases(paramsFile, s.cfg.DedupKeys, s.cfg.SourceLimit)
	if err != nil {
		return nil, err
	}
	logger.Info("found %d test case(s), %d URL calls", len(params), len(params)*2)

	runFolder := runFolderName(paramsFile, s.cfg.Metadata)
	runDir := filepath.Join(s.cfg.OutputDir, runFolder)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return nil, fmt.Errorf("creating run folder: %w", err)
	}
	if err := s.writeRunMetadata(runDir, paramsFile); err != nil {
		return nil, err
	}

	results := make([]domain.CaseSummary, len(params))
	fetchSem := semaphore.NewWeighted(s.cfg.MaxConcurrentFetches)
	diffSem := semaphore.NewWeighted(s.cfg.MaxConcurrentDiffs)

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range params {
		g.Go(func() error {
			summary, err := s.processCase(ctx, i, p, runDir, fetchSem, diffSem)
			if err != nil {
				return err
			}
			results[i] = summary
			s.progress.DiffCompleted()
			if summary.Failed {
				s.progress.ErrorOccurred()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortCases(results)
	summary := &domain.RunSummary{
		Count:               len(results),
		RunFolder:           runFolder,
		TotalRuntimeSeconds: round2(time.Since(start).Seconds()),
		TestCases:           results,
	}

	// Keep a copy of the summary next to the response files.
	if err := writeJSON(filepath.Join(runDir, "summary.json"), summary); err != nil {
		return nil, err
	}
	return summary, nil
}

// processCase fetches both environments for one test case, then diffs them.
// Only context cancellation is returned as an error; everything else lands
// in the summary.
func (s *RunnerService) processCase(ctx context.Context, idx int, params, runDir string, fetchSem, diffSem *semaphore.Weighted) (domain.CaseSummary, error) {
	summary := domain.CaseSummary{
		TestCase:      idx,
		Hash:          domain.ParamHash(params),
		ShopName:      domain.ShopName(params),
		RequestParams: domain.ParseQueryParams(params),
	}

	if err := fetchSem.Acquire(ctx, 1); err != nil {
		return summary, err
	}
	// Prod and dev are fetched sequentially within one case: both hit the
	// same tenant, which cannot serve two exports at once. Alternate which
	// side goes first to balance load across the two endpoints.
	prodFirst := idx%2 == 0
	s.progress.Logf("[Test %d] Starting fetches...", idx)

	var prodRes, devRes *driven.FetchResult
	var prodErr, devErr error
	if prodFirst {
		prodRes, prodErr = s.fetchEnv(ctx, idx, "prod", s.cfg.ProdBaseURL, params, runDir, summary.Hash)
		devRes, devErr = s.fetchEnv(ctx, idx, "dev", s.cfg.DevBaseURL, params, runDir, summary.Hash)
	} else {
		devRes, devErr = s.fetchEnv(ctx, idx, "dev", s.cfg.DevBaseURL, params, runDir, summary.Hash)
		prodRes, prodErr = s.fetchEnv(ctx, idx, "prod", s.cfg.ProdBaseURL, params, runDir, summary.Hash)
	}
	fetchSem.Release(1)
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	summary.ProdStatus = fetchStatus(prodRes)
	summary.DevStatus = fetchStatus(devRes)

	if prodErr != nil || devErr != nil || summary.ProdStatus != 200 || summary.DevStatus != 200 {
		summary.Err = &domain.CaseError{
			Msg:      "Non-200 responses detected",
			Response: map[string]domain.EnvResponse{},
		}
		addEnvFailure(summary.Err, "prod", prodRes, prodErr)
		addEnvFailure(summary.Err, "dev", devRes, devErr)
		summary.Failed = true
		return summary, nil
	}

	if err := diffSem.Acquire(ctx, 1); err != nil {
		return summary, err
	}
	defer diffSem.Release(1)

	diffed := s.diffCase(ctx, casePair{
		testCase: idx,
		hash:     summary.Hash,
		prodPath: prodRes.Path,
		devPath:  devRes.Path,
	})
	summary.Report = diffed.Report
	summary.Err = diffed.Err
	summary.Failed = diffed.Failed
	summary.RuntimeSeconds = diffed.RuntimeSeconds
	return summary, nil
}

// fetchEnv downloads one environment's feed for a test case.
func (s *RunnerService) fetchEnv(ctx context.Context, idx int, env, baseURL, params, runDir, hash string) (*driven.FetchResult, error) {
	url := baseURL + "?" + strings.TrimPrefix(params, "?")
	dest := filepath.Join(runDir, fmt.Sprintf("%s_response_%d_%s.txt", env, idx, hash))

	res, err := s.fetcher.Fetch(ctx, url, dest)
	s.progress.FetchCompleted()
	if err != nil {
		s.progress.Logf("[Test %d] %s failed: %v", idx, strings.ToUpper(env), err)
		return nil, err
	}
	s.progress.Logf("[Test %d] %s done (status=%d)", idx, strings.ToUpper(env), res.StatusCode)
	return res, nil
}

func fetchStatus(res *driven.FetchResult) int {
	if res == nil {
		return 0
	}
	return res.StatusCode
}

// addEnvFailure records one side's failure detail, if it failed.
func addEnvFailure(caseErr *domain.CaseError, env string, res *driven.FetchResult, err error) {
	switch {
	case err != nil:
		caseErr.Response[env] = domain.EnvResponse{Output: err.Error()}
	case res != nil && res.StatusCode != 200:
		caseErr.Response[env] = domain.EnvResponse{Status: res.StatusCode, Output: res.BodyPreview}
	}
}

// PlanCases reads a params file and returns the final test case list after
// deduplication and source limiting. Exposed so callers can size progress
// reporting before starting the run; RunURLs applies the same plan.
func PlanCases(paramsFile string, dedupKeys []string, sourceLimit int) ([]string, error) {
	if dedupKeys == nil {
		dedupKeys = domain.DefaultDedupKeys()
	}
	params, err := readParamsFile(paramsFile)
	if err != nil {
		return nil, err
	}
	params = dedupParams(params, dedupKeys)
	if sourceLimit > 0 && len(params) > sourceLimit {
		logger.Info("limiting to %d of %d test case(s)", sourceLimit, len(params))
		params = params[:sourceLimit]
	}
	return params, nil
}

// dedupParams drops test cases whose dedup identity was already seen.
// Cases without an identity are always kept.
func dedupParams(params []string, dedupKeys []string) []string {
	seen := map[string]bool{}
	kept := params[:0:0]
	removed := 0
	for _, p := range params {
		id := domain.ExtractDedupKey(p, dedupKeys)
		if id != "" {
			if seen[id] {
				removed++
				continue
			}
			seen[id] = true
		}
		kept = append(kept, p)
	}
	if removed > 0 {
		logger.Info("deduplicated: %d -> %d test case(s) (%d duplicate(s) removed)",
			len(params), len(kept), removed)
	}
	return kept
}

// readParamsFile reads the "params" column of a CSV params file.
func readParamsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening params file: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing params file: %w", err)
	}
	if len(records) == 0 {
		return nil, domain.ErrNoParams
	}

	col := -1
	for i, name := range records[0] {
		if strings.TrimSpace(name) == "params" {
			col = i
			break
		}
	}
	if col == -1 {
		return nil, fmt.Errorf("%w: params file has no \"params\" column", domain.ErrNoParams)
	}

	var params []string
	for _, record := range records[1:] {
		if col < len(record) && record[col] != "" {
			params = append(params, record[col])
		}
	}
	if len(params) == 0 {
		return nil, domain.ErrNoParams
	}
	return params, nil
}

// runFolderName builds a unique, self-describing folder name for a run:
// timestamp, params file base name, then the non-default knobs.
func runFolderName(paramsFile string, meta domain.RunMetadata) string {
	base := strings.TrimSuffix(filepath.Base(paramsFile), filepath.Ext(paramsFile))

	var flags []string
	if meta.PrimaryKey != "" && meta.PrimaryKey != "id" {
		pk := strings.ReplaceAll(strings.ReplaceAll(meta.PrimaryKey, ",", "-"), " ", "")
		flags = append(flags, "pk_"+pk)
	}
	if meta.Timeout > 0 && meta.Timeout != 900 {
		flags = append(flags, fmt.Sprintf("t%d", meta.Timeout))
	}
	if meta.MaxExamples > 0 && meta.MaxExamples != domain.DefaultMaxExamples {
		flags = append(flags, fmt.Sprintf("ex%d", meta.MaxExamples))
	}
	if meta.DiffRows > 0 {
		flags = append(flags, fmt.Sprintf("diffrows%d", meta.DiffRows))
	}
	if meta.SourceLimit > 0 {
		flags = append(flags, fmt.Sprintf("srclimit%d", meta.SourceLimit))
	}
	if meta.Verbose {
		flags = append(flags, "verbose")
	}

	parts := []string{time.Now().Format("20060102_150405"), base}
	if len(flags) > 0 {
		parts = append(parts, strings.Join(flags, "_"))
	}
	return strings.Join(parts, "_")
}

// writeRunMetadata records the run configuration into the run folder.
func (s *RunnerService) writeRunMetadata(runDir, paramsFile string) error {
	meta := s.cfg.Metadata
	meta.RunID = uuid.NewString()
	meta.Timestamp = time.Now().UTC()
	meta.Mode = "url"
	if abs, err := filepath.Abs(paramsFile); err == nil {
		meta.ParamsFile = abs
	} else {
		meta.ParamsFile = paramsFile
	}
	return writeJSON(filepath.Join(runDir, "run_metadata.json"), meta)
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// sortCases orders case summaries by test case index.
func sortCases(cases []domain.CaseSummary) {
	sort.Slice(cases, func(i, j int) bool { return cases[i].TestCase < cases[j].TestCase })
}
