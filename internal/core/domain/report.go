package domain

import "time"

// Report wraps a DiffResult with schema metadata and auxiliary aggregates.
// It is the final result object for one table pair, ready for JSON
// serialization: primitives, maps and slices only.
type Report struct {
	DiffResult

	// Column-set comparison between the two sides, each sorted.
	CommonKeys   []string `json:"common_keys"`
	ProdOnlyKeys []string `json:"prod_only_keys"`
	DevOnlyKeys  []string `json:"dev_only_keys"`

	// Total logical data rows per side (row cap honored).
	ProdRowCount int `json:"prod_row_count"`
	DevRowCount  int `json:"dev_row_count"`

	// In-stock percentages, present only when the side has an
	// availability column.
	ProdInStockPct *float64 `json:"prod_in_stock_percentage,omitempty"`
	DevInStockPct  *float64 `json:"dev_in_stock_percentage,omitempty"`
	InStockPctDiff *float64 `json:"in_stock_percentage_difference,omitempty"`
}

// CaseError carries the failure message for a batch case.
type CaseError struct {
	Msg string `json:"msg"`
	// Response holds truncated body previews per environment for non-200
	// fetches, keyed "prod"/"dev".
	Response map[string]EnvResponse `json:"response,omitempty"`
}

// EnvResponse is the status and truncated output of one failed fetch.
type EnvResponse struct {
	Status int    `json:"status"`
	Output string `json:"output,omitempty"`
}

// CaseSummary is the outcome of one batch case (one prod/dev pair).
// The embedded Report is flattened into the JSON object when present and
// omitted entirely for failed cases.
type CaseSummary struct {
	TestCase      int            `json:"test_case"`
	Hash          string         `json:"hash,omitempty"`
	ShopName      string         `json:"shop_name,omitempty"`
	RequestParams map[string]any `json:"request_params,omitempty"`
	ProdStatus    int            `json:"prod_status,omitempty"`
	DevStatus     int            `json:"dev_status,omitempty"`

	*Report

	Err            *CaseError `json:"error,omitempty"`
	Failed         bool       `json:"non_200,omitempty"`
	RuntimeSeconds float64    `json:"runtime_seconds,omitempty"`
}

// LocalSummary is the output object for a single local-pair diff.
type LocalSummary struct {
	Mode     string `json:"mode"`
	ProdFile string `json:"prod_file"`
	DevFile  string `json:"dev_file"`

	*Report

	RuntimeSeconds float64 `json:"runtime_seconds"`
}

// RunSummary aggregates all case summaries of one batch run.
type RunSummary struct {
	Count               int           `json:"count"`
	RunFolder           string        `json:"run_folder,omitempty"`
	TotalRuntimeSeconds float64       `json:"total_runtime_seconds"`
	TestCases           []CaseSummary `json:"test_cases"`
}

// Filtered returns a copy of the summary containing only cases selected by
// keep, with Count updated. Used for the updates-only and errors-only
// summary files.
func (s *RunSummary) Filtered(keep func(*CaseSummary) bool) *RunSummary {
	out := &RunSummary{
		RunFolder:           s.RunFolder,
		TotalRuntimeSeconds: s.TotalRuntimeSeconds,
		TestCases:           []CaseSummary{},
	}
	for i := range s.TestCases {
		if keep(&s.TestCases[i]) {
			out.TestCases = append(out.TestCases, s.TestCases[i])
		}
	}
	out.Count = len(out.TestCases)
	return out
}

// RunMetadata records the configuration a batch run was started with.
// Written as run_metadata.json into the run folder.
type RunMetadata struct {
	RunID               string    `json:"run_id"`
	Timestamp           time.Time `json:"timestamp"`
	Mode                string    `json:"mode"`
	ParamsFile          string    `json:"params_file,omitempty"`
	PrimaryKey          string    `json:"primary_key"`
	NoiseMarkers        []string  `json:"noise_markers"`
	Timeout             int       `json:"timeout_seconds,omitempty"`
	MaxExamples         int       `json:"max_examples"`
	MaxConcurrentDiffs  int       `json:"max_concurrent_diffs"`
	MaxConcurrentFetch  int       `json:"max_concurrent_fetches,omitempty"`
	DiffRows            int       `json:"diff_rows,omitempty"`
	SourceLimit         int       `json:"source_limit,omitempty"`
	OutputDir           string    `json:"output_dir,omitempty"`
	SummaryDir          string    `json:"summary_dir,omitempty"`
	Verbose             bool      `json:"verbose"`
}

// RunRecord is one row of the persisted run history.
type RunRecord struct {
	ID           string
	StartedAt    time.Time
	Mode         string
	ParamsFile   string
	CaseCount    int
	ChangedCases int
	ErrorCases   int
	SummaryPath  string
	RuntimeSecs  float64
}
