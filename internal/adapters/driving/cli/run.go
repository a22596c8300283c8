package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/fetch"
	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/services"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

var (
	flagRunTimeout     int
	flagRunFetches     int
	flagRunDiffs       int
	flagRunSourceLimit int
	flagRunOutputDir   string
	flagRunInsecure    bool
	flagRunRate        float64
)

var runCmd = &cobra.Command{
	Use:   "run [params-file]",
	Short: "Fetch and diff feeds for every test case in a params file",
	Long: `Reads test cases from a CSV params file (one query string per row in a
"params" column), fetches each case from the configured prod and dev
endpoints, and diffs the downloaded pairs. Test cases resolving to the
same store are deduplicated before fetching.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVarP(&flagRunTimeout, "timeout", "t", 0, "Per-request timeout in seconds (default 900)")
	runCmd.Flags().IntVar(&flagRunFetches, "max-concurrent-fetches", 0, "Concurrent test cases in the fetch phase (default 250)")
	runCmd.Flags().IntVar(&flagRunDiffs, "max-concurrent-diffs", 0, "Concurrent diffs (default 10)")
	runCmd.Flags().IntVar(&flagRunSourceLimit, "source-limit", 0, "Process only the first N test cases (default: all)")
	runCmd.Flags().StringVarP(&flagRunOutputDir, "output-dir", "o", "", "Directory for run folders (default \"responses\")")
	runCmd.Flags().BoolVar(&flagRunInsecure, "insecure", false, "Skip TLS certificate verification")
	runCmd.Flags().Float64Var(&flagRunRate, "rate", 0, "Max requests per second (default: unthrottled)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	paramsFile := "params.csv"
	if len(args) == 1 {
		paramsFile = args[0]
	}

	prodURL := cfgStore.GetString(file.KeyProdEndpoint)
	devURL := cfgStore.GetString(file.KeyDevEndpoint)
	if prodURL == "" || devURL == "" {
		return fmt.Errorf("feed endpoints not configured; set %s and %s in %s",
			file.KeyProdEndpoint, file.KeyDevEndpoint, cfgStore.Path())
	}

	dedupKeys := cfgStore.GetStringSlice(file.KeyDedupKeys)
	if dedupKeys == nil {
		dedupKeys = domain.DefaultDedupKeys()
	}
	sourceLimit := flagRunSourceLimit
	timeout := intSetting(flagRunTimeout, file.KeyFetchTimeout, 900)
	maxFetches := intSetting(flagRunFetches, file.KeyMaxConcurrentFetches, 250)
	maxDiffs := intSetting(flagRunDiffs, file.KeyMaxConcurrentDiffs, 10)
	outputDir := stringSetting(flagRunOutputDir, file.KeyOutputDir, "responses")

	// Size the progress display from the deduplicated case list.
	plan, err := services.PlanCases(paramsFile, dedupKeys, sourceLimit)
	if err != nil {
		return err
	}

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:           time.Duration(timeout) * time.Second,
		InsecureTLS:       flagRunInsecure || cfgStore.GetBool(file.KeyInsecureTLS),
		RequestsPerSecond: flagRunRate,
	})

	sink := tui.NewSink(len(plan)*2, len(plan))

	runner := services.NewRunnerService(buildDiffer(), fetcher, sink, services.RunnerConfig{
		ProdBaseURL:          prodURL,
		DevBaseURL:           devURL,
		DedupKeys:            dedupKeys,
		MaxConcurrentFetches: int64(maxFetches),
		MaxConcurrentDiffs:   int64(maxDiffs),
		SourceLimit:          sourceLimit,
		OutputDir:            outputDir,
		Metadata: domain.RunMetadata{
			PrimaryKey:         primaryKey(),
			NoiseMarkers:       noiseMarkers(),
			Timeout:            timeout,
			MaxExamples:        maxExamples(),
			MaxConcurrentDiffs: maxDiffs,
			MaxConcurrentFetch: maxFetches,
			DiffRows:           flagDiffRows,
			SourceLimit:        sourceLimit,
			OutputDir:          outputDir,
			SummaryDir:         summaryDir(),
			Verbose:            flagVerbose,
		},
	})

	summary, err := runner.RunURLs(cmd.Context(), paramsFile)
	sink.Done()
	if err != nil {
		return err
	}

	ts := summaryTimestamp()
	path, err := writeSummaryFile(summaryDir(), fmt.Sprintf("diffs_summary_%s.json", ts), summary)
	if err != nil {
		return err
	}
	logger.Info("summary written to %s", path)

	updates := summary.Filtered(func(c *domain.CaseSummary) bool {
		return !c.Failed && c.Report != nil && c.Report.HasChanges()
	})
	if _, err := writeSummaryFile(summaryDir(), fmt.Sprintf("diffs_summary_updates_%s.json", ts), updates); err != nil {
		return err
	}

	errs := summary.Filtered(func(c *domain.CaseSummary) bool {
		return c.Failed || c.Err != nil
	})
	if _, err := writeSummaryFile(summaryDir(), fmt.Sprintf("diffs_summary_errors_%s.json", ts), errs); err != nil {
		return err
	}

	saveHistory(cmd.Context(), "url", paramsFile, path, summary)

	if flagJSON {
		return printJSON(cmd, summary)
	}
	renderRunSummary(cmd, summary)
	return nil
}
