package cli

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

var diffCmd = &cobra.Command{
	Use:   "diff [prod-file] [dev-file]",
	Short: "Diff two local feed files",
	Long: `Compares two delimited feed files row by row using the configured
primary key and prints a change summary. Delimiter and quote-escaping
style are detected per file.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	start := time.Now()

	report, err := buildDiffer().Compute(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	summary := &domain.LocalSummary{
		Mode:           "local",
		ProdFile:       filepath.Base(args[0]),
		DevFile:        filepath.Base(args[1]),
		Report:         report,
		RuntimeSeconds: roundSeconds(time.Since(start)),
	}

	name := fmt.Sprintf("diffs_summary_local_%s.json", summaryTimestamp())
	path, err := writeSummaryFile(summaryDir(), name, summary)
	if err != nil {
		return err
	}
	logger.Info("summary written to %s", path)

	if flagJSON {
		return printJSON(cmd, summary)
	}
	renderLocalSummary(cmd, summary)
	return nil
}

// roundSeconds reports a duration in seconds with centisecond precision,
// matching the runtime fields in summary files.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
