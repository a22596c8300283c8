package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

var flagHistoryLimit int

// historyDir places the history database next to the config file when a
// custom config directory is in use.
func historyDir() string {
	if flagConfigDir == "" {
		return ""
	}
	return filepath.Join(flagConfigDir, "data")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent batch runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	store, err := sqlite.NewRunStore(historyDir())
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Context(), flagHistoryLimit)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd, runs)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded yet.")
		return nil
	}

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Started", "Mode", "Source", "Cases", "Changed", "Errors", "Runtime"})
	for _, r := range runs {
		source := r.ParamsFile
		if source == "" {
			source = "-"
		}
		t.AppendRow(table.Row{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			source,
			r.CaseCount,
			r.ChangedCases,
			r.ErrorCases,
			r.RuntimeSecs,
		})
	}
	t.Render()
	return nil
}

// saveHistory records a finished run in the local history database.
// History is best effort: a storage failure never fails the run.
func saveHistory(ctx context.Context, mode, source, summaryPath string, summary *domain.RunSummary) {
	store, err := sqlite.NewRunStore(historyDir())
	if err != nil {
		logger.Warn("run history unavailable: %v", err)
		return
	}
	defer store.Close()

	changed, failed := summarizeChanges(summary)
	rec := domain.RunRecord{
		ID:           uuid.NewString(),
		StartedAt:    time.Now().UTC(),
		Mode:         mode,
		ParamsFile:   source,
		CaseCount:    summary.Count,
		ChangedCases: changed,
		ErrorCases:   failed,
		SummaryPath:  summaryPath,
		RuntimeSecs:  summary.TotalRuntimeSeconds,
	}
	if err := store.SaveRun(ctx, rec); err != nil {
		logger.Warn("saving run history: %v", err)
	}
}
