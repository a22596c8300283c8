package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driving/tui"
	"github.com/custodia-labs/feeddiff-cli/internal/core/services"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// watchSettleDelay batches filesystem events: response files are written in
// pairs, so the re-diff waits until the folder has been quiet for a moment.
const watchSettleDelay = 2 * time.Second

var (
	flagFolderWatch bool
	flagFolderDiffs int
)

var folderCmd = &cobra.Command{
	Use:   "folder [dir]",
	Short: "Diff every prod/dev response pair in a folder",
	Long: `Scans a folder of previously fetched response files named
prod_response_<case>_<hash>.txt / dev_response_<case>_<hash>.txt and
diffs each pair. With --watch, the folder is re-diffed whenever new
response files appear.`,
	Args: cobra.ExactArgs(1),
	RunE: runFolder,
}

func init() {
	folderCmd.Flags().BoolVarP(&flagFolderWatch, "watch", "w", false, "Re-run when new response files appear")
	folderCmd.Flags().IntVar(&flagFolderDiffs, "max-concurrent-diffs", 0, "Concurrent diffs (default 10)")
	rootCmd.AddCommand(folderCmd)
}

func runFolder(cmd *cobra.Command, args []string) error {
	dir := args[0]
	runner := services.NewRunnerService(buildDiffer(), nil, tui.NewLogSink(), services.RunnerConfig{
		MaxConcurrentDiffs: int64(intSetting(flagFolderDiffs, file.KeyMaxConcurrentDiffs, 10)),
	})

	if err := folderDiffOnce(cmd, runner, dir); err != nil {
		return err
	}
	if !flagFolderWatch {
		return nil
	}
	return watchFolder(cmd, runner, dir)
}

// folderDiffOnce diffs the folder and emits the summary.
func folderDiffOnce(cmd *cobra.Command, runner *services.RunnerService, dir string) error {
	summary, err := runner.RunFolder(cmd.Context(), dir)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("folder_diffs_summary_%s.json", summaryTimestamp())
	path, err := writeSummaryFile(summaryDir(), name, summary)
	if err != nil {
		return err
	}
	logger.Info("summary written to %s", path)

	saveHistory(cmd.Context(), "folder", dir, path, summary)

	if flagJSON {
		return printJSON(cmd, summary)
	}
	renderRunSummary(cmd, summary)
	return nil
}

// watchFolder re-diffs the folder whenever new response files settle.
func watchFolder(cmd *cobra.Command, runner *services.RunnerService, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching %s for new response files", dir)

	ctx := cmd.Context()
	var settle *time.Timer
	var settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !isResponseFile(event.Name) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(watchSettleDelay)
				settleC = settle.C
			} else {
				settle.Reset(watchSettleDelay)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)

		case <-settleC:
			settle = nil
			settleC = nil
			if err := folderDiffOnce(cmd, runner, dir); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Error("re-diff failed: %v", err)
			}
		}
	}
}

// isResponseFile reports whether a path names a fetched response file.
func isResponseFile(path string) bool {
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".txt") &&
		(strings.HasPrefix(base, "prod_response_") || strings.HasPrefix(base, "dev_response_"))
}
