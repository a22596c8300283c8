// Package cli wires the cobra command tree for the feeddiff binary.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/csvfile"
	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
	"github.com/custodia-labs/feeddiff-cli/internal/core/ports/driven"
	"github.com/custodia-labs/feeddiff-cli/internal/core/services"
	"github.com/custodia-labs/feeddiff-cli/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	flagVerbose      bool
	flagConfigDir    string
	flagPrimaryKey   string
	flagMaxExamples  int
	flagDiffRows     int
	flagNoiseMarkers []string
	flagJSON         bool
	flagSummaryDir   string
)

// cfgStore is loaded once per invocation by the root PersistentPreRunE.
var cfgStore driven.ConfigStore

var rootCmd = &cobra.Command{
	Use:   "feeddiff",
	Short: "Compare prod and dev feed exports",
	Long: `feeddiff compares two versions of the same product feed and reports
row-level differences: additions, removals, and field updates, with
volatile columns (inventory, availability) tallied separately so a
diff between two pulls taken minutes apart stays readable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)

		store, err := file.NewConfigStore(flagConfigDir)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfgStore = store
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVar(&flagConfigDir, "config", "", "Config directory (default ~/.feeddiff)")
	pf.StringVarP(&flagPrimaryKey, "primary-key", "k", "", "Primary key column(s), comma separated (default \"id\")")
	pf.IntVar(&flagMaxExamples, "max-examples", 0, fmt.Sprintf("Max example IDs per change category (default %d)", domain.DefaultMaxExamples))
	pf.IntVar(&flagDiffRows, "diff-rows", 0, "Limit each file to the first N data rows (default: no limit)")
	pf.StringSliceVar(&flagNoiseMarkers, "noise-markers", nil, "Column name fragments treated as noise (default: inventory,availability,_fdx)")
	pf.BoolVar(&flagJSON, "json", false, "Print the summary as JSON instead of a table")
	pf.StringVar(&flagSummaryDir, "summary-dir", "", "Directory for summary JSON files (default \"summaries\")")
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// stringSetting resolves a string knob: flag wins, then config, then default.
func stringSetting(flagVal, cfgKey, def string) string {
	if flagVal != "" {
		return flagVal
	}
	if v := cfgStore.GetString(cfgKey); v != "" {
		return v
	}
	return def
}

// intSetting resolves an integer knob: flag wins, then config, then default.
func intSetting(flagVal int, cfgKey string, def int) int {
	if flagVal > 0 {
		return flagVal
	}
	if v := cfgStore.GetInt(cfgKey); v > 0 {
		return v
	}
	return def
}

// primaryKey resolves the configured key column spec.
func primaryKey() string {
	return stringSetting(flagPrimaryKey, file.KeyPrimaryKey, "id")
}

// noiseMarkers resolves the configured noise markers.
func noiseMarkers() []string {
	if len(flagNoiseMarkers) > 0 {
		return flagNoiseMarkers
	}
	if v := cfgStore.GetStringSlice(file.KeyNoiseMarkers); len(v) > 0 {
		return v
	}
	return domain.DefaultNoiseMarkers()
}

// maxExamples resolves the example cap.
func maxExamples() int {
	return intSetting(flagMaxExamples, file.KeyMaxExamples, domain.DefaultMaxExamples)
}

// summaryDir resolves the summary output directory.
func summaryDir() string {
	return stringSetting(flagSummaryDir, file.KeySummaryDir, "summaries")
}

// buildDiffer assembles the diff service from flags and config.
func buildDiffer() *services.DiffService {
	return services.NewDiffService(csvfile.Opener{}, services.DiffConfig{
		KeyColumns:  domain.ParseKeyColumns(primaryKey()),
		Noise:       domain.NewNoiseMatcher(noiseMarkers()),
		MaxExamples: maxExamples(),
		TableOpts:   domain.TableOptions{MaxRows: flagDiffRows},
	})
}
