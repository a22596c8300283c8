package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/adapters/driven/config/file"
)

// sliceKeys are config keys whose values are comma-separated lists.
var sliceKeys = map[string]bool{
	file.KeyNoiseMarkers: true,
	file.KeyDedupKeys:    true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage feeddiff configuration",
	Long: `View and change settings stored in the config file, such as the
prod/dev endpoint URLs used by 'feeddiff run'.

Keys use dot notation, e.g.:
  feeddiff config set endpoints.prod https://prod.example.com/export
  feeddiff config set diff.primary_key sku
  feeddiff config set diff.noise_markers inventory,availability`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.Println(cfgStore.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	keys := []string{
		file.KeyProdEndpoint,
		file.KeyDevEndpoint,
		file.KeyPrimaryKey,
		file.KeyNoiseMarkers,
		file.KeyMaxExamples,
		file.KeyDedupKeys,
		file.KeyMaxConcurrentFetches,
		file.KeyMaxConcurrentDiffs,
		file.KeyOutputDir,
		file.KeySummaryDir,
		file.KeyFetchTimeout,
		file.KeyInsecureTLS,
		file.KeyRequestsPerSecond,
	}
	sort.Strings(keys)

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Key", "Value"})
	for _, key := range keys {
		val, ok := cfgStore.Get(key)
		if !ok {
			t.AppendRow(table.Row{key, "(not set)"})
			continue
		}
		t.AppendRow(table.Row{key, formatConfigValue(val)})
	}
	t.Render()
	cmd.Printf("Config file: %s\n", cfgStore.Path())
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	val, ok := cfgStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Println(formatConfigValue(val))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, raw := args[0], args[1]
	if err := cfgStore.Set(key, parseConfigValue(key, raw)); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

// parseConfigValue types a raw CLI value so the TOML file keeps proper
// types: lists for list keys, then bool, then int, then string.
func parseConfigValue(key, raw string) any {
	if sliceKeys[key] {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
