package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/feeddiff-cli/internal/core/domain"
)

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// writeSummaryFile persists v as indented JSON under dir, creating dir as
// needed, and returns the file's path.
func writeSummaryFile(dir, name string, v any) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating summary dir: %w", err)
	}
	path := filepath.Join(dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing summary: %w", err)
	}
	return path, nil
}

// summaryTimestamp names summary files consistently with run folders.
func summaryTimestamp() string {
	return time.Now().Format("20060102_150405")
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	return t
}

// renderReport prints one diff report as tables.
func renderReport(cmd *cobra.Command, report *domain.Report) {
	t := newTable(cmd)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Rows added", report.RowsAdded},
		{"Rows removed", report.RowsRemoved},
		{"Rows updated", report.RowsUpdated},
		{"Rows updated (noise only)", report.RowsUpdatedNoiseOnly},
		{"Prod rows", report.ProdRowCount},
		{"Dev rows", report.DevRowCount},
	})
	if len(report.ProdOnlyKeys) > 0 {
		t.AppendRow(table.Row{"Columns only in prod", joinOrNone(report.ProdOnlyKeys)})
	}
	if len(report.DevOnlyKeys) > 0 {
		t.AppendRow(table.Row{"Columns only in dev", joinOrNone(report.DevOnlyKeys)})
	}
	if report.ProdInStockPct != nil {
		t.AppendRow(table.Row{"Prod in stock", fmt.Sprintf("%.2f%%", *report.ProdInStockPct)})
	}
	if report.DevInStockPct != nil {
		t.AppendRow(table.Row{"Dev in stock", fmt.Sprintf("%.2f%%", *report.DevInStockPct)})
	}
	if report.InStockPctDiff != nil {
		t.AppendRow(table.Row{"In stock difference", fmt.Sprintf("%.2f%%", *report.InStockPctDiff)})
	}
	if report.DuplicateProdKeys > 0 || report.DuplicateDevKeys > 0 {
		t.AppendRow(table.Row{"Duplicate keys (prod/dev)",
			fmt.Sprintf("%d / %d", report.DuplicateProdKeys, report.DuplicateDevKeys)})
	}
	t.Render()

	if len(report.DetailedKeyUpdateCounts) > 0 {
		ct := newTable(cmd)
		ct.AppendHeader(table.Row{"Changed column", "Rows"})
		for _, col := range report.CommonKeys {
			if n, ok := report.DetailedKeyUpdateCounts[col]; ok {
				ct.AppendRow(table.Row{col, n})
			}
		}
		ct.Render()
	}

	if len(report.ExampleIDs) > 0 {
		et := newTable(cmd)
		et.AppendHeader(table.Row{"Example key", "Prod line", "Dev line"})
		for key, ref := range report.ExampleIDs {
			et.AppendRow(table.Row{key, ref.ProdLine, ref.DevLine})
		}
		et.Render()
	}
}

// renderLocalSummary prints a single-pair diff summary.
func renderLocalSummary(cmd *cobra.Command, s *domain.LocalSummary) {
	cmd.Printf("%s vs %s\n", s.ProdFile, s.DevFile)
	renderReport(cmd, s.Report)
	cmd.Printf("Runtime: %.2fs\n", s.RuntimeSeconds)
}

// renderRunSummary prints one row per test case.
func renderRunSummary(cmd *cobra.Command, s *domain.RunSummary) {
	t := newTable(cmd)
	t.AppendHeader(table.Row{"Test", "Shop", "Added", "Removed", "Updated", "Noise", "Runtime", "Status"})
	for i := range s.TestCases {
		c := &s.TestCases[i]
		status := "ok"
		if c.Failed {
			status = "ERROR"
			if c.Err != nil {
				status = "ERROR: " + c.Err.Msg
			}
		}
		var added, removed, updated, noise any = "-", "-", "-", "-"
		if c.Report != nil {
			added, removed, updated, noise = c.RowsAdded, c.RowsRemoved, c.RowsUpdated, c.RowsUpdatedNoiseOnly
		}
		t.AppendRow(table.Row{c.TestCase, c.ShopName, added, removed, updated, noise,
			fmt.Sprintf("%.2fs", c.RuntimeSeconds), status})
	}
	t.Render()
	cmd.Printf("%d case(s) in %.2fs\n", s.Count, s.TotalRuntimeSeconds)
}

func joinOrNone(cols []string) string {
	if len(cols) == 0 {
		return "-"
	}
	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}
	return out
}

// summarizeChanges counts changed and failed cases for run history.
func summarizeChanges(s *domain.RunSummary) (changed, failed int) {
	for i := range s.TestCases {
		c := &s.TestCases[i]
		if c.Failed {
			failed++
		} else if c.Report != nil && c.Report.HasChanges() {
			changed++
		}
	}
	return changed, failed
}
