package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"city-stats-platform/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregate the stored data and print the report without fetching",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.statistics.ComputeCityStats(ctx)
	if err != nil {
		return fmt.Errorf("statistics calculation failed: %w", err)
	}

	if reportPath != "" {
		if err := report.WriteFile(reportPath, summaries); err != nil {
			return err
		}
	}

	return report.WriteText(cmd.OutOrStdout(), summaries)
}
