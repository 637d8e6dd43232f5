package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/logging"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the next roster batch and rebuild the report",
	RunE:  runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info(ctx, "[INGESTER_START] Starting city stats ingestion", logging.Fields{
		"version":    version,
		"batch_size": a.cfg.Pipeline.BatchSize,
		"report":     a.cfg.Pipeline.ReportFile,
	})

	result, err := a.pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline run failed: %w", err)
	}

	printRunResult(cmd, result)
	return nil
}

func printRunResult(cmd *cobra.Command, result *services.RunResult) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintln(out, "INGESTION COMPLETE")
	fmt.Fprintln(out, strings.Repeat("=", 80))
	fmt.Fprintf(out, "Run ID:             %s\n", result.RunID)
	fmt.Fprintf(out, "Cursor:             %d -> %d\n", result.StartCursor, result.NextCursor)
	fmt.Fprintf(out, "Batch Size:         %d\n", result.BatchSize)

	for _, wr := range []*services.WriteResult{result.Weather, result.AirQuality, result.Metadata} {
		if wr == nil {
			continue
		}
		fmt.Fprintf(out, "%-19s %d received, %d written, %d duplicates, %d skipped\n",
			wr.Kind+":", wr.Received, wr.Written, wr.Duplicates, wr.Skipped)
	}

	for kind, n := range result.FetchFailures {
		fmt.Fprintf(out, "Fetch Failures:     %s=%d\n", kind, n)
	}

	fmt.Fprintf(out, "Cities Reported:    %d\n", len(result.Summaries))
	if result.ReportPath != "" {
		fmt.Fprintf(out, "Report:             %s\n", result.ReportPath)
	}
	fmt.Fprintf(out, "Duration:           %v\n", result.Duration)
}
