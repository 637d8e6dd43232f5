package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show how far ingestion is through the roster",
	RunE:  runProgress,
}

func init() {
	rootCmd.AddCommand(progressCmd)
}

func runProgress(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.pipeline.Progress(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Next start: %d of %d\n", status.NextStart, status.RosterSize)
	fmt.Fprintf(out, "Remaining:  %d\n", status.Remaining)
	if status.Complete {
		fmt.Fprintln(out, "All roster cities processed")
	}
	return nil
}
