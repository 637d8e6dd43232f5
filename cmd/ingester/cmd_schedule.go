package main

import (
	"github.com/spf13/cobra"

	"city-stats-platform/internal/scheduler"
	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/logging"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run batches periodically until interrupted",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s := scheduler.New(a.pipeline, a.cfg.Pipeline.ScheduleInterval, a.cfg.Pipeline.RunTimeout, a.logger)
	s.OnComplete(func(result *services.RunResult, err error) {
		if err == nil {
			printRunResult(cmd, result)
		}
	})

	if err := s.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info(ctx, "[SHUTDOWN] Stopping scheduler", logging.Fields{})
	s.Stop()
	return nil
}
