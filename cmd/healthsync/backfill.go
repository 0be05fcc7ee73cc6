package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	"github.com/fitglue/healthsync/pkg/pipeline"
)

const defaultBackfillDays = 14

func (a *app) backfillCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Replay the pipeline over a range of target dates",
		Long: `Runs the daily pipeline for every target date in [start, end], oldest
first, pausing 10s between days (15s after a failed day). Without --start and
--end the last --days target dates ending yesterday are replayed.`,
		Args: cobra.NoArgs,
		RunE: a.runBackfill,
	}
	cmd.Flags().String("start", "", "First target date YYYY-MM-DD")
	cmd.Flags().String("end", "", "Last target date YYYY-MM-DD")
	cmd.Flags().Int("days", defaultBackfillDays, "Number of days ending yesterday, when --start/--end are not given")
	cmd.Flags().Bool("reset-sheet", false, "Clear the sheet and rewrite the header row before replaying")
	return cmd
}

func (a *app) runBackfill(cmd *cobra.Command, args []string) error {
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	days, _ := cmd.Flags().GetInt("days")
	resetSheet, _ := cmd.Flags().GetBool("reset-sheet")

	start, end, err := resolveWindow(startFlag, endFlag, days, a.clock())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := a.open(ctx, a.cfg, a.logger, true)
	if err != nil {
		return err
	}
	defer rt.close(a.logger)

	if resetSheet {
		if rt.Resetter == nil {
			return errors.New("the configured sink cannot be reset")
		}
		if err := rt.Resetter.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset sheet: %w", err)
		}
		fmt.Fprintln(a.out, "Sheet reset; header row written")
	}

	report, err := rt.Backfill.Run(ctx, start, end)
	if report != nil {
		printReport(a, report)
	}
	if err != nil {
		return a.explain(err)
	}
	return nil
}

func resolveWindow(startFlag, endFlag string, days int, now time.Time) (start, end time.Time, err error) {
	switch {
	case startFlag == "" && endFlag == "":
		if days < 1 {
			return start, end, fmt.Errorf("--days must be at least 1, got %d", days)
		}
		start, end = pipeline.DefaultWindow(now, days)
		return start, end, nil
	case startFlag == "" || endFlag == "":
		return start, end, errors.New("--start and --end must be given together")
	}

	if start, err = healthdate.Parse(startFlag); err != nil {
		return start, end, err
	}
	if end, err = healthdate.Parse(endFlag); err != nil {
		return start, end, err
	}
	return start, end, nil
}

func printReport(a *app, report *pipeline.BackfillReport) {
	fmt.Fprintf(a.out, "Backfill %s..%s (run %s): %d succeeded, %d failed\n",
		report.Start, report.End, report.RunID, report.Succeeded, report.Failed)
	if failed := report.FailedDates(); len(failed) > 0 {
		fmt.Fprintf(a.out, "Failed target dates: %s\n", strings.Join(failed, ", "))
	}
}
