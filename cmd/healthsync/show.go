package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitglue/healthsync/pkg/domain/healthdate"
	"github.com/fitglue/healthsync/pkg/infrastructure/database"
)

func (a *app) showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the archived record for a metrics date",
		Long: `Reads the record stored in Firestore for a metrics date. The metrics date
is the row's Date column, two days before the target date it was synced for.`,
		Args: cobra.NoArgs,
		RunE: a.runShow,
	}
	cmd.Flags().String("date", "", "Metrics date YYYY-MM-DD (required)")
	cmd.Flags().StringP("output", "o", outputText, "Output: text, json or yaml")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (a *app) runShow(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	output, _ := cmd.Flags().GetString("output")

	if err := checkOutput(output); err != nil {
		return err
	}
	day, err := healthdate.Parse(date)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	rt, err := a.open(ctx, a.cfg, a.logger, false)
	if err != nil {
		return err
	}
	defer rt.close(a.logger)

	rec, err := rt.Records.GetDailyMetrics(ctx, rt.UserID, healthdate.Format(day))
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no archived record for %s", healthdate.Format(day))
	}
	if err != nil {
		return err
	}
	return writeRecord(a.out, rec, output)
}
