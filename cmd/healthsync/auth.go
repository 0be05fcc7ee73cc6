package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fitglue/healthsync/pkg/infrastructure/oauth"
	"github.com/fitglue/healthsync/pkg/types"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored Fitbit authorization",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print a Fitbit authorization URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAuth(cmd, false)
		},
	}, &cobra.Command{
		Use:   "reset",
		Short: "Forget the stored Fitbit tokens and print a fresh authorization URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAuth(cmd, true)
		},
	})
	return cmd
}

func (a *app) runAuth(cmd *cobra.Command, reset bool) error {
	ctx := cmd.Context()
	rt, err := a.open(ctx, a.cfg, a.logger, false)
	if err != nil {
		return err
	}
	defer rt.close(a.logger)

	if reset {
		if err := rt.Fitbit.Reset(ctx); err != nil {
			return fmt.Errorf("failed to clear stored tokens: %w", err)
		}
		fmt.Fprintln(a.out, "Stored Fitbit tokens cleared.")
	}

	state, err := oauth.IssueState(ctx, rt.States, rt.UserID, types.ProviderFitbit, a.clock())
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Authorize Fitbit access at:\n%s\n", rt.Fitbit.AuthorizationURL(state))
	return nil
}
