// Command healthsync runs the Fitbit daily metrics pipeline from a terminal:
// one day, a backfill range, or the re-authorization helpers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fitglue/healthsync/pkg/infrastructure/sentry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer sentry.RecoverAndCapture(nil)

	if err := newApp(os.Stdout, os.Stderr).rootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
