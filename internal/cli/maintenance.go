package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mrlokans/offlinereader/internal/entrypoint"
	"github.com/mrlokans/offlinereader/internal/settingsstore"
)

var (
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Replay queued highlight and progress changes against the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				result, err := app.Outbox.FlushOutbox(ctx)
				if err != nil {
					return err
				}
				message := fmt.Sprintf("success %d, failed %d, skipped %d", result.Success, result.Failed, result.Skipped)
				_ = app.Settings.SetJobStatus(ctx, settingsstore.JobSync, settingsstore.StatusSuccess, message)
				fmt.Fprintf(cmd.OutOrStdout(), "Outbox flushed: %s\n", message)
				return nil
			})
		},
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Expire idle books and evict down to the cache limit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				result, err := app.Engine.RunCleanup(ctx)
				if err != nil {
					_ = app.Settings.SetJobStatus(ctx, settingsstore.JobCleanup, settingsstore.StatusFailed, err.Error())
					return err
				}
				message := fmt.Sprintf("expired %d, evicted %d", result.Expired, result.Evicted)
				_ = app.Settings.SetJobStatus(ctx, settingsstore.JobCleanup, settingsstore.StatusSuccess, message)
				fmt.Fprintf(cmd.OutOrStdout(), "Cleanup done: %s\n", message)
				return nil
			})
		},
	}
)
