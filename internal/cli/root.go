package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mrlokans/offlinereader/internal/config"
	"github.com/mrlokans/offlinereader/internal/entrypoint"
)

// Version is set by main from build-time ldflags.
var Version = "dev"

var (
	// RootCmd represents the base command. Without a subcommand it serves.
	RootCmd = &cobra.Command{
		Use:   "offlinereader",
		Short: "offline cache for the reading server",
		Long: `offlinereader keeps a bounded local copy of downloaded books, queues
highlight and progress edits while the reading server is unreachable, and
serves cached chapters when it is down.

Configuration is read from the environment, .env and .env.local.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of offlinereader",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "offlinereader v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(downloadCmd)
	RootCmd.AddCommand(flushCmd)
	RootCmd.AddCommand(cleanupCmd)
	RootCmd.AddCommand(booksCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(versionCmd)
}

// initConfig loads .env files before viper reads the environment.
func initConfig() {
	config.LoadEnvFiles()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// withApp runs fn against the wired components and closes them afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *entrypoint.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := entrypoint.NewApp(ctx, config.NewConfig())
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}
