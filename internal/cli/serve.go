package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrlokans/offlinereader/internal/config"
	"github.com/mrlokans/offlinereader/internal/entrypoint"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local proxy and control API",
	Long: `Start the HTTP server. Reader routes are proxied to REMOTE_URL and answered
from the local cache when the server is unreachable; /local/* is the control API.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	entrypoint.Run(config.NewConfig(), Version)
	return nil
}
