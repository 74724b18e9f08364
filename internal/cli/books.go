package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/offlinereader/internal/entrypoint"
)

var (
	downloadCmd = &cobra.Command{
		Use:   "download <book-id>",
		Short: "Download a book for offline reading",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				out := cmd.OutOrStdout()
				quiet, _ := cmd.Flags().GetBool("quiet")

				var onProgress func(completed, total int)
				if !quiet {
					onProgress = func(completed, total int) {
						fmt.Fprintf(out, "\r%d/%d", completed, total)
					}
				}

				result, err := app.Orchestrator.DownloadBook(ctx, args[0], onProgress)
				if onProgress != nil {
					fmt.Fprintln(out)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Downloaded %s: %d chapters, %d images\n", args[0], result.Chapters, result.Images)
				return nil
			})
		},
	}

	booksCmd = &cobra.Command{
		Use:   "books",
		Short: "List cached books, least recently read first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				books, err := app.DB.GetAllBooks(ctx)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books cached.")
					return nil
				}
				for _, b := range books {
					fmt.Fprintf(out, "%s\t%s\t%s\tlast read %s\n",
						b.BookID, b.Title, strings.Join(b.Authors, ", "), formatTime(b.LastReadAt))
				}
				return nil
			})
		},
	}

	removeCmd = &cobra.Command{
		Use:   "remove <book-id>",
		Short: "Remove a book and its content from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, app *entrypoint.App) error {
				book, err := app.DB.GetBook(ctx, args[0])
				if err != nil {
					return err
				}
				if book == nil {
					return fmt.Errorf("book %s is not cached", args[0])
				}
				if err := app.Engine.RemoveBook(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
				return nil
			})
		},
	}
)

func init() {
	downloadCmd.Flags().BoolP("quiet", "q", false, "do not print progress")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
