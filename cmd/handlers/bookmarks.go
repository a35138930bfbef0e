package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trendscope/internal/markdown"
)

// NewBookmarksCmd creates the bookmarks command with subcommands
func NewBookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage bookmarked posts",
		Long: `Bookmarks are saved from the web UI or the terminal dashboard and stored in the data directory.

Subcommands:
  list    - Show bookmarks in order
  remove  - Remove the bookmark at a position
  clear   - Remove every bookmark`,
	}

	cmd.AddCommand(newBookmarksListCmd())
	cmd.AddCommand(newBookmarksRemoveCmd())
	cmd.AddCommand(newBookmarksClearCmd())
	return cmd
}

func newBookmarksListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show bookmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			bookmarks, err := a.db.ListBookmarks()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bookmarks)
			}
			if len(bookmarks) == 0 {
				fmt.Fprintln(out, "No bookmarks yet")
				return nil
			}
			for i, item := range bookmarks {
				fmt.Fprintf(out, "%2d. %s: %s\n", i, item.Author.DisplayName(), markdown.CollapseWhitespace(item.Text()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "terminal", "Output format: terminal, json")
	return cmd
}

func newBookmarksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove [index]",
		Short: "Remove the bookmark at a position (as shown by list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			removed, err := a.db.RemoveBookmarkAt(index)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed bookmark %s\n", removed.UUID)
			return nil
		},
	}
}

func newBookmarksClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every bookmark",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.ClearBookmarks(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bookmarks cleared")
			return nil
		},
	}
}
