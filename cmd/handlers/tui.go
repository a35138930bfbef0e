package handlers

import (
	"github.com/spf13/cobra"

	"trendscope/internal/tui"
)

// NewTUICmd creates the TUI command
func NewTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal dashboard",
		Long: `Launch the two-tab terminal dashboard: search clusters or posts, filter by score,
generate insights, ask questions, draft posts, bookmark and export.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			session, err := a.newSession()
			if err != nil {
				return err
			}
			return tui.Run(session, a.cfg.App.ExportDir)
		},
	}
}
