package handlers

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCredentialCmd creates the credential command for the saved Membit API key
func NewCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Save or clear the Membit API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [api-key]",
		Short: "Save the Membit API key in the data directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.SaveAPIKey(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the saved Membit API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.db.SaveAPIKey(""); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
			return nil
		},
	})

	return cmd
}
