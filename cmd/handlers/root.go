package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"trendscope/internal/config"
	"trendscope/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "trendscope",
		Short: "Trendscope searches social trends and turns them into AI insights.",
		Long: `Trendscope searches trending topic clusters and individual posts through the
Membit API, filters them by relevance, and uses Gemini to summarize them,
answer questions about them, and draft X posts from the summary.

Run it as a web API (serve), a terminal dashboard (tui), or one-shot commands.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.trendscope.yaml or $HOME/.trendscope.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewTUICmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewClusterCmd())
	rootCmd.AddCommand(NewSummarizeCmd())
	rootCmd.AddCommand(NewAskCmd())
	rootCmd.AddCommand(NewPostCmd())
	rootCmd.AddCommand(NewBookmarksCmd())
	rootCmd.AddCommand(NewCredentialCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads configuration and installs the configured logger.
func initConfig() error {
	if _, err := config.Load(cfgFile); err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	logging := config.GetLogging()
	if config.IsDebugMode() {
		logging.Level = "debug"
	}
	logger.Configure(logger.Options{
		Level:  logging.Level,
		Format: logging.Format,
	})
	if used := config.ConfigFileUsed(); used != "" {
		logger.Debug("Using config file", "path", used)
	}
	return nil
}
