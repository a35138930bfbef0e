package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"trendscope/internal/core"
	"trendscope/internal/dashboard"
)

// NewSummarizeCmd creates the summarize command
func NewSummarizeCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "summarize [query]",
		Short: "Search, then generate AI insights for the results",
		Long: `Search the Membit API and ask Gemini for a structured analysis of the results:
a summary, key insights, a sentiment breakdown and, for posts, notable voices.

Examples:
  trendscope summarize robotics
  trendscope summarize "ai safety" --tab posts --min-score 0.6 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, session, _, err := startSession(cmd, &flags, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer a.close()

			var view dashboard.View
			err = withGeneration(a, cmd, func(ctx context.Context) error {
				view, err = session.GenerateSummary(ctx)
				return err
			})
			if err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), flags.format, view, view.State.AISummaryHTML)
		},
	}

	flags.register(cmd)
	return cmd
}

// NewAskCmd creates the ask command
func NewAskCmd() *cobra.Command {
	var (
		flags    searchFlags
		question string
	)

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Search, then answer a question about the results",
		Long: `Search the Membit API and answer a natural-language question grounded in the results.

Examples:
  trendscope ask robotics --question "Which companies are mentioned most?"
  trendscope ask "ai safety" --tab posts -q "What is the overall mood?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				return core.ErrEmptyQuestion
			}
			a, session, _, err := startSession(cmd, &flags, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer a.close()

			var view dashboard.View
			err = withGeneration(a, cmd, func(ctx context.Context) error {
				view, err = session.AskQuestion(ctx, question)
				return err
			})
			if err != nil {
				return err
			}
			return printView(cmd.OutOrStdout(), flags.format, view, view.State.NLQueryResponseHTML)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&question, "question", "q", "", "Question to answer (required)")
	return cmd
}

// NewPostCmd creates the post command
func NewPostCmd() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "post [query]",
		Short: "Search, summarize, then draft an X post from the summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, session, _, err := startSession(cmd, &flags, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer a.close()

			var (
				post string
				view dashboard.View
			)
			err = withGeneration(a, cmd, func(ctx context.Context) error {
				if _, err := session.GenerateSummary(ctx); err != nil {
					return err
				}
				post, view, err = session.ComposePost(ctx)
				return err
			})
			if err != nil {
				return err
			}

			if flags.format == "json" {
				return printView(cmd.OutOrStdout(), flags.format, view, "")
			}
			fmt.Fprintln(cmd.OutOrStdout(), post)
			fmt.Fprintf(cmd.ErrOrStderr(), "(%d/280 characters)\n", len([]rune(post)))
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
