package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trendscope/internal/core"
	"trendscope/internal/dashboard"
	"trendscope/internal/markdown"
	"trendscope/internal/render"
)

// searchFlags are shared by every command that starts with a search.
type searchFlags struct {
	tab      string
	limit    int
	minScore float64
	format   string
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tab, "tab", string(core.TabClusters), "What to search: clusters or posts")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", 0, "Maximum number of results (default from config: 10)")
	cmd.Flags().Float64Var(&f.minScore, "min-score", 0.5, "Only keep results with search score >= this value (enables the filter)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "terminal", "Output format: terminal, json")
}

func (f *searchFlags) validate() error {
	if f.format != "terminal" && f.format != "json" {
		return fmt.Errorf("invalid format '%s'. Valid formats: terminal, json", f.format)
	}
	return nil
}

// startSession opens the app, prepares a session for the requested tab and filter and runs the search.
func startSession(cmd *cobra.Command, f *searchFlags, query string) (*app, *dashboard.Session, dashboard.View, error) {
	if err := f.validate(); err != nil {
		return nil, nil, dashboard.View{}, err
	}
	tab, err := core.ParseTabID(f.tab)
	if err != nil {
		return nil, nil, dashboard.View{}, err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return nil, nil, dashboard.View{}, err
	}
	session, err := a.newSession()
	if err != nil {
		a.close()
		return nil, nil, dashboard.View{}, err
	}

	if _, err := session.SwitchTab(tab, nil); err != nil {
		a.close()
		return nil, nil, dashboard.View{}, err
	}
	if cmd.Flags().Changed("min-score") {
		if _, err := session.SetFilter(core.FilterConfig{UseSearchScore: true, MinSearchScore: f.minScore}); err != nil {
			a.close()
			return nil, nil, dashboard.View{}, err
		}
	}

	view, err := session.Search(cmd.Context(), query, f.limit)
	if err != nil {
		a.close()
		return nil, nil, view, err
	}
	return a, session, view, nil
}

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	var (
		flags  searchFlags
		export bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search trending clusters or posts",
		Long: `Search the Membit API for trending topic clusters or individual posts.

Examples:
  # Trending clusters about robotics
  trendscope search robotics

  # The 10 most relevant posts, keeping only scores of at least 0.5
  trendscope search "ai safety" --tab posts --limit 10 --min-score 0.5

  # Save the displayed results as JSON
  trendscope search "ai safety" --tab posts --export`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, session, view, err := startSession(cmd, &flags, strings.Join(args, " "))
			if err != nil {
				return err
			}
			defer a.close()

			if export {
				name, data, err := session.Export(time.Now())
				if err != nil {
					return err
				}
				path, err := render.WriteExport(data, a.cfg.App.ExportDir, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d results to %s\n", len(view.Results), path)
			}
			return printView(cmd.OutOrStdout(), flags.format, view, "")
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&export, "export", false, "Write the displayed results to the export directory")
	return cmd
}

// NewClusterCmd creates the cluster detail command
func NewClusterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster [label]",
		Short: "Show a cluster with a preview of its posts",
		Args:  cobra.MinimumNArgs(1),
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

			cluster, err := session.ClusterInfo(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n%s\n\n", cluster.Label, cluster.Category, cluster.Summary)
			for _, post := range cluster.Posts {
				fmt.Fprintf(out, "- %s: %s\n", post.Author.DisplayName(), markdown.CollapseWhitespace(post.Text()))
			}
			return nil
		},
	}
	return cmd
}

// printView writes the view as JSON or as a terminal listing. section is an optional rendered
// fragment (summary, answer or post) shown after the results.
func printView(w io.Writer, format string, view dashboard.View, section string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}

	if len(view.Results) == 0 {
		if view.EmptyMessage != "" {
			fmt.Fprintln(w, view.EmptyMessage)
		} else {
			fmt.Fprintln(w, "No results found")
		}
	} else {
		fmt.Fprintf(w, "%d of %d %s\n\n", len(view.Results), view.RawCount, view.Tab)
		for i, item := range view.Results {
			fmt.Fprintf(w, "%2d. %s\n", i+1, resultLine(view.Tab, item))
		}
	}

	if section != "" {
		fmt.Fprintf(w, "\n%s\n", markdown.PlainText(section))
	}
	return nil
}

func resultLine(tab core.TabID, item core.ResultItem) string {
	score := "  -  "
	if s, ok := item.Score(); ok {
		score = fmt.Sprintf("%.3f", s)
	}
	if tab == core.TabClusters {
		return fmt.Sprintf("[%s] %s (%s) - %s", score, item.Label, item.Category, markdown.CollapseWhitespace(item.Summary))
	}
	return fmt.Sprintf("[%s] %s: %s (%d engagements)", score, item.Author.DisplayName(),
		markdown.CollapseWhitespace(item.Text()), item.Engagement.Total())
}

func withGeneration(a *app, cmd *cobra.Command, run func(ctx context.Context) error) error {
	ctx, cancel := a.generationContext(cmd.Context())
	defer cancel()
	return run(ctx)
}
