// Package insights builds prompts over the displayed results of a tab, calls the generation
// client and writes the rendered outcome, success or failure, back into the tab's state.
package insights

import (
	"context"
	"errors"
	"strings"

	"trendscope/internal/core"
	"trendscope/internal/llm"
	"trendscope/internal/logger"
	"trendscope/internal/markdown"
	"trendscope/internal/render"
	"trendscope/internal/state"
)

const maxPostLength = render.MaxPostLength

// ErrStale is returned when a completion was dropped because a newer request superseded it.
var ErrStale = errors.New("result superseded by a newer request")

// Generator defines the generation operations the orchestrators need
type Generator interface {
	GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error)
	GenerateJSON(ctx context.Context, prompt string, options llm.TextGenerationOptions) (any, error)
}

// Options configures the orchestrators.
type Options struct {
	SummaryLimit int // Items included in the summary prompt
	QueryLimit   int // Items included in the question prompt

	// DiscardStale drops completions whose request is no longer the latest for its tab slot.
	// Off by default: the last completion to arrive wins.
	DiscardStale bool
}

// DefaultOptions returns the prompt caps the dashboard uses.
func DefaultOptions() Options {
	return Options{
		SummaryLimit: 20,
		QueryLimit:   15,
	}
}

// Orchestrator runs summary, question and post generation for a state store.
type Orchestrator struct {
	gen     Generator
	store   *state.Store
	options Options
}

// NewOrchestrator creates an orchestrator; zero limits fall back to DefaultOptions.
func NewOrchestrator(gen Generator, store *state.Store, options Options) *Orchestrator {
	defaults := DefaultOptions()
	if options.SummaryLimit <= 0 {
		options.SummaryLimit = defaults.SummaryLimit
	}
	if options.QueryLimit <= 0 {
		options.QueryLimit = defaults.QueryLimit
	}
	return &Orchestrator{gen: gen, store: store, options: options}
}

func head(items []core.ResultItem, n int) []core.ResultItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// commit writes update into tab's state, honouring DiscardStale.
func (o *Orchestrator) commit(tab core.TabID, slot state.Slot, token uint64, update core.TabStateUpdate) error {
	if !o.options.DiscardStale {
		o.store.UpdateTabState(tab, update)
		return nil
	}
	if _, ok := o.store.UpdateTabStateIfLatest(tab, slot, token, update); !ok {
		logger.Info("Discarding stale completion", "tab", tab, "slot", slot)
		return ErrStale
	}
	return nil
}

// GenerateSummary analyzes up to SummaryLimit items and stores the rendered insight as the tab's
// summary. On failure the error display is stored in the same field. The stored fragment is
// returned together with the failure, if any.
func (o *Orchestrator) GenerateSummary(ctx context.Context, tab core.TabID, items []core.ResultItem) (string, error) {
	token := o.store.BeginRequest(tab, state.SlotSummary)
	items = head(items, o.options.SummaryLimit)

	logger.Debug("Generating summary", "tab", tab, "items", len(items))
	value, err := o.gen.GenerateJSON(ctx, BuildSummaryPrompt(tab, items), llm.TextGenerationOptions{
		ResponseSchema: SummarySchema(),
	})
	if err != nil {
		logger.Warn("Summary generation failed", "tab", tab, "kind", core.Kind(err), "error", err.Error())
		display := render.Error(err.Error())
		if cerr := o.commit(tab, state.SlotSummary, token, core.TabStateUpdate{
			AISummaryHTML: &display,
			Insight:       core.Ptr[*core.GeneratedInsight](nil),
		}); cerr != nil {
			return display, cerr
		}
		return display, err
	}

	insight := NormalizeInsight(value)
	display := render.Insight(tab, insight)
	if err := o.commit(tab, state.SlotSummary, token, core.TabStateUpdate{
		AISummaryHTML:     &display,
		Insight:           &insight,
		GeneratedPostText: core.Ptr(""),
	}); err != nil {
		return display, err
	}
	logger.Info("Summary generated", "tab", tab, "items", len(items), "insights", len(insight.KeyInsights))
	return display, nil
}

// AnswerQuery answers question from up to QueryLimit items and stores the Q/A fragment.
// An empty question or empty item set is rejected before any generation call and leaves state untouched.
func (o *Orchestrator) AnswerQuery(ctx context.Context, tab core.TabID, items []core.ResultItem, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return render.Error(core.ErrEmptyQuestion.Error()), core.ErrEmptyQuestion
	}
	if len(items) == 0 {
		return render.Error(core.ErrNoResults.Error()), core.ErrNoResults
	}

	token := o.store.BeginRequest(tab, state.SlotQuery)
	items = head(items, o.options.QueryLimit)

	logger.Debug("Answering question", "tab", tab, "items", len(items))
	answer, err := o.gen.GenerateText(ctx, BuildQueryPrompt(tab, items, question), llm.TextGenerationOptions{})

	var display string
	if err != nil {
		logger.Warn("Question answering failed", "tab", tab, "kind", core.Kind(err), "error", err.Error())
		display = render.Error(err.Error())
	} else {
		display = render.Answer(question, markdown.ToSafeHTML(answer))
	}

	if cerr := o.commit(tab, state.SlotQuery, token, core.TabStateUpdate{
		NLQueryInput:        &question,
		NLQueryResponseHTML: &display,
	}); cerr != nil {
		return display, cerr
	}
	return display, err
}

// ComposePost turns the tab's stored summary into a single X post and stores it.
// It returns the post text; the stored fragment is the rendered post or an error display.
func (o *Orchestrator) ComposePost(ctx context.Context, tab core.TabID) (string, error) {
	summary := o.store.TabState(tab).AISummaryHTML
	if !render.HasRenderableSummary(summary) {
		return "", core.ErrNoSummary
	}
	summaryText := markdown.PlainText(summary)
	if summaryText == "" {
		return "", core.ErrNoSummary
	}

	token := o.store.BeginRequest(tab, state.SlotPost)
	response, err := o.gen.GenerateText(ctx, BuildPostPrompt(summaryText), llm.TextGenerationOptions{})
	if err != nil {
		logger.Warn("Post composition failed", "tab", tab, "kind", core.Kind(err), "error", err.Error())
		display := render.Error(err.Error())
		if cerr := o.commit(tab, state.SlotPost, token, core.TabStateUpdate{GeneratedPostText: &display}); cerr != nil {
			return "", cerr
		}
		return "", err
	}

	post := FormatPost(response)
	display := render.Post(post)
	if err := o.commit(tab, state.SlotPost, token, core.TabStateUpdate{GeneratedPostText: &display}); err != nil {
		return post, err
	}
	return post, nil
}
