// Package dashboard wires search, filtering, generation and persistence into one user session.
// Front-ends (HTTP API, terminal UI, CLI) drive a Session and render its View.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"trendscope/internal/core"
	"trendscope/internal/filter"
	"trendscope/internal/insights"
	"trendscope/internal/logger"
	"trendscope/internal/membit"
	"trendscope/internal/render"
	"trendscope/internal/state"
)

// MinQueryLength is the shortest accepted search query, in characters.
const MinQueryLength = 3

// Searcher is the search API boundary.
type Searcher interface {
	Search(ctx context.Context, tab core.TabID, req membit.SearchRequest) ([]core.ResultItem, error)
	ClusterInfo(ctx context.Context, label, apiKey string) (*core.ResultItem, error)
}

// Persistence is the durable storage boundary for bookmarks and the saved credential.
type Persistence interface {
	AddBookmark(item core.ResultItem) (bool, error)
	ListBookmarks() ([]core.ResultItem, error)
	RemoveBookmarkAt(index int) (core.ResultItem, error)
	SaveAPIKey(apiKey string) error
	LoadAPIKey() (string, error)
}

// Options configures a session.
type Options struct {
	MaxResults int
	Filter     core.FilterConfig
	Insights   insights.Options

	// APIKey is used when no credential has been saved. It is not persisted.
	APIKey string
}

// Session is one user's dashboard: two tabs of results and UI state, the process-wide filter,
// the Membit credential and the bookmark set.
type Session struct {
	ID string

	store      *state.Store
	searcher   Searcher
	persist    Persistence
	orch       *insights.Orchestrator
	maxResults int

	mu     sync.Mutex
	apiKey string
}

// NewSession creates a session and loads the saved credential, falling back to opts.APIKey.
func NewSession(searcher Searcher, gen insights.Generator, persist Persistence, opts Options) (*Session, error) {
	st := state.NewStore()
	st.SetFilter(opts.Filter)

	s := &Session{
		ID:         uuid.NewString(),
		store:      st,
		searcher:   searcher,
		persist:    persist,
		orch:       insights.NewOrchestrator(gen, st, opts.Insights),
		maxResults: opts.MaxResults,
	}
	if s.maxResults <= 0 {
		s.maxResults = membit.DefaultMaxResults
	}

	key, err := persist.LoadAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load saved API key: %w", err)
	}
	if key == "" {
		key = strings.TrimSpace(opts.APIKey)
	}
	s.apiKey = key
	return s, nil
}

// Store exposes the session's state store.
func (s *Session) Store() *state.Store {
	return s.store
}

// View is what a front-end needs to draw the active tab.
type View struct {
	Tab          core.TabID        `json:"tab"`
	Placeholder  string            `json:"placeholder"`
	Filter       core.FilterConfig `json:"filter"`
	State        core.TabState     `json:"state"`
	Results      []core.ResultItem `json:"results"`
	RawCount     int               `json:"rawCount"`
	EmptyMessage string            `json:"emptyMessage,omitempty"`
	HasAPIKey    bool              `json:"hasApiKey"`
}

// View returns the active tab's view.
func (s *Session) View() View {
	return s.viewOf(s.store.CurrentTab())
}

func (s *Session) viewOf(tab core.TabID) View {
	cfg := s.store.Filter()
	raw := s.store.RawResults(tab)
	displayed := s.store.DisplayedResults(tab)
	v := View{
		Tab:         tab,
		Placeholder: tab.Placeholder(),
		Filter:      cfg,
		State:       s.store.TabState(tab),
		Results:     displayed,
		RawCount:    len(raw),
		HasAPIKey:   s.APIKey() != "",
	}
	if len(raw) > 0 && len(displayed) == 0 {
		v.EmptyMessage = filter.EmptyMessage(cfg)
	}
	return v
}

// APIKey returns the Membit credential in use.
func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

// SetAPIKey replaces and persists the Membit credential.
func (s *Session) SetAPIKey(apiKey string) error {
	apiKey = strings.TrimSpace(apiKey)
	if err := s.persist.SaveAPIKey(apiKey); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}
	s.mu.Lock()
	s.apiKey = apiKey
	s.mu.Unlock()
	return nil
}

// Search runs query on the active tab. The tab's results and insights are reset before the
// fetch; on success the raw results are stored and the displayed set recomputed.
func (s *Session) Search(ctx context.Context, query string, maxResults int) (View, error) {
	tab := s.store.CurrentTab()
	trimmed := strings.TrimSpace(query)
	if utf8.RuneCountInString(trimmed) < MinQueryLength {
		return s.viewOf(tab), core.ErrQueryTooShort
	}
	apiKey := s.APIKey()
	if apiKey == "" {
		return s.viewOf(tab), core.ErrMissingAPIKey
	}
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	s.store.ClearResults(tab)
	s.store.ResetTabInsights(tab)
	s.store.UpdateTabState(tab, core.TabStateUpdate{SearchInput: &query})

	items, err := s.searcher.Search(ctx, tab, membit.SearchRequest{Query: trimmed, APIKey: apiKey, MaxResults: maxResults})
	if err != nil {
		logger.Warn("Search failed", "tab", tab, "query", trimmed, "kind", core.Kind(err))
		return s.viewOf(tab), err
	}

	displayed := s.store.SetResults(tab, items)
	logger.Info("Search stored", "tab", tab, "query", trimmed, "raw", len(items), "displayed", len(displayed))
	return s.viewOf(tab), nil
}

// SwitchTab saves snapshot (the values the front-end shows for the tab being left, may be nil)
// into the current tab, then activates tab and recomputes its displayed results.
func (s *Session) SwitchTab(tab core.TabID, snapshot *core.TabStateUpdate) (View, error) {
	if !tab.Valid() {
		return s.View(), core.NewValidationError(fmt.Sprintf("unknown tab %q", tab))
	}
	if snapshot != nil {
		s.store.UpdateTabState(s.store.CurrentTab(), *snapshot)
	}
	if err := s.store.SetCurrentTab(tab); err != nil {
		return s.View(), err
	}
	s.store.Refilter(tab)
	return s.viewOf(tab), nil
}

// SetFilter replaces the filter and recomputes the active tab.
func (s *Session) SetFilter(cfg core.FilterConfig) (View, error) {
	if math.IsNaN(cfg.MinSearchScore) || math.IsInf(cfg.MinSearchScore, 0) {
		return s.View(), core.NewValidationError("minimum search score must be a finite number")
	}
	s.store.SetFilter(cfg)
	return s.View(), nil
}

// GenerateSummary analyzes the active tab's displayed results.
// A generation failure is stored in the summary slot and also returned.
func (s *Session) GenerateSummary(ctx context.Context) (View, error) {
	tab := s.store.CurrentTab()
	_, err := s.orch.GenerateSummary(ctx, tab, s.store.DisplayedResults(tab))
	return s.viewOf(tab), err
}

// AskQuestion answers question over the active tab's displayed results.
func (s *Session) AskQuestion(ctx context.Context, question string) (View, error) {
	tab := s.store.CurrentTab()
	_, err := s.orch.AnswerQuery(ctx, tab, s.store.DisplayedResults(tab), question)
	return s.viewOf(tab), err
}

// ComposePost derives an X post from the active tab's summary.
func (s *Session) ComposePost(ctx context.Context) (string, View, error) {
	tab := s.store.CurrentTab()
	post, err := s.orch.ComposePost(ctx, tab)
	return post, s.viewOf(tab), err
}

// ClusterInfo fetches a cluster's detail with a preview of its posts.
func (s *Session) ClusterInfo(ctx context.Context, label string) (*core.ResultItem, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, core.NewValidationError("cluster label is required")
	}
	apiKey := s.APIKey()
	if apiKey == "" {
		return nil, core.ErrMissingAPIKey
	}
	return s.searcher.ClusterInfo(ctx, label, apiKey)
}

// Bookmarks lists the saved bookmarks.
func (s *Session) Bookmarks() ([]core.ResultItem, error) {
	return s.persist.ListBookmarks()
}

// AddBookmark bookmarks the displayed post with id. It reports false when it was already bookmarked.
func (s *Session) AddBookmark(id string) (bool, error) {
	tab := s.store.CurrentTab()
	for _, item := range s.store.DisplayedResults(tab) {
		if item.UUID != "" && item.UUID == id {
			return s.persist.AddBookmark(item)
		}
	}
	return false, core.NewValidationError(fmt.Sprintf("post %q is not in the current results", id))
}

// RemoveBookmark removes the bookmark at position index.
func (s *Session) RemoveBookmark(index int) (core.ResultItem, error) {
	return s.persist.RemoveBookmarkAt(index)
}

// Export returns the active tab's displayed results as indented JSON with its download name.
func (s *Session) Export(now time.Time) (string, []byte, error) {
	data, err := json.MarshalIndent(s.store.DisplayedResults(s.store.CurrentTab()), "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return render.ExportFileName(now), data, nil
}
