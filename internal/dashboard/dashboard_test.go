package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"trendscope/internal/core"
	"trendscope/internal/insights"
	"trendscope/internal/llm"
	"trendscope/internal/membit"
	"trendscope/internal/store"
)

type fakeSearcher struct {
	calls   atomic.Int32
	lastReq membit.SearchRequest
	results map[core.TabID][]core.ResultItem
	err     error
	cluster *core.ResultItem
}

func (f *fakeSearcher) Search(ctx context.Context, tab core.TabID, req membit.SearchRequest) ([]core.ResultItem, error) {
	f.calls.Add(1)
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	items := f.results[tab]
	if len(items) > req.MaxResults {
		items = items[:req.MaxResults]
	}
	return items, nil
}

func (f *fakeSearcher) ClusterInfo(ctx context.Context, label, apiKey string) (*core.ResultItem, error) {
	f.calls.Add(1)
	return f.cluster, f.err
}

type fakeGenerator struct {
	calls atomic.Int32
	json  any
	text  string
	err   error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string, options llm.TextGenerationOptions) (string, error) {
	f.calls.Add(1)
	return f.text, f.err
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, prompt string, options llm.TextGenerationOptions) (any, error) {
	f.calls.Add(1)
	return f.json, f.err
}

func scoredPosts(n int) []core.ResultItem {
	items := make([]core.ResultItem, n)
	for i := range items {
		score := float64(i) / float64(n)
		items[i] = core.ResultItem{UUID: fmt.Sprintf("p-%d", i), Content: "post", SearchScore: &score}
	}
	return items
}

func newTestSession(t *testing.T, searcher *fakeSearcher, gen *fakeGenerator) (*Session, *store.Store) {
	t.Helper()
	db, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.SaveAPIKey("membit-key"); err != nil {
		t.Fatalf("SaveAPIKey failed: %v", err)
	}

	s, err := NewSession(searcher, gen, db, Options{Filter: core.DefaultFilterConfig()})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	return s, db
}

func TestNewSession_LoadsSavedKey(t *testing.T) {
	s, _ := newTestSession(t, &fakeSearcher{}, &fakeGenerator{})
	if s.APIKey() != "membit-key" || s.ID == "" {
		t.Errorf("Expected saved key and session id, got %q %q", s.APIKey(), s.ID)
	}
	if v := s.View(); v.Tab != core.TabClusters || v.Placeholder != "Search for trending topic clusters..." || !v.HasAPIKey {
		t.Errorf("Unexpected initial view %+v", v)
	}
}

func TestSearch_Validation(t *testing.T) {
	searcher := &fakeSearcher{}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})

	if _, err := s.Search(context.Background(), "  ai ", 10); !errors.Is(err, core.ErrQueryTooShort) {
		t.Errorf("Expected ErrQueryTooShort, got %v", err)
	}

	if err := s.SetAPIKey(""); err != nil {
		t.Fatalf("SetAPIKey failed: %v", err)
	}
	if _, err := s.Search(context.Background(), "ai safety", 10); !errors.Is(err, core.ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
	if searcher.calls.Load() != 0 {
		t.Error("Validation failures must not reach the search API")
	}
}

// Search, then toggle the score filter.
func TestSearch_FilterScenario(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabPosts: scoredPosts(12)}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})

	if _, err := s.SwitchTab(core.TabPosts, nil); err != nil {
		t.Fatalf("SwitchTab failed: %v", err)
	}
	v, err := s.Search(context.Background(), "ai safety", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if searcher.lastReq.Query != "ai safety" || searcher.lastReq.APIKey != "membit-key" {
		t.Errorf("Unexpected request %+v", searcher.lastReq)
	}
	if v.RawCount != 10 || len(v.Results) != 10 {
		t.Fatalf("Expected 10 raw and displayed items, got %d/%d", v.RawCount, len(v.Results))
	}

	v, _ = s.SetFilter(core.FilterConfig{UseSearchScore: true, MinSearchScore: 0.5})
	for _, item := range v.Results {
		if score, ok := item.Score(); !ok || score < 0.5 {
			t.Errorf("Item %s with score %v should have been filtered", item.UUID, score)
		}
	}
	if len(v.Results) != 4 {
		t.Errorf("Expected 4 items with score >= 0.5, got %d", len(v.Results))
	}

	v, _ = s.SetFilter(core.FilterConfig{UseSearchScore: true, MinSearchScore: 0.99})
	if len(v.Results) != 0 || v.EmptyMessage != "No results matched search score ≥ 0.99" {
		t.Errorf("Expected filtered-empty state, got %d items and %q", len(v.Results), v.EmptyMessage)
	}

	if _, err := s.SetFilter(core.FilterConfig{UseSearchScore: true, MinSearchScore: 0}); err != nil {
		t.Fatal(err)
	}
	v, _ = s.SetFilter(core.FilterConfig{UseSearchScore: false, MinSearchScore: 0.5})
	if len(v.Results) != 10 {
		t.Errorf("Expected all 10 items with filter off, got %d", len(v.Results))
	}
}

func TestSearch_ResetsTabInsights(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabClusters: scoredPosts(3)}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{json: map[string]any{"summary": "s"}})

	s.Search(context.Background(), "robotics", 10)
	if _, err := s.GenerateSummary(context.Background()); err != nil {
		t.Fatalf("GenerateSummary failed: %v", err)
	}
	v, _ := s.Search(context.Background(), "drones", 10)
	if v.State.AISummaryHTML != core.SummaryPlaceholder || v.State.SearchInput != "drones" {
		t.Errorf("Expected reset state with new input, got %+v", v.State)
	}
}

func TestSearch_FailureKeepsTabEmpty(t *testing.T) {
	searcher := &fakeSearcher{err: &core.UpstreamError{Status: 401, Message: "API Error (401): Invalid API key."}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})

	v, err := s.Search(context.Background(), "robotics", 10)
	if core.Kind(err) != "upstream" {
		t.Fatalf("Expected upstream error, got %v", err)
	}
	if v.RawCount != 0 || len(v.Results) != 0 {
		t.Errorf("Expected no results after failure, got %+v", v)
	}
}

func TestTabIsolation(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{
		core.TabClusters: scoredPosts(2),
		core.TabPosts:    scoredPosts(5),
	}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{text: "answer"})

	s.SwitchTab(core.TabPosts, nil)
	s.Search(context.Background(), "posts query", 10)
	if _, err := s.AskQuestion(context.Background(), "what?"); err != nil {
		t.Fatalf("AskQuestion failed: %v", err)
	}
	postsBefore := s.View()

	clustersView, _ := s.SwitchTab(core.TabClusters, &core.TabStateUpdate{NLQueryInput: core.Ptr("draft question")})
	if clustersView.State != core.NewTabState() {
		t.Errorf("Clusters tab should start clean, got %+v", clustersView.State)
	}
	s.Search(context.Background(), "clusters query", 10)
	clustersBefore := s.View()

	postsAfter, _ := s.SwitchTab(core.TabPosts, nil)
	if postsAfter.State.SearchInput != "posts query" || postsAfter.State.NLQueryResponseHTML != postsBefore.State.NLQueryResponseHTML {
		t.Errorf("Posts state changed: %+v", postsAfter.State)
	}
	if postsAfter.State.NLQueryInput != "draft question" {
		t.Errorf("Expected snapshot of the left tab to be kept, got %q", postsAfter.State.NLQueryInput)
	}
	if postsAfter.RawCount != 5 {
		t.Errorf("Posts results changed: %d", postsAfter.RawCount)
	}

	back, _ := s.SwitchTab(core.TabClusters, nil)
	if back.State != clustersBefore.State || back.RawCount != clustersBefore.RawCount {
		t.Error("Switching back must restore the clusters tab exactly")
	}
}

func TestSwitchTab_Invalid(t *testing.T) {
	s, _ := newTestSession(t, &fakeSearcher{}, &fakeGenerator{})
	if _, err := s.SwitchTab("feeds", nil); !core.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestAskQuestion_EmptyQuestionNoCall(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabClusters: scoredPosts(2)}}
	gen := &fakeGenerator{text: "answer"}
	s, _ := newTestSession(t, searcher, gen)
	s.Search(context.Background(), "robotics", 10)

	_, err := s.AskQuestion(context.Background(), "")
	if !core.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
	if gen.calls.Load() != 0 {
		t.Errorf("Expected no generation call, got %d", gen.calls.Load())
	}
}

func TestGenerateSummary_FailureVisibleAfterSwitch(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabClusters: scoredPosts(2)}}
	gen := &fakeGenerator{err: &core.UpstreamError{Status: 429, Message: "quota exceeded"}}
	s, _ := newTestSession(t, searcher, gen)
	s.Search(context.Background(), "robotics", 10)

	if _, err := s.GenerateSummary(context.Background()); err == nil {
		t.Fatal("Expected generation error")
	}
	s.SwitchTab(core.TabPosts, nil)
	v, _ := s.SwitchTab(core.TabClusters, nil)
	if !strings.Contains(v.State.AISummaryHTML, "quota exceeded") {
		t.Errorf("Expected failure to survive tab switch, got %q", v.State.AISummaryHTML)
	}
}

func TestComposePost(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabClusters: scoredPosts(2)}}
	gen := &fakeGenerator{json: map[string]any{"summary": "Robots everywhere."}, text: "Robots are taking over the timeline."}
	s, _ := newTestSession(t, searcher, gen)
	s.Search(context.Background(), "robotics", 10)

	if _, _, err := s.ComposePost(context.Background()); !errors.Is(err, core.ErrNoSummary) {
		t.Fatalf("Expected ErrNoSummary, got %v", err)
	}
	s.GenerateSummary(context.Background())
	post, v, err := s.ComposePost(context.Background())
	if err != nil {
		t.Fatalf("ComposePost failed: %v", err)
	}
	if post != "Robots are taking over the timeline." || !strings.Contains(v.State.GeneratedPostText, post) {
		t.Errorf("Unexpected post %q / %q", post, v.State.GeneratedPostText)
	}
}

func TestBookmarks(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabPosts: scoredPosts(3)}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})
	s.SwitchTab(core.TabPosts, nil)
	s.Search(context.Background(), "ai safety", 10)

	if added, err := s.AddBookmark("p-1"); err != nil || !added {
		t.Fatalf("Expected bookmark added, got %v %v", added, err)
	}
	if added, err := s.AddBookmark("p-1"); err != nil || added {
		t.Errorf("Expected duplicate to be reported, got %v %v", added, err)
	}
	if _, err := s.AddBookmark("missing"); !core.IsValidation(err) {
		t.Errorf("Expected validation error for unknown post, got %v", err)
	}
	s.AddBookmark("p-2")

	removed, err := s.RemoveBookmark(0)
	if err != nil || removed.UUID != "p-1" {
		t.Fatalf("Expected p-1 removed, got %v %v", removed.UUID, err)
	}
	bookmarks, _ := s.Bookmarks()
	if len(bookmarks) != 1 || bookmarks[0].UUID != "p-2" {
		t.Errorf("Unexpected bookmarks %+v", bookmarks)
	}
}

func TestExport(t *testing.T) {
	searcher := &fakeSearcher{results: map[core.TabID][]core.ResultItem{core.TabClusters: scoredPosts(2)}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})
	s.Search(context.Background(), "robotics", 10)

	name, data, err := s.Export(time.UnixMilli(42))
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if name != "membit-export-42.json" {
		t.Errorf("Unexpected file name %q", name)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 2 {
		t.Errorf("Expected two exported items, got %s (%v)", data, err)
	}
	if !strings.Contains(string(data), "\n  ") {
		t.Error("Expected indented JSON")
	}
}

func TestClusterInfo(t *testing.T) {
	searcher := &fakeSearcher{cluster: &core.ResultItem{Label: "ai", Category: "tech"}}
	s, _ := newTestSession(t, searcher, &fakeGenerator{})

	if _, err := s.ClusterInfo(context.Background(), " "); !core.IsValidation(err) {
		t.Errorf("Expected validation error for empty label, got %v", err)
	}
	cluster, err := s.ClusterInfo(context.Background(), "ai")
	if err != nil || cluster.Category != "tech" {
		t.Errorf("Unexpected cluster %+v (%v)", cluster, err)
	}
}

func TestSetFilter_RejectsNaN(t *testing.T) {
	s, _ := newTestSession(t, &fakeSearcher{}, &fakeGenerator{})
	nan := 0.0
	nan = nan / nan
	if _, err := s.SetFilter(core.FilterConfig{UseSearchScore: true, MinSearchScore: nan}); !core.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

var _ insights.Generator = (*fakeGenerator)(nil)

func TestNewSession_FallbackKeyNotPersisted(t *testing.T) {
	db, err := store.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer db.Close()

	s, err := NewSession(&fakeSearcher{}, &fakeGenerator{}, db, Options{APIKey: " env-key "})
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if s.APIKey() != "env-key" {
		t.Errorf("Expected fallback key, got %q", s.APIKey())
	}
	if saved, _ := db.LoadAPIKey(); saved != "" {
		t.Errorf("Fallback key must not be persisted, got %q", saved)
	}
}
