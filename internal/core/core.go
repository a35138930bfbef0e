package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TabID identifies one of the independent search contexts of the dashboard.
type TabID string

const (
	TabClusters TabID = "clusters" // Trending topic cluster search
	TabPosts    TabID = "posts"    // Individual post search
)

// Tabs lists every tab in display order.
func Tabs() []TabID {
	return []TabID{TabClusters, TabPosts}
}

// Valid reports whether t names a known tab.
func (t TabID) Valid() bool {
	return t == TabClusters || t == TabPosts
}

// ParseTabID converts a user supplied tab name into a TabID.
func ParseTabID(s string) (TabID, error) {
	t := TabID(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", NewValidationError(fmt.Sprintf("unknown tab %q (expected clusters or posts)", s))
	}
	return t, nil
}

// Placeholder returns the search box hint shown for the tab.
func (t TabID) Placeholder() string {
	if t == TabPosts {
		return "Search for topics, keywords, or hashtags..."
	}
	return "Search for trending topic clusters..."
}

// DataType is the human wording used in prompts for the tab's items.
func (t TabID) DataType() string {
	if t == TabClusters {
		return "trending topic clusters"
	}
	return "social media posts"
}

// SummaryPlaceholder is the sentinel stored in a tab's summary slot until insights are generated.
const SummaryPlaceholder = `<p class="ai-placeholder">Click "Generate Insights" to get AI-powered analysis</p>`

// Author is the author block of a post.
type Author struct {
	Name         string `json:"name"`
	Handle       string `json:"handle"`
	ProfileImage string `json:"profile_image"`
}

// DisplayName returns the name, then the handle, then "Unknown".
func (a Author) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	if a.Handle != "" {
		return a.Handle
	}
	return "Unknown"
}

// Engagement holds the interaction counters of a post.
type Engagement struct {
	Likes    int64 `json:"likes"`
	Retweets int64 `json:"retweets"`
	Replies  int64 `json:"replies"`
}

// Total is likes + retweets + replies.
func (e Engagement) Total() int64 {
	return e.Likes + e.Retweets + e.Replies
}

// ResultItem is one post or cluster returned by the search API.
// Only the fields the dashboard inspects are typed; missing fields decode to their zero value
// and the original payload is kept in Raw so exports and bookmarks round-trip unchanged.
type ResultItem struct {
	UUID            string       `json:"uuid"`             // Post identity
	SearchScore     *float64     `json:"search_score"`     // Relevance score, nil when absent or not a finite number
	EngagementScore float64      `json:"engagement_score"` // Aggregate engagement (clusters, some posts)
	Label           string       `json:"label"`            // Cluster label
	Category        string       `json:"category"`         // Cluster category
	Summary         string       `json:"summary"`          // Cluster summary (posts may carry one too)
	Content         string       `json:"content"`          // Post text
	Author          Author       `json:"author"`           // Post author
	Engagement      Engagement   `json:"engagement"`       // Post counters
	ClusterLabel    string       `json:"cluster_label"`    // Cluster a post belongs to
	Timestamp       string       `json:"timestamp"`        // Post timestamp as sent by the API
	URL             string       `json:"url"`              // Link to the post
	Posts           []ResultItem `json:"posts,omitempty"`  // Member posts (cluster detail only)

	Raw json.RawMessage `json:"-"`
}

// looseItem mirrors ResultItem with tolerant field types for decoding untrusted payloads.
type looseItem struct {
	UUID            json.RawMessage `json:"uuid"`
	SearchScore     json.RawMessage `json:"search_score"`
	EngagementScore json.RawMessage `json:"engagement_score"`
	Label           json.RawMessage `json:"label"`
	Category        json.RawMessage `json:"category"`
	Summary         json.RawMessage `json:"summary"`
	Content         json.RawMessage `json:"content"`
	Author          json.RawMessage `json:"author"`
	Engagement      json.RawMessage `json:"engagement"`
	ClusterLabel    json.RawMessage `json:"cluster_label"`
	Timestamp       json.RawMessage `json:"timestamp"`
	URL             json.RawMessage `json:"url"`
	Posts           json.RawMessage `json:"posts"`
}

// UnmarshalJSON decodes an API item defensively: wrong types become zero values instead of errors.
func (r *ResultItem) UnmarshalJSON(data []byte) error {
	var l looseItem
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("result item is not a JSON object: %w", err)
	}

	item := ResultItem{
		UUID:            rawString(l.UUID),
		SearchScore:     rawScore(l.SearchScore),
		EngagementScore: rawNumber(l.EngagementScore),
		Label:           rawString(l.Label),
		Category:        rawString(l.Category),
		Summary:         rawString(l.Summary),
		Content:         rawString(l.Content),
		ClusterLabel:    rawString(l.ClusterLabel),
		Timestamp:       rawString(l.Timestamp),
		URL:             rawString(l.URL),
		Raw:             append(json.RawMessage(nil), data...),
	}
	var author map[string]json.RawMessage
	if json.Unmarshal(l.Author, &author) == nil {
		item.Author = Author{
			Name:         rawString(author["name"]),
			Handle:       rawString(author["handle"]),
			ProfileImage: rawString(author["profile_image"]),
		}
	}
	var engagement map[string]json.RawMessage
	if json.Unmarshal(l.Engagement, &engagement) == nil {
		item.Engagement = Engagement{
			Likes:    int64(rawNumber(engagement["likes"])),
			Retweets: int64(rawNumber(engagement["retweets"])),
			Replies:  int64(rawNumber(engagement["replies"])),
		}
	}
	if len(l.Posts) > 0 {
		var posts []ResultItem
		if err := json.Unmarshal(l.Posts, &posts); err == nil {
			item.Posts = posts
		}
	}

	*r = item
	return nil
}

// MarshalJSON emits the original payload when one was decoded.
func (r ResultItem) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type plain ResultItem
	return json.Marshal(plain(r))
}

// Score returns the search score and whether it is usable.
func (r ResultItem) Score() (float64, bool) {
	if r.SearchScore == nil {
		return 0, false
	}
	s := *r.SearchScore
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0, false
	}
	return s, true
}

// Text returns the post content, falling back to its summary.
func (r ResultItem) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Summary
}

func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func rawNumber(raw json.RawMessage) float64 {
	if f := rawScore(raw); f != nil {
		return *f
	}
	return 0
}

// rawScore accepts JSON numbers and numeric strings; anything else, or a non-finite value, is absent.
func rawScore(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		f = parsed
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// TabState is the per-tab UI state that survives switching tabs.
type TabState struct {
	SearchInput         string            `json:"searchInput"`
	AISummaryHTML       string            `json:"aiSummaryHtml"`       // Rendered insight, error display or SummaryPlaceholder
	Insight             *GeneratedInsight `json:"insight,omitempty"`   // Structured form of the last successful insight
	NLQueryInput        string            `json:"nlQueryInput"`
	NLQueryResponseHTML string            `json:"nlQueryResponseHtml"` // Rendered Q/A or error display
	GeneratedPostText   string            `json:"generatedPostText"`   // X-style post derived from the summary, or error display
}

// NewTabState returns the placeholder defaults a tab starts with.
func NewTabState() TabState {
	return TabState{AISummaryHTML: SummaryPlaceholder}
}

// TabStateUpdate is a shallow partial update; nil fields are left untouched.
type TabStateUpdate struct {
	SearchInput         *string
	AISummaryHTML       *string
	Insight             **GeneratedInsight
	NLQueryInput        *string
	NLQueryResponseHTML *string
	GeneratedPostText   *string
}

// Apply merges the update into s and returns the result.
func (u TabStateUpdate) Apply(s TabState) TabState {
	if u.SearchInput != nil {
		s.SearchInput = *u.SearchInput
	}
	if u.AISummaryHTML != nil {
		s.AISummaryHTML = *u.AISummaryHTML
	}
	if u.Insight != nil {
		s.Insight = *u.Insight
	}
	if u.NLQueryInput != nil {
		s.NLQueryInput = *u.NLQueryInput
	}
	if u.NLQueryResponseHTML != nil {
		s.NLQueryResponseHTML = *u.NLQueryResponseHTML
	}
	if u.GeneratedPostText != nil {
		s.GeneratedPostText = *u.GeneratedPostText
	}
	return s
}

// Ptr returns a pointer to v, for building TabStateUpdate literals.
func Ptr[T any](v T) *T {
	return &v
}

// FilterConfig is the process-wide result filter.
type FilterConfig struct {
	UseSearchScore bool    `json:"useSearchScore"`
	MinSearchScore float64 `json:"minSearchScore"`
}

// DefaultFilterConfig leaves filtering off with a mid threshold ready for the slider.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{UseSearchScore: false, MinSearchScore: 0.5}
}

// Sentiment is the sentiment breakdown of a GeneratedInsight.
type Sentiment struct {
	Overall  string  `json:"overall"` // positive, negative, neutral or mixed
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// Influencer is a notable author named by the model.
type Influencer struct {
	Handle string `json:"handle,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// GeneratedInsight is the normalized result of a summary generation.
type GeneratedInsight struct {
	Summary        string       `json:"summary"`
	KeyInsights    []string     `json:"keyInsights"`
	Sentiment      *Sentiment   `json:"sentiment,omitempty"`
	TopInfluencers []Influencer `json:"topInfluencers"`
}
