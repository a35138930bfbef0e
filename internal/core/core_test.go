package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestResultItemUnmarshal_Post(t *testing.T) {
	payload := `{
		"uuid": "p-1",
		"search_score": 0.82,
		"content": "AI safety is trending",
		"author": {"name": "Ada", "handle": "@ada", "profile_image": "https://img/ada.png"},
		"engagement": {"likes": 10, "retweets": 2.0, "replies": 3},
		"cluster_label": "ai-safety",
		"timestamp": "2025-01-01T00:00:00Z",
		"url": "https://x.com/ada/1",
		"extra": {"kept": true}
	}`

	var item ResultItem
	if err := json.Unmarshal([]byte(payload), &item); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if item.UUID != "p-1" {
		t.Errorf("Expected UUID 'p-1', got %q", item.UUID)
	}
	score, ok := item.Score()
	if !ok || score != 0.82 {
		t.Errorf("Expected score 0.82, got %v (ok=%v)", score, ok)
	}
	if item.Author.DisplayName() != "Ada" {
		t.Errorf("Expected author name 'Ada', got %q", item.Author.DisplayName())
	}
	if item.Engagement.Total() != 15 {
		t.Errorf("Expected total engagement 15, got %d", item.Engagement.Total())
	}
	if item.ClusterLabel != "ai-safety" {
		t.Errorf("Expected cluster label 'ai-safety', got %q", item.ClusterLabel)
	}

	out, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), `"extra"`) {
		t.Errorf("Expected original payload to be preserved, got %s", out)
	}
}

func TestResultItemUnmarshal_DefensiveFields(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantScore bool
		score     float64
	}{
		{"missing score", `{"label": "x"}`, false, 0},
		{"null score", `{"search_score": null}`, false, 0},
		{"numeric string", `{"search_score": "0.75"}`, true, 0.75},
		{"garbage string", `{"search_score": "high"}`, false, 0},
		{"boolean score", `{"search_score": true}`, false, 0},
		{"wrong typed author", `{"author": "bob", "search_score": 1}`, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item ResultItem
			if err := json.Unmarshal([]byte(tt.payload), &item); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			score, ok := item.Score()
			if ok != tt.wantScore {
				t.Fatalf("Expected usable score=%v, got %v", tt.wantScore, ok)
			}
			if ok && score != tt.score {
				t.Errorf("Expected score %v, got %v", tt.score, score)
			}
		})
	}
}

func TestResultItemUnmarshal_NotAnObject(t *testing.T) {
	var item ResultItem
	if err := json.Unmarshal([]byte(`[1, 2]`), &item); err == nil {
		t.Error("Expected error for non-object payload")
	}
}

func TestAuthorDisplayName(t *testing.T) {
	if got := (Author{Handle: "@h"}).DisplayName(); got != "@h" {
		t.Errorf("Expected handle fallback, got %q", got)
	}
	if got := (Author{}).DisplayName(); got != "Unknown" {
		t.Errorf("Expected 'Unknown', got %q", got)
	}
}

func TestParseTabID(t *testing.T) {
	tab, err := ParseTabID(" Posts ")
	if err != nil || tab != TabPosts {
		t.Fatalf("Expected posts tab, got %q (%v)", tab, err)
	}

	_, err = ParseTabID("feeds")
	if !IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestTabStateUpdateApply(t *testing.T) {
	s := NewTabState()
	if s.AISummaryHTML != SummaryPlaceholder {
		t.Fatalf("Expected placeholder summary by default")
	}

	s.SearchInput = "ai safety"
	next := TabStateUpdate{NLQueryInput: Ptr("who?")}.Apply(s)

	if next.SearchInput != "ai safety" {
		t.Errorf("Expected untouched search input, got %q", next.SearchInput)
	}
	if next.NLQueryInput != "who?" {
		t.Errorf("Expected question to be set, got %q", next.NLQueryInput)
	}
	if next.AISummaryHTML != SummaryPlaceholder {
		t.Errorf("Expected untouched summary, got %q", next.AISummaryHTML)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrEmptyQuestion, "validation"},
		{&ConfigurationError{Message: "no key"}, "configuration"},
		{fmt.Errorf("wrapped: %w", &NetworkError{Err: errors.New("dial")}), "network"},
		{&UpstreamError{Status: 429, Message: "quota"}, "upstream"},
		{&MalformedResponseError{ParseError: "bad"}, "malformed_response"},
		{errors.New("other"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestMalformedResponseErrorMessage(t *testing.T) {
	err := &MalformedResponseError{ParseError: "unexpected end of JSON input", Offset: 10, Context: `{"a": [1`}
	msg := err.Error()
	if !strings.Contains(msg, "unexpected end of JSON input") {
		t.Errorf("Expected parser message in %q", msg)
	}
	if !strings.Contains(msg, `...{"a": [1...`) {
		t.Errorf("Expected context window in %q", msg)
	}
}
