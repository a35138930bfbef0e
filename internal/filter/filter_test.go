package filter

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"trendscope/internal/core"
)

func scored(uuid string, score float64) core.ResultItem {
	return core.ResultItem{UUID: uuid, SearchScore: &score}
}

func unscored(uuid string) core.ResultItem {
	return core.ResultItem{UUID: uuid}
}

func uuids(items []core.ResultItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.UUID
	}
	return out
}

func isSubsequence(sub, seq []string) bool {
	i := 0
	for _, s := range seq {
		if i < len(sub) && sub[i] == s {
			i++
		}
	}
	return i == len(sub)
}

func TestFilterByScore_InclusiveAndStable(t *testing.T) {
	items := []core.ResultItem{scored("a", 0.9), scored("b", 0.5), unscored("c"), scored("d", 0.49), scored("e", 0.7)}

	got := uuids(FilterByScore(items, 0.5))
	want := []string{"a", "b", "e"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFilterByScore_MissingScoreExcludedAtZero(t *testing.T) {
	var fromJSON []core.ResultItem
	payload := `[{"uuid": "no-score"}, {"uuid": "string-score", "search_score": "abc"}, {"uuid": "zero", "search_score": 0}]`
	if err := json.Unmarshal([]byte(payload), &fromJSON); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	got := uuids(FilterByScore(fromJSON, 0))
	if len(got) != 1 || got[0] != "zero" {
		t.Errorf("Expected only the scored item, got %v", got)
	}
}

func TestFilterByScore_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		items := make([]core.ResultItem, rng.Intn(20))
		for i := range items {
			id := fmt.Sprintf("i%d", i)
			if rng.Intn(5) == 0 {
				items[i] = unscored(id)
			} else {
				items[i] = scored(id, rng.Float64())
			}
		}
		lo := rng.Float64()
		hi := lo + rng.Float64()*(1-lo)

		loSet := uuids(FilterByScore(items, lo))
		hiSet := uuids(FilterByScore(items, hi))
		if !isSubsequence(hiSet, loSet) {
			t.Fatalf("round %d: %v (min %.3f) is not a subsequence of %v (min %.3f)", round, hiSet, hi, loSet, lo)
		}
	}
}

func TestApply(t *testing.T) {
	items := []core.ResultItem{scored("a", 0.2), unscored("b"), scored("c", 0.8)}

	off := Apply(items, core.FilterConfig{UseSearchScore: false, MinSearchScore: 0.5})
	if fmt.Sprint(uuids(off)) != "[a b c]" {
		t.Errorf("Expected raw set when disabled, got %v", uuids(off))
	}
	off[0].UUID = "mutated"
	if items[0].UUID != "a" {
		t.Error("Apply must not alias its input")
	}

	on := Apply(items, core.FilterConfig{UseSearchScore: true, MinSearchScore: 0.5})
	if fmt.Sprint(uuids(on)) != "[c]" {
		t.Errorf("Expected [c], got %v", uuids(on))
	}

	if empty := Apply(nil, core.DefaultFilterConfig()); empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil slice, got %#v", empty)
	}
}

func TestEmptyMessage(t *testing.T) {
	got := EmptyMessage(core.FilterConfig{UseSearchScore: true, MinSearchScore: 0.5})
	if got != "No results matched search score ≥ 0.50" {
		t.Errorf("Unexpected message %q", got)
	}
}
