// Package filter derives the displayed result set from raw search results.
package filter

import (
	"strconv"

	"trendscope/internal/core"
)

// FilterByScore keeps, in order, the items whose search score is present, finite and >= minScore.
// Items without a usable score are always dropped.
func FilterByScore(items []core.ResultItem, minScore float64) []core.ResultItem {
	out := make([]core.ResultItem, 0, len(items))
	for _, item := range items {
		score, ok := item.Score()
		if !ok || score < minScore {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Apply returns the displayed set for cfg. With score filtering off it is a copy of items.
func Apply(items []core.ResultItem, cfg core.FilterConfig) []core.ResultItem {
	if !cfg.UseSearchScore {
		out := make([]core.ResultItem, len(items))
		copy(out, items)
		return out
	}
	return FilterByScore(items, cfg.MinSearchScore)
}

// EmptyMessage is shown when raw results exist but none pass the filter.
func EmptyMessage(cfg core.FilterConfig) string {
	return "No results matched search score ≥ " + strconv.FormatFloat(cfg.MinSearchScore, 'f', 2, 64)
}
