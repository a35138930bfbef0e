package insights

import (
	"regexp"
	"strconv"
	"strings"

	"trendscope/internal/core"
	"trendscope/internal/markdown"
)

// FallbackSummary replaces a missing or non-string summary.
const FallbackSummary = "No summary was generated."

var listSeparators = regexp.MustCompile(`[\n,;•]+`)

// NormalizeInsight coerces a parsed model response into a GeneratedInsight. It never fails:
// anything unusable becomes the fallback summary or an empty list.
func NormalizeInsight(value any) *core.GeneratedInsight {
	obj, _ := value.(map[string]any)

	summary, ok := obj["summary"].(string)
	if !ok {
		summary = FallbackSummary
	}

	return &core.GeneratedInsight{
		Summary:        summary,
		KeyInsights:    normalizeStringList(obj["keyInsights"]),
		Sentiment:      normalizeSentiment(obj["sentiment"]),
		TopInfluencers: normalizeInfluencers(obj["topInfluencers"]),
	}
}

// normalizeStringList accepts a list of strings or one delimited string.
func normalizeStringList(value any) []string {
	out := []string{}
	switch v := value.(type) {
	case []any:
		for _, entry := range v {
			s, _ := entry.(string)
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range listSeparators.Split(v, -1) {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeInfluencers(value any) []core.Influencer {
	out := []core.Influencer{}
	entries, _ := value.([]any)
	for _, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		inf := core.Influencer{
			Handle: stringField(obj, "handle"),
			Name:   stringField(obj, "name"),
			Reason: stringField(obj, "reason"),
		}
		if inf.Handle == "" && inf.Name == "" && inf.Reason == "" {
			continue
		}
		out = append(out, inf)
	}
	return out
}

func normalizeSentiment(value any) *core.Sentiment {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	return &core.Sentiment{
		Overall:  strings.ToLower(stringField(obj, "overall")),
		Positive: numberField(obj, "positive"),
		Negative: numberField(obj, "negative"),
		Neutral:  numberField(obj, "neutral"),
	}
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func numberField(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// FormatPost collapses whitespace and cuts the text to the X post limit.
func FormatPost(text string) string {
	normalized := markdown.CollapseWhitespace(text)
	runes := []rune(normalized)
	if len(runes) <= maxPostLength {
		return normalized
	}
	return strings.TrimSpace(string(runes[:maxPostLength-3])) + "..."
}
