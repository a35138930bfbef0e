package insights

import (
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"trendscope/internal/core"
)

// SummarySchema returns the Gemini response_schema for insight generation.
func SummarySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "2-3 paragraph summary of the main themes and discussions",
			},
			"keyInsights": {
				Type:        genai.TypeArray,
				Description: "3-5 key insights that stand out",
				Items:       &genai.Schema{Type: genai.TypeString},
				MinItems:    genai.Ptr[int64](3),
			},
			"sentiment": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"overall": {
						Type: genai.TypeString,
						Enum: []string{"positive", "negative", "neutral", "mixed"},
					},
					"positive": {Type: genai.TypeNumber},
					"negative": {Type: genai.TypeNumber},
					"neutral":  {Type: genai.TypeNumber},
				},
			},
			"topInfluencers": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"handle": {Type: genai.TypeString},
						"name":   {Type: genai.TypeString},
						"reason": {Type: genai.TypeString},
					},
					Required: []string{"reason"},
				},
			},
		},
		Required: []string{"summary", "keyInsights", "sentiment", "topInfluencers"},
	}
}

type clusterRecord struct {
	Index           int     `json:"index"`
	Label           string  `json:"label"`
	Category        string  `json:"category"`
	Summary         string  `json:"summary"`
	EngagementScore float64 `json:"engagement_score"`
}

type postSummaryRecord struct {
	Index      int    `json:"index"`
	Content    string `json:"content"`
	Author     string `json:"author"`
	Handle     string `json:"handle"`
	Engagement int64  `json:"engagement"`
	Timestamp  string `json:"timestamp"`
}

type engagementRecord struct {
	Likes    int64 `json:"likes"`
	Retweets int64 `json:"retweets"`
	Replies  int64 `json:"replies"`
}

type postQueryRecord struct {
	Index           int              `json:"index"`
	Content         string           `json:"content"`
	Author          string           `json:"author"`
	Handle          string           `json:"handle"`
	Engagement      engagementRecord `json:"engagement"`
	EngagementScore float64          `json:"engagement_score"`
	ClusterLabel    string           `json:"cluster_label"`
	Timestamp       string           `json:"timestamp"`
}

func projectCluster(i int, item core.ResultItem) clusterRecord {
	return clusterRecord{
		Index:           i + 1,
		Label:           item.Label,
		Category:        item.Category,
		Summary:         item.Summary,
		EngagementScore: item.EngagementScore,
	}
}

// summaryRecords projects items into the compact form used by the summary prompt.
func summaryRecords(tab core.TabID, items []core.ResultItem) any {
	if tab == core.TabClusters {
		records := make([]clusterRecord, len(items))
		for i, item := range items {
			records[i] = projectCluster(i, item)
		}
		return records
	}
	records := make([]postSummaryRecord, len(items))
	for i, item := range items {
		records[i] = postSummaryRecord{
			Index:      i + 1,
			Content:    item.Text(),
			Author:     item.Author.DisplayName(),
			Handle:     item.Author.Handle,
			Engagement: item.Engagement.Total(),
			Timestamp:  item.Timestamp,
		}
	}
	return records
}

// queryRecords projects items with the per-post detail a question may need to cite.
func queryRecords(tab core.TabID, items []core.ResultItem) any {
	if tab == core.TabClusters {
		records := make([]clusterRecord, len(items))
		for i, item := range items {
			records[i] = projectCluster(i, item)
		}
		return records
	}
	records := make([]postQueryRecord, len(items))
	for i, item := range items {
		records[i] = postQueryRecord{
			Index:   i + 1,
			Content: item.Text(),
			Author:  item.Author.DisplayName(),
			Handle:  item.Author.Handle,
			Engagement: engagementRecord{
				Likes:    item.Engagement.Likes,
				Retweets: item.Engagement.Retweets,
				Replies:  item.Engagement.Replies,
			},
			EngagementScore: item.EngagementScore,
			ClusterLabel:    item.ClusterLabel,
			Timestamp:       item.Timestamp,
		}
	}
	return records
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

// BuildSummaryPrompt creates the analysis prompt for the tab's items.
func BuildSummaryPrompt(tab core.TabID, items []core.ResultItem) string {
	influencers := "4. Top 3-5 influencers (based on engagement and content quality) with reasons"
	if tab == core.TabClusters {
		influencers = "4. Top influencers array (return an empty array if specific influencers cannot be identified)"
	}

	return fmt.Sprintf(`Analyze the following %s and provide a comprehensive analysis in JSON format. Every field described below must be present in the JSON output. Use empty arrays when data is not available.

Data:
%s

Please provide:
1. A concise summary (2-3 paragraphs) of the main themes and discussions
2. 3-5 key insights that stand out
3. Sentiment analysis (overall sentiment and percentages for positive, negative, neutral)
%s

Format your response as JSON with this structure:
{
  "summary": "detailed summary text",
  "keyInsights": ["insight 1", "insight 2", ...],
  "sentiment": {
    "overall": "positive|negative|neutral|mixed",
    "positive": 0-100,
    "negative": 0-100,
    "neutral": 0-100
  },
  "topInfluencers": [
    {
      "handle": "@username",
      "name": "Full Name",
      "reason": "why they're influential"
    }
  ]
}`, tab.DataType(), indentJSON(summaryRecords(tab, items)), influencers)
}

// BuildQueryPrompt creates the question-answering prompt grounded in the tab's items.
func BuildQueryPrompt(tab core.TabID, items []core.ResultItem, question string) string {
	return fmt.Sprintf(`You are analyzing %s from X (Twitter). Based on the following data, answer the user's question accurately and concisely.

User Question: %s

Data (JSON format):
%s

Please provide a clear, informative answer based on the data provided. If the question cannot be answered from the data, say so. Format your response in a readable way with proper paragraphs.`, tab.DataType(), question, indentJSON(queryRecords(tab, items)))
}

// BuildPostPrompt asks for a single X post derived from a summary.
func BuildPostPrompt(summaryText string) string {
	return fmt.Sprintf(`You are a social media strategist. Using the summary below, write a compelling single X (Twitter) post with a maximum of %d characters. Use a strong hook, keep it conversational, reference the market sentiment, and avoid hashtags or emoji overload. Return only the post text.

Summary:
%s`, maxPostLength, summaryText)
}
