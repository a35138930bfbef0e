// Package render turns normalized dashboard data into the HTML fragments stored in tab state.
// All model-authored text goes through html/template escaping; only markdown.ToSafeHTML output
// is inserted as trusted HTML.
package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trendscope/internal/core"
)

// MaxPostLength is the X post character limit.
const MaxPostLength = 280

var fragments = template.Must(template.New("fragments").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v) },
}).Parse(`
{{define "insight"}}<div class="ai-summary-content">
<div class="ai-summary-text">{{.Insight.Summary}}</div>
{{- with .Insight.Sentiment}}
<div class="ai-sentiment ai-sentiment--{{.Overall}}">Sentiment: {{.Overall}} ({{percent .Positive}} positive, {{percent .Negative}} negative, {{percent .Neutral}} neutral)</div>
{{- end}}
<div class="ai-insights-section">
<h4>🔑 Key Insights</h4>
<ul class="insights-list">{{range .Insight.KeyInsights}}<li>{{.}}</li>{{end}}</ul>
</div>
{{- if and .ShowInfluencers .Insight.TopInfluencers}}
<div class="ai-influencers-section">
<h4>👥 Top Influencers</h4>
<div class="influencers-list">{{range .Insight.TopInfluencers}}
<div class="influencer-item"><strong>{{if .Name}}{{.Name}}{{else}}{{.Handle}}{{end}}</strong> <span class="influencer-handle">{{.Handle}}</span><p class="influencer-reason">{{.Reason}}</p></div>{{end}}
</div>
</div>
{{- end}}
</div>{{end}}
{{define "answer"}}<div class="nl-query-answer">
<div class="nl-query-question"><strong>Q:</strong> {{.Question}}</div>
<div class="nl-query-text">{{.Answer}}</div>
</div>{{end}}
{{define "error"}}<div class="error-message">Error: {{.}}</div>{{end}}
{{define "post"}}<div class="x-post"><p class="x-post-text">{{.Text}}</p><span class="x-post-count">{{.Length}}/{{.Max}}</span></div>{{end}}
`))

func execute(name string, data any) string {
	var b strings.Builder
	if err := fragments.ExecuteTemplate(&b, name, data); err != nil {
		return `<div class="error-message">` + template.HTMLEscapeString(fmt.Sprintf("render %s: %v", name, err)) + `</div>`
	}
	return b.String()
}

// Insight renders a generated insight. Influencers are only shown on the posts tab.
func Insight(tab core.TabID, insight *core.GeneratedInsight) string {
	if insight == nil {
		return core.SummaryPlaceholder
	}
	return execute("insight", struct {
		Insight         *core.GeneratedInsight
		ShowInfluencers bool
	}{insight, tab == core.TabPosts})
}

// Answer renders a question with its answer. answerHTML must come from markdown.ToSafeHTML.
func Answer(question, answerHTML string) string {
	return execute("answer", struct {
		Question string
		Answer   template.HTML
	}{question, template.HTML(answerHTML)})
}

// Error renders a failure in the slot the successful result would have used.
func Error(message string) string {
	return execute("error", message)
}

// Post renders a composed X post with its character count.
func Post(text string) string {
	return execute("post", struct {
		Text   string
		Length int
		Max    int
	}{text, len([]rune(text)), MaxPostLength})
}

// IsError reports whether a stored fragment is an error display.
func IsError(fragment string) bool {
	return strings.Contains(fragment, `class="error-message"`)
}

// HasRenderableSummary reports whether a stored summary is a real insight rather than the
// placeholder, an empty slot or an error display.
func HasRenderableSummary(content string) bool {
	stripped := strings.Join(strings.Fields(content), "")
	if stripped == "" || stripped == strings.Join(strings.Fields(core.SummaryPlaceholder), "") {
		return false
	}
	return !strings.Contains(content, "error-message")
}

// ExportFileName names an export written at now.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("membit-export-%d.json", now.UnixMilli())
}

// WriteExport writes the provided content to a file in the specified directory
func WriteExport(content []byte, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "exports" // Default output directory
	}

	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)

	err = os.WriteFile(filePath, content, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to write export file %s: %w", filePath, err)
	}

	return filePath, nil
}
