package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trendscope/internal/core"
)

func sampleInsight() *core.GeneratedInsight {
	return &core.GeneratedInsight{
		Summary:     "Discussion centres on <b>model evals</b>.",
		KeyInsights: []string{"Evals are trending", "Labs disagree"},
		Sentiment:   &core.Sentiment{Overall: "mixed", Positive: 40, Negative: 35, Neutral: 25},
		TopInfluencers: []core.Influencer{
			{Handle: "@ada", Name: "Ada", Reason: "Most replies"},
			{Handle: "@bob", Reason: "Breaking news"},
		},
	}
}

func TestInsight_PostsTab(t *testing.T) {
	out := Insight(core.TabPosts, sampleInsight())

	for _, want := range []string{
		`class="ai-summary-text"`,
		"&lt;b&gt;model evals&lt;/b&gt;",
		"<li>Evals are trending</li>",
		"Sentiment: mixed (40% positive, 35% negative, 25% neutral)",
		"<strong>Ada</strong>",
		"<strong>@bob</strong>",
		"Breaking news",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<b>") {
		t.Error("Model text must be escaped")
	}
	if !HasRenderableSummary(out) {
		t.Error("Rendered insight should be renderable")
	}
}

func TestInsight_ClustersTabHidesInfluencers(t *testing.T) {
	out := Insight(core.TabClusters, sampleInsight())
	if strings.Contains(out, "Top Influencers") {
		t.Errorf("Clusters tab must not list influencers:\n%s", out)
	}
}

func TestInsight_Nil(t *testing.T) {
	if got := Insight(core.TabPosts, nil); got != core.SummaryPlaceholder {
		t.Errorf("Expected placeholder, got %q", got)
	}
}

func TestAnswer(t *testing.T) {
	out := Answer("who <leads>?", "<p><strong>Ada</strong> leads.</p>")
	if !strings.Contains(out, "who &lt;leads&gt;?") {
		t.Errorf("Question must be escaped: %s", out)
	}
	if !strings.Contains(out, "<p><strong>Ada</strong> leads.</p>") {
		t.Errorf("Answer HTML must be inserted as is: %s", out)
	}
}

func TestErrorAndHasRenderableSummary(t *testing.T) {
	errHTML := Error("quota exceeded")
	if errHTML != `<div class="error-message">Error: quota exceeded</div>` {
		t.Errorf("Unexpected error fragment %q", errHTML)
	}
	if !IsError(errHTML) {
		t.Error("Expected IsError to detect the fragment")
	}

	tests := []struct {
		content string
		want    bool
	}{
		{"", false},
		{"   \n ", false},
		{core.SummaryPlaceholder, false},
		{"  " + core.SummaryPlaceholder + "\n", false},
		{errHTML, false},
		{"<div>summary</div>", true},
	}
	for _, tt := range tests {
		if got := HasRenderableSummary(tt.content); got != tt.want {
			t.Errorf("HasRenderableSummary(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestPost(t *testing.T) {
	out := Post("Evals are hot & getting hotter")
	if !strings.Contains(out, "Evals are hot &amp; getting hotter") {
		t.Errorf("Expected escaped post text: %s", out)
	}
	if !strings.Contains(out, "30/280") {
		t.Errorf("Expected character count: %s", out)
	}
}

func TestExportFileName(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ExportFileName(now); got != "membit-export-1700000000123.json" {
		t.Errorf("Unexpected file name %q", got)
	}
}

func TestWriteExport(t *testing.T) {
	tmpDir := t.TempDir()
	content := []byte(`[{"uuid": "p-1"}]`)
	filename := "membit-export-1.json"

	filePath, err := WriteExport(content, tmpDir, filename)
	if err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}

	expectedPath := filepath.Join(tmpDir, filename)
	if filePath != expectedPath {
		t.Errorf("Expected file path %s, got %s", expectedPath, filePath)
	}

	fileContent, err := os.ReadFile(filePath)
	if err != nil {
		t.Fatalf("Failed to read export file: %v", err)
	}
	if string(fileContent) != string(content) {
		t.Errorf("Expected content %q, got %q", content, fileContent)
	}
}

func TestWriteExport_InvalidOutputDir(t *testing.T) {
	// Try to write into a path that is a file, not a directory
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	os.WriteFile(invalidPath, []byte("test"), 0644)

	_, err := WriteExport([]byte("content"), invalidPath, "export.json")
	if err == nil {
		t.Error("Expected error when output directory is invalid")
	}
}
