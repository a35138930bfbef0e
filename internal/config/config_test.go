package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".trendscope.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func loadFresh(t *testing.T, path string) (*Config, error) {
	t.Helper()
	Reset()
	t.Cleanup(Reset)
	return Load(path)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MEMBIT_API_KEY", "")

	cfg, err := loadFresh(t, writeConfig(t, "app:\n  debug: false\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.AI.Gemini.Model != "gemini-2.5-flash-lite" {
		t.Errorf("Expected default model, got %q", cfg.AI.Gemini.Model)
	}
	if cfg.Membit.BaseURL != "https://api.membit.ai/v1" || cfg.Membit.MaxResults != 10 {
		t.Errorf("Unexpected membit defaults: %+v", cfg.Membit)
	}
	if cfg.Filter.UseSearchScore || cfg.Filter.MinSearchScore != 0.5 {
		t.Errorf("Unexpected filter defaults: %+v", cfg.Filter)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if strings.HasPrefix(cfg.App.DataDir, "~") {
		t.Errorf("Expected expanded data dir, got %q", cfg.App.DataDir)
	}
}

func TestLoad_MissingGeminiKeyIsNotAnError(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("VITE_GEMINI_API_KEY", "")

	cfg, err := loadFresh(t, writeConfig(t, "logging:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("Expected load to succeed without a Gemini key, got %v", err)
	}
	if cfg.AI.Gemini.APIKey != "" {
		t.Errorf("Expected empty key, got %q", cfg.AI.Gemini.APIKey)
	}
}

func TestLoad_EnvAliases(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("VITE_GEMINI_API_KEY", "vite-key")
	t.Setenv("MEMBIT_API_KEY", " membit-key ")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := loadFresh(t, writeConfig(t, "ai:\n  gemini:\n    api_key: file-key\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AI.Gemini.APIKey != "vite-key" {
		t.Errorf("Expected env alias to win, got %q", cfg.AI.Gemini.APIKey)
	}
	if cfg.Membit.APIKey != "membit-key" {
		t.Errorf("Expected trimmed membit key, got %q", cfg.Membit.APIKey)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("Expected redis address from env, got %q", cfg.Cache.RedisAddr)
	}
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_URL", "")

	body := `
logging:
  level: WARN
  format: json
filter:
  use_search_score: true
  min_search_score: 0.7
server:
  port: 9090
  cors_origins:
    - http://localhost:5173
`
	cfg, err := loadFresh(t, writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "json" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if !cfg.Filter.UseSearchScore || cfg.Filter.MinSearchScore != 0.7 {
		t.Errorf("Unexpected filter config: %+v", cfg.Filter)
	}
	if cfg.Server.Port != 9090 || len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Unexpected server config: %+v", cfg.Server)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "membit:\n  timeout: soon\n", "invalid duration for membit.timeout"},
		{"bad level", "logging:\n  level: loud\n", "Unknown logging level"},
		{"bad score", "filter:\n  min_search_score: 2\n", "min_search_score"},
		{"bad port", "server:\n  port: 70000\n", "Invalid server port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFresh(t, writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("", time.Second); got != time.Second {
		t.Errorf("Expected fallback, got %v", got)
	}
	if got := Duration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %v", got)
	}
	if got := Duration("nope", time.Minute); got != time.Minute {
		t.Errorf("Expected fallback for invalid value, got %v", got)
	}
}

func TestIsValidAPIKey(t *testing.T) {
	tests := map[string]bool{
		"":             false,
		"CHANGE_ME":    false,
		"your-api-key": false,
		"AIza-real":    true,
	}
	for key, want := range tests {
		if got := isValidAPIKey(key); got != want {
			t.Errorf("isValidAPIKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestGetters_PlaceholderKeyAndDebug(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	t.Setenv("VITE_GEMINI_API_KEY", "")
	t.Setenv("DEBUG", "")
	t.Setenv("TRENDSCOPE_DEBUG", "")

	body := "app:\n  debug: true\nlogging:\n  format: json\nai:\n  gemini:\n    api_key: your-gemini-key\n"
	if _, err := loadFresh(t, writeConfig(t, body)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if HasValidGeminiKey() {
		t.Error("Expected placeholder Gemini key to be reported as invalid")
	}
	if !IsDebugMode() {
		t.Error("Expected debug mode from config file")
	}
	if got := GetLogging().Format; got != "json" {
		t.Errorf("Expected json logging format, got %q", got)
	}
}
