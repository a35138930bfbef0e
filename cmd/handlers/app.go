package handlers

import (
	"context"
	"fmt"
	"time"

	"trendscope/internal/cache"
	"trendscope/internal/config"
	"trendscope/internal/core"
	"trendscope/internal/dashboard"
	"trendscope/internal/insights"
	"trendscope/internal/llm"
	"trendscope/internal/logger"
	"trendscope/internal/membit"
	"trendscope/internal/store"
)

// app holds the long-lived services every command builds sessions from.
type app struct {
	cfg    *config.Config
	db     *store.Store
	cache  cache.Service
	search *membit.Client
	llm    *llm.Client
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Get()

	db, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}

	svc, err := cache.Connect(ctx, cache.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	if err != nil {
		// The cache is optional; searches go straight to the API without it.
		logger.Warn("Redis cache unavailable, continuing without it", "error", err.Error())
	}

	search := membit.NewClient(membit.Config{
		BaseURL:   cfg.Membit.BaseURL,
		Timeout:   config.Duration(cfg.Membit.Timeout, 30*time.Second),
		RateLimit: config.Duration(cfg.Membit.RateLimit, 0),
		CacheTTL:  config.Duration(cfg.Cache.TTL, cache.TTLDefault),
	}, svc)

	gemini := llm.NewClient(llm.Config{
		APIKey:      cfg.AI.Gemini.APIKey,
		Model:       cfg.AI.Gemini.Model,
		BaseURL:     cfg.AI.Gemini.BaseURL,
		Temperature: cfg.AI.Gemini.Temperature,
		TopK:        cfg.AI.Gemini.TopK,
		TopP:        cfg.AI.Gemini.TopP,
	})
	if !config.HasValidGeminiKey() {
		logger.Warn("Gemini API key not configured; insights, questions and posts will fail until GEMINI_API_KEY is set")
	}

	return &app{cfg: cfg, db: db, cache: svc, search: search, llm: gemini}, nil
}

func (a *app) newSession() (*dashboard.Session, error) {
	return dashboard.NewSession(a.search, a.llm, a.db, dashboard.Options{
		MaxResults: a.cfg.Membit.MaxResults,
		Filter: core.FilterConfig{
			UseSearchScore: a.cfg.Filter.UseSearchScore,
			MinSearchScore: a.cfg.Filter.MinSearchScore,
		},
		Insights: insights.DefaultOptions(),
		APIKey:   a.cfg.Membit.APIKey,
	})
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		logger.Error("Failed to close data store", err)
	}
}

// generationContext bounds one-shot commands by the Gemini timeout.
func (a *app) generationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, config.Duration(a.cfg.AI.Gemini.Timeout, 60*time.Second))
}
