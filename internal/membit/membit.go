// Package membit is the client for the Membit search API: cluster search, post search and
// cluster detail, with status-specific error messages and client-side rate limiting.
package membit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"trendscope/internal/cache"
	"trendscope/internal/core"
	"trendscope/internal/logger"
)

const (
	// DefaultBaseURL is the public Membit API root.
	DefaultBaseURL = "https://api.membit.ai/v1"
	// APIKeyHeader carries the credential on every request.
	APIKeyHeader = "X-Membit-Api-Key"
	// DefaultMaxResults is the result limit when none is requested.
	DefaultMaxResults = 10
	// ClusterPreviewPosts is the number of member posts shown with a cluster's detail.
	ClusterPreviewPosts = 5
)

// Config configures the client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit time.Duration // Minimum interval between requests, zero for unlimited
	CacheTTL  time.Duration
}

// SearchRequest is one logical search.
type SearchRequest struct {
	Query      string
	APIKey     string
	MaxResults int
}

// Client talks to the Membit API.
type Client struct {
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	cache    cache.Service
	cacheTTL time.Duration
}

// NewClient creates a client. A nil svc disables caching.
func NewClient(cfg Config, svc cache.Service) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}
	if svc == nil {
		svc = cache.NewService(nil)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		cache:    svc,
		cacheTTL: cfg.CacheTTL,
	}
}

// Search dispatches to the search endpoint for tab.
func (c *Client) Search(ctx context.Context, tab core.TabID, req SearchRequest) ([]core.ResultItem, error) {
	if tab == core.TabClusters {
		return c.SearchClusters(ctx, req)
	}
	return c.SearchPosts(ctx, req)
}

// SearchClusters returns the clusters matching req.Query.
func (c *Client) SearchClusters(ctx context.Context, req SearchRequest) ([]core.ResultItem, error) {
	return c.search(ctx, "clusters", req)
}

// SearchPosts returns the posts matching req.Query.
func (c *Client) SearchPosts(ctx context.Context, req SearchRequest) ([]core.ResultItem, error) {
	return c.search(ctx, "posts", req)
}

func (c *Client) search(ctx context.Context, kind string, req SearchRequest) ([]core.ResultItem, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return nil, core.ErrMissingAPIKey
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}

	key := cache.SearchKey(kind, req.Query, limit, apiKey)
	var cached []core.ResultItem
	if err := c.cache.Get(ctx, key, &cached); err == nil {
		logger.Debug("Membit search served from cache", "kind", kind, "query", req.Query, "items", len(cached))
		return cached, nil
	}

	params := url.Values{}
	params.Set("q", req.Query)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/"+kind+"/search?"+params.Encode(), apiKey, searchErrorMessage)
	if err != nil {
		return nil, err
	}

	// {"clusters": [...]} or {"posts": [...]}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &core.UpstreamError{Status: http.StatusOK, Message: fmt.Sprintf("failed to parse Membit response: %v", err)}
	}
	items := []core.ResultItem{}
	if raw, ok := envelope[kind]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, &core.UpstreamError{Status: http.StatusOK, Message: fmt.Sprintf("failed to parse Membit %s: %v", kind, err)}
		}
	}

	if err := c.cache.Set(ctx, key, items, c.cacheTTL); err != nil {
		logger.Warn("Failed to cache Membit search", "kind", kind, "error", err.Error())
	}
	logger.Info("Membit search completed", "kind", kind, "query", req.Query, "items", len(items))
	return items, nil
}

// ClusterInfo returns a cluster with at most ClusterPreviewPosts of its member posts.
func (c *Client) ClusterInfo(ctx context.Context, label, apiKey string) (*core.ResultItem, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, core.ErrMissingAPIKey
	}

	key := cache.ClusterKey(label, apiKey)
	var cluster core.ResultItem
	if err := c.cache.Get(ctx, key, &cluster); err != nil {
		body, err := c.get(ctx, "/clusters/info?"+url.Values{"label": {label}}.Encode(), apiKey, clusterInfoErrorMessage)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &cluster); err != nil {
			return nil, &core.UpstreamError{Status: http.StatusOK, Message: fmt.Sprintf("failed to parse cluster info: %v", err)}
		}
		if err := c.cache.Set(ctx, key, cluster, c.cacheTTL); err != nil {
			logger.Warn("Failed to cache cluster info", "label", label, "error", err.Error())
		}
	}

	if len(cluster.Posts) > ClusterPreviewPosts {
		cluster.Posts = cluster.Posts[:ClusterPreviewPosts]
		cluster.Raw = nil
	}
	return &cluster, nil
}

type errorFormatter func(status int, body string) string

func (c *Client) get(ctx context.Context, path, apiKey string, format errorFormatter) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Membit request: %w", err)
	}
	req.Header.Set(APIKeyHeader, apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logger.Warn("Membit request failed", "path", req.URL.Path, "error", err.Error())
		return nil, &core.NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &core.NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := format(resp.StatusCode, string(body))
		logger.Warn("Membit request rejected", "path", req.URL.Path, "status", resp.StatusCode)
		return nil, &core.UpstreamError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}

func searchErrorMessage(status int, body string) string {
	prefix := fmt.Sprintf("API Error (%d): ", status)
	switch {
	case status == http.StatusUnauthorized:
		return prefix + "Invalid API key. Please check your API key and try again."
	case status == http.StatusForbidden:
		return prefix + "Access forbidden. Your API key may not have permission for this endpoint."
	case status == http.StatusNotFound:
		return prefix + "Endpoint not found. The API endpoint may have changed."
	case status >= 500:
		return prefix + "Server error. The API server may be experiencing issues."
	case body != "":
		return prefix + body
	default:
		return prefix + "Unknown error"
	}
}

func clusterInfoErrorMessage(status int, body string) string {
	prefix := fmt.Sprintf("API Error (%d): ", status)
	switch status {
	case http.StatusBadRequest:
		return prefix + "Bad Request: " + badRequestDetail(body)
	case http.StatusUnauthorized:
		return prefix + "Invalid API key."
	case http.StatusNotFound:
		return prefix + "Cluster not found."
	}
	if body == "" {
		return prefix + "Unknown error"
	}
	return prefix + body
}

// badRequestDetail surfaces the error or message field of a 400 body, or the raw text.
func badRequestDetail(body string) string {
	if body == "" {
		return "Invalid request parameters."
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return body
	}
	var detail any = payload
	if v, ok := payload["error"]; ok && truthy(v) {
		detail = v
	} else if v, ok := payload["message"]; ok && truthy(v) {
		detail = v
	}
	if s, ok := detail.(string); ok {
		return s
	}
	pretty, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return body
	}
	return string(pretty)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	}
	return true
}
