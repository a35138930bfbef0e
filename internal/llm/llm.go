package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"google.golang.org/genai"

	"trendscope/internal/core"
	"trendscope/internal/cost"
	"trendscope/internal/jsonrepair"
	"trendscope/internal/logger"
)

const (
	// DefaultModel is the default Gemini model used for insights and answers.
	DefaultModel = "gemini-2.5-flash-lite"
	// DefaultMaxTokens caps free-text answers.
	DefaultMaxTokens = int32(1024)
	// DefaultStructuredMaxTokens caps schema-constrained JSON output.
	DefaultStructuredMaxTokens = int32(4096)
	// NoResponseText is returned when a free-text candidate carries no text.
	NoResponseText = "No response generated"

	// contextRadius is half the width of the raw-text window attached to parse failures.
	contextRadius = 100
)

// Config holds the endpoint, credential and sampling settings of the client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string // Optional endpoint override, empty for the public Gemini API
	Temperature float32
	TopK        float32
	TopP        float32
}

// DefaultConfig returns the sampling settings the dashboard has always used.
func DefaultConfig() Config {
	return Config{
		Model:       DefaultModel,
		Temperature: 0.7,
		TopK:        40,
		TopP:        0.95,
	}
}

// TextGenerationOptions contains per-call overrides.
type TextGenerationOptions struct {
	MaxTokens      int32         // Zero selects the mode default
	ResponseSchema *genai.Schema // JSON generation only
}

// Client issues generation requests to Gemini.
// A client without an API key can be constructed; every call on it fails with a
// core.ConfigurationError before any network traffic.
type Client struct {
	config Config

	mu      sync.Mutex
	gClient *genai.Client
}

// NewClient creates a new LLM client. Missing model and sampling values fall back to DefaultConfig.
func NewClient(cfg Config) *Client {
	defaults := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaults.Temperature
	}
	if cfg.TopK == 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.TopP == 0 {
		cfg.TopP = defaults.TopP
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &Client{config: cfg}
}

// GetModelName returns the model name used by this client
func (c *Client) GetModelName() string {
	return c.config.Model
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// genaiClient lazily builds the SDK client so an unconfigured client never dials out.
func (c *Client) genaiClient(ctx context.Context) (*genai.Client, error) {
	if !c.Configured() {
		return nil, &core.ConfigurationError{
			Message: "Gemini API key not found. Please set GEMINI_API_KEY or ai.gemini.api_key in your configuration",
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gClient != nil {
		return c.gClient, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  c.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.config.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.config.BaseURL}
	}
	gClient, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, &core.ConfigurationError{Message: fmt.Sprintf("failed to create Gemini client: %v", err)}
	}
	c.gClient = gClient
	return gClient, nil
}

// GenerateText returns the first candidate's text verbatim, or NoResponseText when it has none.
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	text, err := c.generate(ctx, prompt, options, false)
	if err != nil {
		return "", err
	}
	if text == "" {
		return NoResponseText, nil
	}
	return text, nil
}

// GenerateJSON requests application/json output constrained by options.ResponseSchema and
// returns the parsed value without validating it against the schema.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, options TextGenerationOptions) (any, error) {
	text, err := c.generate(ctx, prompt, options, true)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, &core.UpstreamError{
			Message: "No response text received from Gemini API. Please check your API key and try again.",
		}
	}

	value, err := ParseStructured(text)
	if err != nil {
		logger.Warn("Structured response did not parse", "model", c.config.Model, "error", err.Error(), "length", len(text))
		return nil, err
	}
	return value, nil
}

func (c *Client) generate(ctx context.Context, prompt string, options TextGenerationOptions, structured bool) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", core.NewValidationError("prompt cannot be empty")
	}

	gClient, err := c.genaiClient(ctx)
	if err != nil {
		return "", err
	}

	maxTokens := options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
		if structured {
			maxTokens = DefaultStructuredMaxTokens
		}
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.config.Temperature),
		TopK:            genai.Ptr(c.config.TopK),
		TopP:            genai.Ptr(c.config.TopP),
		MaxOutputTokens: maxTokens,
	}
	if structured {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = options.ResponseSchema
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	estimate := cost.EstimateRequest(c.config.Model, prompt, int(maxTokens))
	logger.Debug("Generating content", "model", c.config.Model, "structured", structured,
		"max_tokens", maxTokens, "estimated_input_tokens", estimate.InputTokens, "max_cost_usd", estimate.TotalCost)
	resp, err := gClient.Models.GenerateContent(ctx, c.config.Model, contents, config)
	if err != nil {
		return "", classifyError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &core.UpstreamError{
			Message: "No candidates in Gemini API response. Please check your API key and try again.",
		}
	}
	return firstText(resp.Candidates[0]), nil
}

func firstText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return ""
	}
	part := candidate.Content.Parts[0]
	if part == nil {
		return ""
	}
	return part.Text
}

// classifyError maps SDK failures onto the error taxonomy, keeping the upstream message.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return upstreamFromAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return upstreamFromAPIError(*apiErrPtr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &core.NetworkError{Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &core.UpstreamError{Message: fmt.Sprintf("failed to generate content: %v", err)}
}

// grpcStatusCodes maps the canonical status names Gemini reports to HTTP codes.
var grpcStatusCodes = map[string]int{
	"INVALID_ARGUMENT":    http.StatusBadRequest,
	"FAILED_PRECONDITION": http.StatusBadRequest,
	"OUT_OF_RANGE":        http.StatusBadRequest,
	"UNAUTHENTICATED":     http.StatusUnauthorized,
	"PERMISSION_DENIED":   http.StatusForbidden,
	"NOT_FOUND":           http.StatusNotFound,
	"ALREADY_EXISTS":      http.StatusConflict,
	"ABORTED":             http.StatusConflict,
	"RESOURCE_EXHAUSTED":  http.StatusTooManyRequests,
	"CANCELLED":           499,
	"UNIMPLEMENTED":       http.StatusNotImplemented,
	"INTERNAL":            http.StatusInternalServerError,
	"UNKNOWN":             http.StatusInternalServerError,
	"DATA_LOSS":           http.StatusInternalServerError,
	"UNAVAILABLE":         http.StatusServiceUnavailable,
	"DEADLINE_EXCEEDED":   http.StatusGatewayTimeout,
}

// statusCode prefers the numeric code and falls back to the status name.
func statusCode(apiErr genai.APIError) int {
	if apiErr.Code != 0 {
		return apiErr.Code
	}
	status := strings.ToUpper(strings.TrimSpace(apiErr.Status))
	// "429" or "429 Too Many Requests"
	if fields := strings.Fields(status); len(fields) > 0 {
		if code, err := strconv.Atoi(fields[0]); err == nil {
			return code
		}
	}
	return grpcStatusCodes[status]
}

func upstreamFromAPIError(apiErr genai.APIError) error {
	code := statusCode(apiErr)
	msg := strings.TrimSpace(apiErr.Message)
	if msg == "" {
		if code != 0 {
			msg = fmt.Sprintf("API Error: %d", code)
		} else {
			msg = fmt.Sprintf("API Error: %s", apiErr.Status)
		}
	}
	logger.Warn("Gemini request failed", "status", code, "message", msg)
	return &core.UpstreamError{Status: code, Message: msg}
}

// ParseStructured parses model output as JSON, retrying once on the repaired text.
// When both attempts fail the error carries the first parser message and a window of
// the raw text around the reported offset.
func ParseStructured(text string) (any, error) {
	var value any
	firstErr := json.Unmarshal([]byte(text), &value)
	if firstErr == nil {
		return value, nil
	}

	var repaired any
	if err := json.Unmarshal([]byte(jsonrepair.Repair(text)), &repaired); err == nil {
		return repaired, nil
	}

	offset := int64(-1)
	var syntaxErr *json.SyntaxError
	if errors.As(firstErr, &syntaxErr) {
		offset = syntaxErr.Offset
	}
	return nil, &core.MalformedResponseError{
		ParseError: firstErr.Error(),
		Offset:     offset,
		Context:    errorWindow(text, offset),
	}
}

// errorWindow returns up to contextRadius bytes either side of offset, widened to rune boundaries.
func errorWindow(text string, offset int64) string {
	if offset < 0 || text == "" {
		return ""
	}
	pos := int(offset)
	if pos > len(text) {
		pos = len(text)
	}
	start := max(0, pos-contextRadius)
	end := min(len(text), pos+contextRadius)
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}
	return text[start:end]
}
