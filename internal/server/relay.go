package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"trendscope/internal/logger"
	"trendscope/internal/membit"
)

// APIKeyHeader is the credential header the relay forwards.
const APIKeyHeader = membit.APIKeyHeader

// Relay forwards browser requests to the search API so the browser never calls it cross-origin.
// The upstream path comes from the route wildcard or, failing that, the "path" query parameter,
// which is never forwarded.
type Relay struct {
	baseURL string
	client  *http.Client
}

func NewRelay(baseURL string, timeout time.Duration) *Relay {
	if baseURL == "" {
		baseURL = membit.DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Relay{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	path := strings.Trim(chi.URLParam(r, "*"), "/")
	if path == "" {
		path = strings.Trim(query.Get("path"), "/")
	}
	query.Del("path")

	if path == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "API path not found"})
		return
	}
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "API key required in " + APIKeyHeader + " header"})
		return
	}

	target := p.baseURL + "/" + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to read request body"})
			return
		}
		if len(data) > 0 {
			body = bytes.NewReader(data)
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Proxy error", "message": err.Error()})
		return
	}
	req.Header.Set(APIKeyHeader, apiKey)
	req.Header.Set("Content-Type", "application/json")

	logger.Debug("Relaying request", "method", r.Method, "path", path)
	resp, err := p.client.Do(req)
	if err != nil {
		logger.Warn("Relay request failed", "path", path, "error", err.Error())
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Proxy error", "message": err.Error()})
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil || !json.Valid(data) {
		msg := "upstream response is not JSON"
		if err != nil {
			msg = err.Error()
		}
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Proxy error", "message": msg})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(data)
}
