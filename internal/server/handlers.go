package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trendscope/internal/core"
	"trendscope/internal/dashboard"
	"trendscope/internal/logger"
)

const maxBodyBytes = 1 << 20

// HealthResponse is the /health payload
type HealthResponse struct {
	Status   string            `json:"status"`
	Uptime   string            `json:"uptime"`
	Sessions int               `json:"sessions"`
	Checks   map[string]string `json:"checks"`
}

// ErrorBody describes a failed operation
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ViewResponse carries the active tab view, plus the error of the operation when it failed
type ViewResponse struct {
	View  dashboard.View `json:"view"`
	Error *ErrorBody     `json:"error,omitempty"`
	Post  string         `json:"post,omitempty"`
}

// BookmarksResponse lists bookmarks after a mutation
type BookmarksResponse struct {
	Bookmarks []core.ResultItem `json:"bookmarks"`
	Message   string            `json:"message,omitempty"`
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

type tabRequest struct {
	Tab      string             `json:"tab"`
	Snapshot *tabSnapshotFields `json:"snapshot,omitempty"`
}

// tabSnapshotFields are the input values the browser holds for the tab being left.
type tabSnapshotFields struct {
	SearchInput  *string `json:"searchInput,omitempty"`
	NLQueryInput *string `json:"nlQueryInput,omitempty"`
}

type queryRequest struct {
	Question string `json:"question"`
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

type bookmarkRequest struct {
	UUID string `json:"uuid"`
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"cache": "disabled"}
	if s.cache != nil && s.cache.IsAvailable() {
		checks["cache"] = "ok"
		if err := s.cache.Ping(r.Context()); err != nil {
			checks["cache"] = "error"
		}
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
		Sessions: s.sessions.Len(),
		Checks:   checks,
	})
}

// handleState handles GET /api/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ViewResponse{View: sessionFrom(r).View()})
}

// handleSearch handles POST /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := sessionFrom(r).Search(r.Context(), req.Query, req.MaxResults)
	respondView(w, view, err, false)
}

// handleSwitchTab handles POST /api/tab
func (s *Server) handleSwitchTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tab, err := core.ParseTabID(req.Tab)
	if err != nil {
		respondView(w, sessionFrom(r).View(), err, false)
		return
	}

	var snapshot *core.TabStateUpdate
	if req.Snapshot != nil {
		snapshot = &core.TabStateUpdate{
			SearchInput:  req.Snapshot.SearchInput,
			NLQueryInput: req.Snapshot.NLQueryInput,
		}
	}
	view, err := sessionFrom(r).SwitchTab(tab, snapshot)
	respondView(w, view, err, false)
}

// handleSetFilter handles PUT /api/filter
func (s *Server) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	var cfg core.FilterConfig
	if !decodeJSON(w, r, &cfg) {
		return
	}
	view, err := sessionFrom(r).SetFilter(cfg)
	respondView(w, view, err, false)
}

// handleSetCredential handles PUT /api/credential
func (s *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session := sessionFrom(r)
	err := session.SetAPIKey(req.APIKey)
	respondView(w, session.View(), err, false)
}

// handleSummary handles POST /api/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	view, err := sessionFrom(r).GenerateSummary(r.Context())
	respondView(w, view, err, true)
}

// handleQuery handles POST /api/query
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	view, err := sessionFrom(r).AskQuestion(r.Context(), req.Question)
	respondView(w, view, err, true)
}

// handlePost handles POST /api/post
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, view, err := sessionFrom(r).ComposePost(r.Context())
	if err != nil {
		respondView(w, view, err, true)
		return
	}
	respondJSON(w, http.StatusOK, ViewResponse{View: view, Post: post})
}

// handleClusterInfo handles GET /api/clusters/info?label=
func (s *Server) handleClusterInfo(w http.ResponseWriter, r *http.Request) {
	cluster, err := sessionFrom(r).ClusterInfo(r.Context(), r.URL.Query().Get("label"))
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cluster)
}

// handleListBookmarks handles GET /api/bookmarks
func (s *Server) handleListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := sessionFrom(r).Bookmarks()
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, BookmarksResponse{Bookmarks: nonNil(bookmarks)})
}

// handleAddBookmark handles POST /api/bookmarks
func (s *Server) handleAddBookmark(w http.ResponseWriter, r *http.Request) {
	var req bookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session := sessionFrom(r)
	added, err := session.AddBookmark(req.UUID)
	if err != nil {
		respondClassified(w, err)
		return
	}
	bookmarks, err := session.Bookmarks()
	if err != nil {
		respondClassified(w, err)
		return
	}

	status, msg := http.StatusCreated, "Post bookmarked"
	if !added {
		status, msg = http.StatusOK, "Post already bookmarked"
	}
	respondJSON(w, status, BookmarksResponse{Bookmarks: nonNil(bookmarks), Message: msg})
}

// handleRemoveBookmark handles DELETE /api/bookmarks/{index}
func (s *Server) handleRemoveBookmark(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation", "Bookmark index must be a number")
		return
	}
	session := sessionFrom(r)
	if _, err := session.RemoveBookmark(index); err != nil {
		respondClassified(w, err)
		return
	}
	bookmarks, err := session.Bookmarks()
	if err != nil {
		respondClassified(w, err)
		return
	}
	respondJSON(w, http.StatusOK, BookmarksResponse{Bookmarks: nonNil(bookmarks), Message: "Bookmark removed"})
}

// handleExport handles GET /api/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name, data, err := sessionFrom(r).Export(time.Now())
	if err != nil {
		respondClassified(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decodeJSON reads a bounded JSON body into dst, answering 400 itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "validation", "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// respondView writes the view with the operation's error. Generation failures are already
// stored in the tab state for display, so stored=true answers them with 200.
func respondView(w http.ResponseWriter, view dashboard.View, err error, stored bool) {
	if err == nil {
		respondJSON(w, http.StatusOK, ViewResponse{View: view})
		return
	}

	status := statusFor(err)
	if stored && !core.IsValidation(err) {
		status = http.StatusOK
	}
	logRequestError(err)
	respondJSON(w, status, ViewResponse{
		View:  view,
		Error: &ErrorBody{Kind: core.Kind(err), Message: err.Error()},
	})
}

func respondClassified(w http.ResponseWriter, err error) {
	logRequestError(err)
	respondError(w, statusFor(err), core.Kind(err), err.Error())
}

func logRequestError(err error) {
	if core.IsValidation(err) {
		return
	}
	logger.Warn("Request failed", "kind", core.Kind(err), "error", err.Error())
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch core.Kind(err) {
	case "validation":
		return http.StatusBadRequest
	case "configuration":
		return http.StatusServiceUnavailable
	case "network", "upstream", "malformed_response":
		return http.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func nonNil(items []core.ResultItem) []core.ResultItem {
	if items == nil {
		return []core.ResultItem{}
	}
	return items
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, map[string]ErrorBody{"error": {Kind: kind, Message: message}})
}
