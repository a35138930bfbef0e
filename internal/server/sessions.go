package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"trendscope/internal/dashboard"
	"trendscope/internal/logger"
)

// SessionCookie carries the dashboard session id.
const SessionCookie = "trendscope_session"

// SessionFactory builds a fresh dashboard session.
type SessionFactory func() (*dashboard.Session, error)

type sessionEntry struct {
	session  *dashboard.Session
	lastSeen time.Time
}

// SessionManager maps session cookies to dashboard sessions.
type SessionManager struct {
	factory SessionFactory

	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func NewSessionManager(factory SessionFactory) *SessionManager {
	return &SessionManager{
		factory:  factory,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

type sessionKey struct{}

// Middleware resolves the request's session, creating one and setting the cookie when needed.
func (m *SessionManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}

		session, created, err := m.resolve(id)
		if err != nil {
			logger.Error("Failed to create session", err)
			respondError(w, http.StatusInternalServerError, "internal", "Failed to create session")
			return
		}
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    session.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (m *SessionManager) resolve(id string) (*dashboard.Session, bool, error) {
	if id != "" {
		m.mu.Lock()
		entry, ok := m.sessions[id]
		if ok {
			entry.lastSeen = m.now()
		}
		m.mu.Unlock()
		if ok {
			return entry.session, false, nil
		}
	}

	// The factory may read the database, so it runs without the lock.
	session, err := m.factory()
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	m.sessions[session.ID] = &sessionEntry{session: session, lastSeen: m.now()}
	count := len(m.sessions)
	m.mu.Unlock()

	logger.Debug("Session created", "sessions", count)
	return session, true, nil
}

// Len returns the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Prune drops sessions idle for longer than maxIdle and returns how many were removed.
func (m *SessionManager) Prune(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	removed := 0
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunPruner prunes idle sessions every interval until ctx is done.
func (m *SessionManager) RunPruner(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Prune(maxIdle); n > 0 {
				logger.Info("Pruned idle sessions", "removed", n)
			}
		}
	}
}

func sessionFrom(r *http.Request) *dashboard.Session {
	s, _ := r.Context().Value(sessionKey{}).(*dashboard.Session)
	return s
}
