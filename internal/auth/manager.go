package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"lifeassistant/internal/cache"
	"lifeassistant/internal/log"
)

const (
	CookieName = "la_session"
	// DefaultMaxSessions bounds the in-memory session table.
	DefaultMaxSessions = 1000
)

type contextKey struct{}

// Manager issues session cookies and checks the shared password.
type Manager struct {
	secret   string
	ttl      time.Duration
	sessions *cache.LRUCache[*Session]
	now      func() time.Time
	logger   *log.Logger
}

// NewManager creates a manager whose sessions expire after ttl of inactivity.
func NewManager(secret string, ttl time.Duration, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		secret:   secret,
		ttl:      ttl,
		sessions: cache.NewLRUCache[*Session](DefaultMaxSessions, ttl),
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

// Sessions exposes the session table for periodic cleanup.
func (m *Manager) Sessions() cache.Cleaner { return m.sessions }

// SessionCount returns the number of sessions held, including ones not yet swept.
func (m *Manager) SessionCount() int { return m.sessions.Size() }

// Lookup returns the session named by the request cookie, if still alive.
func (m *Manager) Lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return m.sessions.Get(c.Value)
}

func (m *Manager) create(w http.ResponseWriter, r *http.Request) *Session {
	s := newSession(uuid.NewString(), m.now())
	m.sessions.Set(s.ID, s)
	m.setCookie(w, r, s.ID, int(m.ttl.Seconds()))
	return s
}

// Login checks password and, on success, replaces any existing session with a
// fresh authenticated one.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, password string) (*Session, bool) {
	fields := log.NewFields().WithOperation(log.OpLogin)
	if !CheckSecret(password, m.secret) {
		m.logger.WarnContext(r.Context(), "Login rejected", fields.ToSlice()...)
		return nil, false
	}

	if old, ok := m.Lookup(r); ok {
		m.sessions.Delete(old.ID)
	}
	s := m.create(w, r)
	s.Authenticate()
	m.logger.InfoContext(r.Context(), "Login accepted", append(fields.ToSlice(), log.FieldSessionID, shortID(s.ID))...)
	return s, true
}

// Logout drops the session and expires the cookie.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	if s, ok := m.Lookup(r); ok {
		m.sessions.Delete(s.ID)
	}
	m.setCookie(w, r, "", -1)
}

// RequireAuth redirects requests without an authenticated session to /login.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := m.Lookup(r)
		if !ok || !s.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, r *http.Request, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// NewContext stores the session in ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by RequireAuth.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}
