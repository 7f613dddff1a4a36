package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"lifeassistant/internal/auth"
	"lifeassistant/internal/budget"
	"lifeassistant/internal/cache"
	"lifeassistant/internal/core"
	"lifeassistant/internal/log"
	"lifeassistant/internal/middleware/ratelimit"
	"lifeassistant/internal/middleware/security"
	"lifeassistant/internal/middleware/trace"
	appweb "lifeassistant/web"
)

// sessionCleanupInterval is how often idle sessions are swept.
const sessionCleanupInterval = 10 * time.Minute

// BudgetView is the budget surface the pages read from.
type BudgetView interface {
	Connected() bool
	GetBudgetSummary(ctx context.Context) (*core.BudgetSummary, bool)
	Refresh(ctx context.Context) error
	BudgetContext(ctx context.Context) string
	Status(ctx context.Context) budget.Status
}

// Chatter runs chat exchanges for a session.
type Chatter interface {
	LoadHistory(ctx context.Context, session *auth.Session) []core.Message
	Send(ctx context.Context, session *auth.Session, prompt string) (string, error)
	Clear(session *auth.Session)
}

// ChatHistory reads persisted turns for the dashboard's last-chat metric.
type ChatHistory interface {
	RecentChatTurns(ctx context.Context, limit int) ([]core.ChatTurn, error)
}

// Pinger reports whether the conversation store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers need. Budget, ChatLog and Store may be nil.
type Deps struct {
	Auth    *auth.Manager
	Budget  BudgetView
	Chat    Chatter
	ChatLog ChatHistory
	Store   Pinger
	Logger  *log.Logger

	// TrustedProxies extends the detector's default proxy ranges.
	TrustedProxies []string
}

type Server struct {
	http.Server
	templates *template.Template

	auth    *auth.Manager
	budget  BudgetView
	chat    Chatter
	chatLog ChatHistory
	store   Pinger

	logger           *log.Logger
	cacheManager     *cache.Manager
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	startedAt    time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) (*Server, error) {
	if deps.Auth == nil || deps.Chat == nil {
		return nil, fmt.Errorf("http server: auth manager and chat service are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	t, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Model calls can take most of a minute.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		templates:        t,
		auth:             deps.Auth,
		budget:           deps.Budget,
		chat:             deps.Chat,
		chatLog:          deps.ChatLog,
		store:            deps.Store,
		logger:           logger,
		cacheManager:     cache.NewManager(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(logger),
		startedAt:        time.Now(),
		now:              time.Now,
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	for _, cidr := range deps.TrustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			s.stopBackground()
			return nil, err
		}
	}

	s.cacheManager.Register(deps.Auth.Sessions())
	s.cacheManager.StartCleanup(sessionCleanupInterval)

	mux, err := s.routes()
	if err != nil {
		s.stopBackground()
		return nil, err
	}
	s.Handler = s.middleware(mux)
	return s, nil
}

func (s *Server) routes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limited := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.renderRateLimited)

	mux.Handle("GET /login", security.NoStore(http.HandlerFunc(s.handleLoginForm)))
	mux.Handle("POST /login", security.NoStore(limited(http.HandlerFunc(s.handleLogin))))
	mux.HandleFunc("POST /logout", s.handleLogout)

	protect := func(h http.HandlerFunc) http.Handler {
		return security.NoStore(s.auth.RequireAuth(h))
	}
	mux.Handle("GET /{$}", protect(s.handleHome))
	mux.Handle("GET /dashboard", protect(s.handleDashboard))
	mux.Handle("POST /dashboard/refresh", protect(s.handleDashboardRefresh))
	mux.Handle("GET /chat", protect(s.handleChat))
	mux.Handle("POST /chat", security.NoStore(s.auth.RequireAuth(limited(http.HandlerFunc(s.handleChatSend)))))
	mux.Handle("POST /chat/clear", protect(s.handleChatClear))

	return mux, nil
}

// middleware wraps h outermost-first: tracing, headers, request screening, then the logger.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = log.RequestIDMiddleware(trace.RequestIDFromRequest)(h)
	h = log.Middleware(s.logger)(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	return s.traceMiddleware.Middleware(h)
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// Shutdown stops background sweepers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopBackground()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) stopBackground() {
	s.cacheManager.Stop()
	s.rateLimiter.Stop()
}
