package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeassistant/internal/assistant"
	"lifeassistant/internal/auth"
	"lifeassistant/internal/budget"
	"lifeassistant/internal/core"
	"lifeassistant/internal/services"
)

const testPassword = "correct horse"

type fakeBudget struct {
	mu        sync.Mutex
	connected bool
	summary   *core.BudgetSummary
	refreshes int
}

func (f *fakeBudget) Connected() bool { return f.connected }

func (f *fakeBudget) GetBudgetSummary(context.Context) (*core.BudgetSummary, bool) {
	return f.summary, f.summary != nil
}

func (f *fakeBudget) Refresh(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return nil
}

func (f *fakeBudget) BudgetContext(ctx context.Context) string {
	s, ok := f.GetBudgetSummary(ctx)
	if !ok {
		return budget.NotAvailable
	}
	return budget.FormatContext(s)
}

func (f *fakeBudget) Status(context.Context) budget.Status {
	switch {
	case !f.connected:
		return budget.StatusNotConfigured
	case f.summary == nil:
		return budget.StatusInvalid
	}
	return budget.StatusConnected
}

type echoResponder struct{}

func (echoResponder) GetResponse(_ context.Context, msg string, _ *assistant.Context, _ []core.Message) string {
	return "echo: " + msg
}

type memChatLog struct {
	mu    sync.Mutex
	turns []core.ChatTurn
}

func (m *memChatLog) AppendChatTurn(_ context.Context, user, reply string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, core.ChatTurn{UserMessage: user, AssistantResponse: reply})
	return nil
}

func (m *memChatLog) RecentChatTurns(_ context.Context, limit int) ([]core.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ChatTurn
	for i := len(m.turns) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.turns[i])
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	srv    *Server
	budget *fakeBudget
	log    *memChatLog
}

func newTestEnv(t *testing.T, b *fakeBudget, pinger Pinger) *testEnv {
	t.Helper()
	return newTestEnvWithProxies(t, b, pinger, nil)
}

func newTestEnvWithProxies(t *testing.T, b *fakeBudget, pinger Pinger, proxies []string) *testEnv {
	t.Helper()
	if b == nil {
		b = &fakeBudget{}
	}
	chatLog := &memChatLog{}
	srv, err := NewServer(":0", Deps{
		Auth:           auth.NewManager(testPassword, time.Hour, nil),
		Budget:         b,
		Chat:           services.NewChatService(echoResponder{}, b, chatLog),
		ChatLog:        chatLog,
		Store:          pinger,
		TrustedProxies: proxies,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, budget: b, log: chatLog}
}

func (e *testEnv) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (e *testEnv) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := e.do(formRequest("/login", url.Values{"password": {testPassword}}), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/", rec.Header().Get("Location"))
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("login set no session cookie")
	return nil
}

func sampleSummary() *core.BudgetSummary {
	age := 21
	return &core.BudgetSummary{
		Month:      "2024-05-01",
		Budgeted:   3000,
		Spent:      1765.4,
		Remaining:  1234.6,
		AgeOfMoney: &age,
		Categories: []core.CategorySpend{
			{Name: "Rent", Budgeted: 1500, Spent: 1500},
			{Name: "Dining Out", Budgeted: 200, Spent: 250.5},
			{Name: "Fun & Games", Budgeted: 100, Spent: 15},
		},
	}
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil, fakePinger{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Contains(t, health, "uptime")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "ready", ready.Status)
	assert.Equal(t, "ok", ready.Checks["store"])
}

func TestReadyReportsStoreFailure(t *testing.T) {
	env := newTestEnv(t, nil, fakePinger{err: errors.New("connection refused")})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/readyz", nil), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestProtectedPagesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/", nil),
		httptest.NewRequest(http.MethodGet, "/dashboard", nil),
		httptest.NewRequest(http.MethodGet, "/chat", nil),
		formRequest("/chat", url.Values{"prompt": {"hi"}}),
		formRequest("/dashboard/refresh", nil),
	} {
		rec := env.do(req, nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code, req.URL.Path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), req.URL.Path)
	}
	assert.Empty(t, env.log.turns)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)

	rec = env.do(formRequest("/login", url.Values{"password": {"wrong"}}), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Incorrect password")

	cookie := env.login(t)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Quick Status")

	// Already signed in: the form bounces home.
	rec = env.do(httptest.NewRequest(http.MethodGet, "/login", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(formRequest("/logout", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestDashboardWithBudget(t *testing.T) {
	env := newTestEnv(t, &fakeBudget{connected: true, summary: sampleSummary()}, nil)
	cookie := env.login(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, "Budget Remaining")
	assert.Contains(t, body, "$1,235")
	assert.Contains(t, body, "-$1,765 spent")
	assert.Contains(t, body, "Chat Status")
	assert.Contains(t, body, `stroke="green"`)
	assert.Contains(t, body, "Rent: $1,500 / $1,500")
	assert.Contains(t, body, "Fun &amp; Games: $15 / $100")
	// Overspent categories are capped at a full bar.
	assert.Contains(t, body, `Dining Out: $251 / $200`)
	assert.NotContains(t, body, `value="125"`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestDashboardWithoutBudget(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cookie := env.login(t)

	env.log.turns = append(env.log.turns, core.ChatTurn{UserMessage: "hi", AssistantResponse: "hello"})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Not connected")
	assert.Contains(t, body, "Add your YNAB access token")
	assert.Contains(t, body, "Last Chat")
	assert.NotContains(t, body, "<svg")
}

func TestDashboardRefresh(t *testing.T) {
	env := newTestEnv(t, &fakeBudget{connected: true, summary: sampleSummary()}, nil)
	cookie := env.login(t)

	rec := env.do(formRequest("/dashboard/refresh", nil), cookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	assert.Equal(t, 1, env.budget.refreshes)
}

func TestChatSendAndClear(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cookie := env.login(t)

	rec := env.do(formRequest("/chat", url.Values{"prompt": {"<b>hello</b>"}}), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/chat", rec.Header().Get("Location"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/chat", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "echo: &lt;b&gt;hello&lt;/b&gt;")
	assert.NotContains(t, body, "<b>hello</b>")
	assert.Contains(t, body, "Add YNAB token in .env")
	require.Len(t, env.log.turns, 1)

	rec = env.do(formRequest("/chat/clear", nil), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/chat", nil), cookie)
	assert.NotContains(t, rec.Body.String(), "echo:")
	assert.Len(t, env.log.turns, 1, "clearing keeps persisted history")
}

func TestChatRejectsOverlongPrompt(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cookie := env.login(t)

	rec := env.do(formRequest("/chat", url.Values{"prompt": {strings.Repeat("a", maxPromptRunes+1)}}), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Message is too long.")
	assert.Empty(t, env.log.turns)
}

func TestChatShowsBudgetContext(t *testing.T) {
	env := newTestEnv(t, &fakeBudget{connected: true, summary: sampleSummary()}, nil)
	cookie := env.login(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/chat", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "YNAB Connected")
	assert.NotContains(t, rec.Body.String(), "Current Month Budget")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/chat?context=1", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Current Month Budget (2024-05-01):")
	assert.Contains(t, rec.Body.String(), "- Age of Money: 21 days")
}

func TestChatShowsInvalidToken(t *testing.T) {
	env := newTestEnv(t, &fakeBudget{connected: true}, nil)
	cookie := env.login(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/chat?context=1", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "YNAB Token Invalid")
	assert.Contains(t, rec.Body.String(), budget.NotAvailable)
}

func TestChatIsRateLimited(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	cookie := env.login(t)

	var limited *httptest.ResponseRecorder
	for i := 0; i < 30 && limited == nil; i++ {
		rec := env.do(formRequest("/chat", url.Values{"prompt": {"again"}}), cookie)
		if rec.Code == http.StatusTooManyRequests {
			limited = rec
		}
	}
	require.NotNil(t, limited, "expected a 429 within 30 requests")
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.LessOrEqual(t, len(env.log.turns), 20)
}

func TestTrustedProxyKeysLimitByForwardedClient(t *testing.T) {
	tests := []struct {
		name        string
		proxies     []string
		wantLimited bool
	}{
		{"configured proxy", []string{"100.64.0.0/10"}, false},
		{"unknown proxy", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithProxies(t, nil, nil, tt.proxies)

			limited := false
			for i := range 30 {
				req := formRequest("/login", url.Values{"password": {"wrong"}})
				req.RemoteAddr = "100.64.0.1:443"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i%2+1))
				if env.do(req, nil).Code == http.StatusTooManyRequests {
					limited = true
				}
			}
			assert.Equal(t, tt.wantLimited, limited)
		})
	}
}

func TestNewServerRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewServer(":0", Deps{
		Auth:           auth.NewManager(testPassword, time.Hour, nil),
		Chat:           services.NewChatService(echoResponder{}, nil, nil),
		TrustedProxies: []string{"not-a-cidr"},
	})
	require.Error(t, err)
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/login", nil), nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.True(t, strings.HasPrefix(rec.Header().Get("X-Request-ID"), "req_"))

	rec = env.do(httptest.NewRequest(http.MethodTrace, "/", nil), nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nope", nil), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=3600")
	assert.Contains(t, rec.Body.String(), ".gauge")
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.login(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total 2")
	assert.Contains(t, body, "active_sessions 1")
	assert.Contains(t, body, "# TYPE rate_limit_hits_total counter")
}

func TestShutdownIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	require.NoError(t, env.srv.Shutdown(context.Background()))
	require.NoError(t, env.srv.Shutdown(context.Background()))
}
