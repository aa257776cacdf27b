package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazette-app/gazette/internal/observability"
	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/view"
	"github.com/gazette-app/gazette/jobs"
)

const cookieName = "test_session"

type stubIdentities map[int64]rbac.Identity

func (s stubIdentities) GetIdentity(_ context.Context, id int64) (rbac.Identity, error) {
	ident, ok := s[id]
	if !ok {
		return rbac.Identity{}, httpx.ErrNotFound
	}
	return ident, nil
}

type routerFixture struct {
	handler http.Handler
	redis   *miniredis.Miniredis
}

func newRouterFixture(t *testing.T, identities stubIdentities) routerFixture {
	t.Helper()
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	t.Cleanup(RefreshTestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	engine, err := view.NewEngine()
	require.NoError(t, err)

	handler := NewRouter(RouterParams{
		Config:         &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second},
		Templates:      engine,
		SessionManager: shared.NewSessionManager(client, cookieName, time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("csrf-secret"),
		RBACMiddleware: rbac.Middleware{Identities: identities},
		JobHandler:     jobs.NewHandler(nil, nil),
		Metrics:        observability.NewMetrics(),
	})
	return routerFixture{handler: handler, redis: mr}
}

func (f routerFixture) signIn(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	require.NoError(t, f.redis.Set("gazette:session:abc", `{"values":{},"user_id":"`+userID+`"}`))
	return &http.Cookie{Name: cookieName, Value: "abc"}
}

func (f routerFixture) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthzAndSessionCookie(t *testing.T) {
	f := newRouterFixture(t, nil)

	rr := f.get("/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Contains(t, rr.Header().Get("Set-Cookie"), cookieName+"=")
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestHomeAnonymousOffersSignIn(t *testing.T) {
	f := newRouterFixture(t, nil)

	rr := f.get("/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `href="/auth/register"`)
	assert.NotContains(t, rr.Body.String(), "Welcome back")
}

func TestHomeSignedInShowsRoleActions(t *testing.T) {
	f := newRouterFixture(t, stubIdentities{
		3: {ID: 3, Email: "admin@example.com", Role: rbac.RoleAdmin},
	})

	rr := f.get("/", f.signIn(t, "3"))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Welcome back")
	assert.Contains(t, body, "admin@example.com")
	assert.Contains(t, body, "Manage publishers")
	assert.NotContains(t, body, `href="/posts/new"`)
}

func TestStaleSessionUserIsTreatedAsAnonymous(t *testing.T) {
	f := newRouterFixture(t, stubIdentities{})

	rr := f.get("/", f.signIn(t, "99"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "Welcome back")
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	f := newRouterFixture(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", strings.NewReader("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestStaticAssetsAreCached(t *testing.T) {
	f := newRouterFixture(t, nil)

	rr := f.get("/static/css/app.css", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestMetricsMounted(t *testing.T) {
	f := newRouterFixture(t, nil)

	_ = f.get("/healthz", nil)
	rr := f.get("/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `gazette_http_requests_total{code="200",route="/healthz"}`)
}

func TestJobsHealthRequiresAuthorizationPanel(t *testing.T) {
	f := newRouterFixture(t, stubIdentities{
		1: {ID: 1, Email: "master@example.com", Role: rbac.RoleMaster},
		3: {ID: 3, Email: "admin@example.com", Role: rbac.RoleAdmin},
	})

	rr := f.get("/jobs/health", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
	assert.NotContains(t, rr.Body.String(), `"queue"`)

	rr = f.get("/jobs/health", f.signIn(t, "3"))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"queue"`)

	rr = f.get("/jobs/health", f.signIn(t, "1"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)
}
