package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazette-app/gazette/internal/audit"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/view"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

var (
	master = rbac.Identity{ID: 1, Email: "master@example.com", Role: rbac.RoleMaster}
	admin  = rbac.Identity{ID: 2, Email: "admin@example.com", Role: rbac.RoleAdmin}
)

func newAuditRouter(t *testing.T, svc *stubTimelineService) http.Handler {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, svc, templates, shared.NewCSRFManager("secret"), rbac.Middleware{})
	h.now = func() time.Time { return time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func serve(r http.Handler, actor *rbac.Identity, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := shared.ContextWithSession(req.Context(), &shared.Session{ID: "test"})
	if actor != nil {
		ctx = rbac.ContextWithIdentity(ctx, *actor)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req.WithContext(ctx))
	return rr
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	svc := &stubTimelineService{result: audit.Result{
		Rows: []audit.TimelineRow{{
			At:         time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC),
			ActorEmail: "master@example.com",
			Action:     "user.role_changed",
			Entity:     "user",
			EntityID:   "7",
			Meta:       `{"to": "admin"}`,
		}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	rr := serve(newAuditRouter(t, svc), &master, "/audit/")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "user.role_changed")
	assert.Equal(t, "2024-06-03", svc.lastFilters.From.Format(dateLayout))
	assert.Equal(t, "2024-06-10", svc.lastFilters.To.Format(dateLayout))
	assert.Equal(t, 1, svc.lastFilters.Page)
}

func TestTimelinePassesFilters(t *testing.T) {
	svc := &stubTimelineService{}
	rr := serve(newAuditRouter(t, svc), &master, "/audit/?from=2024-05-01&to=2024-05-31&actor=admin@example.com&entity=publisher&action=publisher.deleted&page=3")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "No audit entries")
	assert.Equal(t, "admin@example.com", svc.lastFilters.Actor)
	assert.Equal(t, "publisher", svc.lastFilters.Entity)
	assert.Equal(t, "publisher.deleted", svc.lastFilters.Action)
	assert.Equal(t, 3, svc.lastFilters.Page)
}

func TestTimelineRejectsBadRanges(t *testing.T) {
	r := newAuditRouter(t, &stubTimelineService{})

	for _, path := range []string{
		"/audit/?from=2024-06-10&to=2024-06-01",
		"/audit/?from=2024-01-01&to=2024-06-01",
		"/audit/?to=yesterday",
		"/audit/?page=0",
	} {
		rr := serve(r, &master, path)
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestTimelineIsMasterOnly(t *testing.T) {
	r := newAuditRouter(t, &stubTimelineService{})

	rr := serve(r, &admin, "/audit/")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	rr = serve(r, nil, "/audit/export.csv")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestExportCSV(t *testing.T) {
	svc := &stubTimelineService{exportRows: []audit.TimelineRow{{
		At:         time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC),
		ActorEmail: "admin@example.com",
		Action:     "publisher.created",
		Entity:     "publisher",
		EntityID:   "3",
		Meta:       "{}",
	}}}
	rr := serve(newAuditRouter(t, svc), &master, "/audit/export.csv")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "2024-06-09T08:00:00Z,admin@example.com,publisher.created,publisher,3,{}")
}
