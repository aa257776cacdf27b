package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderMarkdownEscapesRawHTML(t *testing.T) {
	out := string(renderMarkdown("**bold** <script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestLayoutHidesDirectoryLinkWithoutCapability(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/home.html", TemplateData{
		Title: "Gazette",
		Nav:   Nav{SignedIn: true, Email: "admin@example.com", RoleLabel: "Admin", CanManagePublishers: true},
	})
	require.NoError(t, err)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "admin@example.com"))
	assert.NotContains(t, body, `data-nav="publishers"`)
}

func TestRenderStatusSetsContentTypeBeforeStatus(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	require.NoError(t, engine.RenderStatus(rr, http.StatusUnprocessableEntity, "pages/home.html", TemplateData{Title: "Gazette"}))
	res := rr.Result()
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", res.Header.Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<html")
}

func TestRenderStatusWritesNothingOnError(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	assert.Error(t, engine.RenderStatus(rr, http.StatusOK, "pages/missing.html", TemplateData{}))
	assert.False(t, rr.Flushed)
	assert.Empty(t, rr.Body.String())
	assert.Empty(t, rr.Header().Get("Content-Type"))
}
