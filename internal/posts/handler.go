package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/publishers"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/view"
)

const notOwnerMessage = "You can only edit your own posts."

// Handler exposes post pages.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers post routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.index)
		r.Get("/mine", h.mine)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapCreatePosts))
		r.Get("/new", h.showNew)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}/edit", h.update)
		r.Post("/{id}/delete", h.delete)
	})
}

type formData struct {
	Form              Input
	Errors            map[string]string
	Publishers        []publishers.Publisher
	SelectedPublisher int64
	Statuses          []Status
	Action            string
	IdempotencyKey    string
	PostID            int64
	IsEdit            bool
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Index(r.Context())
	if err != nil {
		h.fail(w, r, "list posts", err)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	h.render(w, r, "pages/posts_index.html", "Posts", map[string]any{
		"Posts":     items,
		"CanCreate": rbac.CanCreatePosts(actor),
	}, http.StatusOK)
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.IdentityFromContext(r.Context())
	filter := ParseFilter(r.URL.Query().Get("filter"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	result, err := h.service.Mine(r.Context(), actor, filter, page)
	if err != nil {
		h.fail(w, r, "list my posts", err)
		return
	}
	h.render(w, r, "pages/posts_mine.html", "My posts", map[string]any{
		"Page":      result,
		"Filters":   []Filter{FilterAll, FilterDraft, FilterPublished},
		"CanCreate": rbac.CanCreatePosts(actor),
	}, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "show post", httpx.ErrNotFound)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	p, err := h.service.Show(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "show post", err)
		return
	}
	h.render(w, r, "pages/post_show.html", p.Title, map[string]any{
		"Post":    p,
		"IsOwner": rbac.IsOwner(actor, p),
	}, http.StatusOK)
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formData{
		Form:           Input{Status: StatusPublished},
		Action:         "/posts",
		IdempotencyKey: uuid.NewString(),
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	in := inputFromForm(r)
	key := strings.TrimSpace(r.PostFormValue("idempotency_key"))
	p, err := h.service.Create(r.Context(), actor, in, key)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			// A fresh key lets the corrected form be submitted.
			h.renderForm(w, r, formData{
				Form:           in,
				Errors:         verr.Fields,
				Action:         "/posts",
				IdempotencyKey: uuid.NewString(),
			}, http.StatusUnprocessableEntity)
		case errors.Is(err, ErrAlreadySubmitted):
			h.redirectWithFlash(w, r, "/posts/mine", "info", "This post was already submitted.")
		default:
			h.fail(w, r, "create post", err)
		}
		return
	}
	notice := "Post was successfully published."
	if p.Draft() {
		notice = "Post was successfully saved as draft."
	}
	h.redirectWithFlash(w, r, postPath(p.ID), "success", notice)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "edit post", httpx.ErrNotFound)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	p, err := h.service.Editable(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "edit post", err)
		return
	}
	h.renderForm(w, r, formData{
		Form:   Input{Title: p.Title, Content: p.Content, Status: p.Status, PublisherID: p.PublisherID},
		Action: postPath(id) + "/edit",
		PostID: id,
		IsEdit: true,
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "update post", httpx.ErrNotFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	in := inputFromForm(r)
	if _, err := h.service.Update(r.Context(), actor, id, in); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.renderForm(w, r, formData{
				Form:   in,
				Errors: verr.Fields,
				Action: postPath(id) + "/edit",
				PostID: id,
				IsEdit: true,
			}, http.StatusUnprocessableEntity)
			return
		}
		h.fail(w, r, "update post", err)
		return
	}
	h.redirectWithFlash(w, r, postPath(id), "success", "Post was successfully updated.")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "delete post", httpx.ErrNotFound)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.fail(w, r, "delete post", err)
		return
	}
	h.redirectWithFlash(w, r, "/posts", "success", "Post was successfully deleted.")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, data formData, status int) {
	pubs, err := h.service.ActivePublishers(r.Context())
	if err != nil {
		h.fail(w, r, "list active publishers", err)
		return
	}
	data.Publishers = pubs
	data.Statuses = []Status{StatusPublished, StatusDraft}
	if data.Form.PublisherID != nil {
		data.SelectedPublisher = *data.Form.PublisherID
	}
	title := "New post"
	if data.IsEdit {
		title = "Edit post"
	}
	h.render(w, r, "pages/post_form.html", title, data, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := httpx.StatusOf(err)
	switch status {
	case http.StatusForbidden:
		h.redirectWithFlash(w, r, "/posts", "error", notOwnerMessage)
		return
	case http.StatusUnauthorized:
		h.redirectWithFlash(w, r, "/auth/login", "error", "You need to sign in before continuing.")
		return
	case http.StatusNotFound:
		h.render(w, r, "pages/error.html", "Not found", map[string]any{"Message": "Post not found."}, status)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	h.render(w, r, "pages/error.html", "Error", map[string]any{"Message": "Something went wrong."}, status)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Nav:         rbac.Nav(rbac.IdentityFromContext(r.Context())),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func inputFromForm(r *http.Request) Input {
	in := Input{
		Title:     r.PostFormValue("title"),
		Content:   r.PostFormValue("content"),
		SaveDraft: r.PostForm.Has("draft"),
	}
	if raw := strings.TrimSpace(r.PostFormValue("status")); raw != "" {
		// Unknown values are left for validation to reject.
		in.Status = Status(strings.ToLower(raw))
	}
	if raw := strings.TrimSpace(r.PostFormValue("publisher_id")); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			in.PublisherID = &id
		} else {
			zero := int64(-1)
			in.PublisherID = &zero
		}
	}
	return in
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func postPath(id int64) string {
	return "/posts/" + strconv.FormatInt(id, 10)
}
