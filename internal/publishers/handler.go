package publishers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/view"
)

// Handler exposes publisher pages.
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

// MountRoutes registers publisher routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.list)
		r.Get("/{id}", h.show)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CapManagePublishers))
		r.Get("/new", h.showNew)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}/edit", h.update)
		r.Post("/{id}/delete", h.delete)
	})
}

type formData struct {
	Form        Input
	Errors      map[string]string
	Action      string
	PublisherID int64
	IsEdit      bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, "list publishers", err)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	h.render(w, r, "pages/publishers_list.html", "Publishers", map[string]any{
		"Publishers": items,
		"CanManage":  rbac.CanManagePublishers(actor),
	}, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "show publisher", httpx.ErrNotFound)
		return
	}
	detail, err := h.service.Show(r.Context(), id)
	if err != nil {
		h.fail(w, r, "show publisher", err)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	h.render(w, r, "pages/publisher_show.html", detail.Publisher.Name, map[string]any{
		"Detail":    detail,
		"CanManage": rbac.CanManagePublishers(actor),
	}, http.StatusOK)
}

func (h *Handler) showNew(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/publisher_form.html", "New publisher", formData{
		Form:   Input{Active: true},
		Action: "/publishers",
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	in := inputFromForm(r)
	p, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.render(w, r, "pages/publisher_form.html", "New publisher", formData{
				Form:   in,
				Errors: verr.Fields,
				Action: "/publishers",
			}, http.StatusUnprocessableEntity)
			return
		}
		h.fail(w, r, "create publisher", err)
		return
	}
	h.redirectWithFlash(w, r, "/publishers/"+strconv.FormatInt(p.ID, 10), "success", "Publisher was successfully created.")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "edit publisher", httpx.ErrNotFound)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "edit publisher", err)
		return
	}
	h.render(w, r, "pages/publisher_form.html", "Edit publisher", formData{
		Form:        Input{Name: p.Name, Description: p.Description, Active: p.Active},
		Action:      editPath(id),
		PublisherID: id,
		IsEdit:      true,
	}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "update publisher", httpx.ErrNotFound)
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
			h.render(w, r, "pages/publisher_form.html", "Edit publisher", formData{
				Form:        in,
				Errors:      verr.Fields,
				Action:      editPath(id),
				PublisherID: id,
				IsEdit:      true,
			}, http.StatusUnprocessableEntity)
			return
		}
		h.fail(w, r, "update publisher", err)
		return
	}
	h.redirectWithFlash(w, r, "/publishers/"+strconv.FormatInt(id, 10), "success", "Publisher was successfully updated.")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		h.fail(w, r, "delete publisher", httpx.ErrNotFound)
		return
	}
	actor, _ := rbac.IdentityFromContext(r.Context())
	detached, err := h.service.Delete(r.Context(), actor, id)
	if err != nil {
		h.fail(w, r, "delete publisher", err)
		return
	}
	h.logger.Info("publisher deleted", slog.Int64("publisher_id", id), slog.Int64("detached_posts", detached))
	h.redirectWithFlash(w, r, "/publishers", "success", "Publisher was successfully deleted.")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := httpx.StatusOf(err)
	switch status {
	case http.StatusForbidden:
		h.redirectWithFlash(w, r, "/", "error", "You do not have permission to perform this action.")
		return
	case http.StatusNotFound:
		h.render(w, r, "pages/error.html", "Not found", map[string]any{"Message": "Publisher not found."}, status)
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
	active := r.PostFormValue("active")
	return Input{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Active:      active == "on" || active == "true" || active == "1",
	}
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func editPath(id int64) string {
	return "/publishers/" + strconv.FormatInt(id, 10) + "/edit"
}
