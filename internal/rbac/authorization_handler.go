package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/shared"
	"github.com/gazette-app/gazette/internal/view"
)

// AuthorizationHandler serves the authorization info page and role administration.
type AuthorizationHandler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      Middleware
}

// NewAuthorizationHandler builds AuthorizationHandler instance.
func NewAuthorizationHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac Middleware) *AuthorizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationHandler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers authorization routes.
func (h *AuthorizationHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.showInfo)
		r.Get("/capabilities.json", h.capabilitiesJSON)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(CapManageUsers))
		r.Post("/roles", h.updateRole)
	})
}

type capabilitiesResponse struct {
	Email        string   `json:"email"`
	Role         Role     `json:"role"`
	Capabilities []string `json:"capabilities"`
}

func (h *AuthorizationHandler) showInfo(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFromContext(r.Context())
	info, err := h.service.AuthorizationInfo(r.Context(), actor)
	if err != nil {
		h.logger.Error("authorization info", slog.Any("error", err))
		h.render(w, r, "pages/authorization.html", map[string]any{"Errors": map[string]string{"general": "Unable to load authorization details."}}, httpx.StatusOf(err))
		return
	}
	h.render(w, r, "pages/authorization.html", map[string]any{"Info": info}, http.StatusOK)
}

func (h *AuthorizationHandler) capabilitiesJSON(w http.ResponseWriter, r *http.Request) {
	actor, _ := IdentityFromContext(r.Context())
	info, err := h.service.AuthorizationInfo(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, capabilitiesResponse{
		Email:        info.Identity.Email,
		Role:         info.Identity.Role,
		Capabilities: info.Capabilities,
	})
}

func (h *AuthorizationHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor, _ := IdentityFromContext(r.Context())
	targetID, err := strconv.ParseInt(r.PostFormValue("user_id"), 10, 64)
	if err != nil || targetID <= 0 {
		redirectWithFlash(w, r, "/authorization", "error", "Failed to update user role.")
		return
	}
	updated, err := h.service.UpdateUserRole(r.Context(), actor, targetID, r.PostFormValue("role"))
	if err != nil {
		switch {
		case errors.Is(err, httpx.ErrForbidden):
			redirectWithFlash(w, r, "/", "error", deniedMessage)
		case IsNotFound(err), errors.Is(err, httpx.ErrValidation):
			h.logger.Info("update user role rejected", slog.Int64("target_id", targetID), slog.Any("error", err))
			redirectWithFlash(w, r, "/authorization", "error", "Failed to update user role.")
		default:
			h.logger.Error("update user role", slog.Int64("target_id", targetID), slog.Any("error", err))
			redirectWithFlash(w, r, "/authorization", "error", "Failed to update user role.")
		}
		return
	}
	h.logger.Info("user role updated",
		slog.Int64("actor_id", actor.ID),
		slog.Int64("target_id", updated.ID),
		slog.String("role", updated.Role.String()))
	redirectWithFlash(w, r, "/authorization", "success", "User role updated successfully.")
}

func (h *AuthorizationHandler) render(w http.ResponseWriter, r *http.Request, template string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Authorization",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Nav:         Nav(IdentityFromContext(r.Context())),
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
