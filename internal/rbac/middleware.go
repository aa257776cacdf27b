package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/shared"
)

const (
	loginPath     = "/auth/login"
	safeFallback  = "/"
	deniedMessage = "You do not have permission to perform this action."
)

// IdentityLoader resolves a stored identity by id.
type IdentityLoader interface {
	GetIdentity(ctx context.Context, id int64) (Identity, error)
}

// DenialObserver receives a notification for every refused capability check.
type DenialObserver interface {
	ObserveDenial(capability string)
}

// Middleware wires identity resolution and policy gates for HTTP handlers.
type Middleware struct {
	Identities IdentityLoader
	Logger     *slog.Logger
	Observer   DenialObserver
}

// LoadIdentity resolves the session user into an Identity stored on the request context.
// Requests without a signed-in user pass through untouched.
func (m Middleware) LoadIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok || m.Identities == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.Identities.GetIdentity(r.Context(), userID)
		if err != nil {
			if errors.Is(err, httpx.ErrNotFound) {
				// Session outlived its user.
				if sess := shared.SessionFromContext(r.Context()); sess != nil {
					sess.SetUser("")
				}
				next.ServeHTTP(w, r)
				return
			}
			m.logError("rbac load identity", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireAuthenticated redirects anonymous requests to the login page.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			redirectWithFlash(w, r, loginPath, "error", "You need to sign in before continuing.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require ensures the current identity holds the capability. Authentication is checked first.
func (m Middleware) Require(c Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				redirectWithFlash(w, r, loginPath, "error", "You need to sign in before continuing.")
				return
			}
			if !Allowed(id, c) {
				m.denied(id, c, r)
				redirectWithFlash(w, r, safeFallback, "error", deniedMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) denied(id Identity, c Capability, r *http.Request) {
	if m.Observer != nil {
		m.Observer.ObserveDenial(string(c))
	}
	if m.Logger != nil {
		m.Logger.Info("rbac denied",
			slog.Int64("user_id", id.ID),
			slog.String("role", id.Role.String()),
			slog.String("capability", string(c)),
			slog.String("path", r.URL.Path))
	}
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
