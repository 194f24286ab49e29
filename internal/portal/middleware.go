package portal

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
)

type ctxKey int

const (
	userKey ctxKey = iota
	flashKey
)

func withUser(ctx context.Context, u store.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func withFlashes(ctx context.Context, st *flashState) context.Context {
	return context.WithValue(ctx, flashKey, st)
}

// currentUser returns the authenticated user of the request.
func currentUser(r *http.Request) (store.User, bool) {
	u, ok := r.Context().Value(userKey).(store.User)
	return u, ok
}

// identify resolves the user of a request from, in order, the session
// cookie, a bearer token and the configured auto-login user.
func (h *handlers) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := h.sessionUser(r); ok {
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
			return
		}
		if u, ok := h.tokenUser(r); ok {
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
			return
		}
		if u, ok := h.autoLogin(w, r); ok {
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginClaim is the session metadata and token claim naming the login the
// credential was issued to.
const loginClaim = "login"

// activeUser loads the user a credential was issued to. The login bound to
// the credential must still belong to that id.
func (h *handlers) activeUser(r *http.Request, id string, login any) (store.User, bool) {
	userID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return store.User{}, false
	}
	u, err := h.store.Users.Get(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("Loading session user failed", "user_id", userID, "error", err)
		}
		return u, false
	}
	if bound, _ := login.(string); bound != u.Login {
		h.logger.Warn("Credential login does not match user", "user_id", userID, "login", bound)
		return store.User{}, false
	}
	return u, u.IsActive()
}

func (h *handlers) sessionUser(r *http.Request) (store.User, bool) {
	id, ok := h.auth.SessionID(r)
	if !ok {
		return store.User{}, false
	}
	session, err := h.auth.GetSession(r.Context(), id)
	if err != nil {
		return store.User{}, false
	}
	return h.activeUser(r, session.UserID, session.Metadata[loginClaim])
}

func (h *handlers) tokenUser(r *http.Request) (store.User, bool) {
	token, ok := auth.BearerToken(r)
	if !ok {
		return store.User{}, false
	}
	claims, err := h.auth.ValidateToken(r.Context(), token)
	if err != nil {
		h.logger.Debug("Rejected bearer token", "error", err)
		return store.User{}, false
	}
	return h.activeUser(r, claims.UserID, claims.Custom[loginClaim])
}

// autoLogin opens a session for the configured auto-login user.
func (h *handlers) autoLogin(w http.ResponseWriter, r *http.Request) (store.User, bool) {
	login := h.auth.Config().AutoLoginUser
	if login == "" {
		return store.User{}, false
	}
	u, err := h.store.Users.GetByLogin(r.Context(), login)
	if err != nil || !u.IsActive() {
		return store.User{}, false
	}
	if err := h.startSession(w, r, u); err != nil {
		h.logger.Error("Auto-login failed", "login", login, "error", err)
		return store.User{}, false
	}
	return u, true
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request, u store.User) error {
	session, err := h.auth.CreateSession(r.Context(), strconv.FormatInt(u.ID, 10), r,
		map[string]any{loginClaim: u.Login})
	if err != nil {
		return err
	}
	h.auth.SetSessionCookie(w, session)
	return nil
}

// requireUser redirects anonymous requests to the login page.
func (h *handlers) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r); !ok {
			http.Redirect(w, r, h.base+"/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIUser answers anonymous requests with 401.
func (h *handlers) requireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(r); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="portal"`)
			writeJSONError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
