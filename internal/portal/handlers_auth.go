package portal

import (
	"errors"
	"net/http"
)

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "index.html", view{"Title": "Dashboard"})
}

func (h *handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", view{"Title": "Login"})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	f := form{r}
	login := f.get("login")
	u, err := h.svc.Authenticate(r.Context(), login, f.r.PostFormValue("senha"))
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.logger.Error("Login failed", "login", login, "error", err)
		}
		h.flash(r, flashDanger, "Login ou senha inválidos")
		h.render(w, r, http.StatusOK, "login.html", view{"Title": "Login", "Login": login})
		return
	}
	if err := h.startSession(w, r, u); err != nil {
		h.serverError(w, r, err)
		return
	}
	h.redirect(w, r, "/")
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.auth.SessionID(r); ok {
		if err := h.auth.DeleteSession(r.Context(), id); err != nil {
			h.logger.Warn("Deleting session failed", "error", err)
		}
	}
	h.auth.ClearSessionCookie(w)
	h.redirect(w, r, "/login")
}

func (h *handlers) createAdminForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "criar_admin.html", view{"Title": "Criar administrador"})
}

// createAdmin creates the admin user with the configured password, or a
// generated one. A generated password is rendered in the response and never
// stored in a cookie.
func (h *handlers) createAdmin(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.EnsureAdmin(r.Context(), h.config.AdminPassword)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	if !res.Created {
		h.flash(r, flashWarning, "Usuário administrador já existe!")
		h.redirect(w, r, "/login")
		return
	}
	h.flash(r, flashSuccess, "Usuário administrador criado com sucesso!")
	if res.GeneratedPassword == "" {
		h.redirect(w, r, "/login")
		return
	}
	h.flash(r, flashWarning, "Senha gerada para o usuário admin: "+res.GeneratedPassword+" (altere-a após o primeiro acesso)")
	w.Header().Set("Cache-Control", "no-store")
	h.render(w, r, http.StatusOK, "login.html", view{"Title": "Login", "Login": res.User.Login})
}
