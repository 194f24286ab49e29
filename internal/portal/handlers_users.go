package portal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.store.Users.List(r.Context(), store.UserFilter{
		Status:    q.Get("status"),
		ProfileID: queryID(r, "perfil"),
		Search:    q.Get("search"),
		Page:      queryInt(r, "page"),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	profiles, err := h.store.Profiles.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "usuarios.html", view{
		"Title":      "Usuários",
		"Pagination": page,
		"Profiles":   profiles,
		"Query":      q,
	})
}

func (h *handlers) userForm(w http.ResponseWriter, r *http.Request, data view) {
	profiles, err := h.store.Profiles.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data["Profiles"] = profiles
	h.render(w, r, http.StatusOK, "usuario_form.html", data)
}

func userInput(r *http.Request) (UserInput, error) {
	f := form{r}
	profileID, err := f.id("id_perfil")
	return UserInput{
		ProfileID: profileID,
		Login:     f.get("login"),
		FullName:  f.get("nome_completo"),
		Email:     f.get("email"),
		Password:  r.PostFormValue("senha"),
		Status:    f.get("status"),
	}, err
}

// userFailure flashes the message for a rejected user form.
func (h *handlers) userFailure(r *http.Request, err error, prefix string) {
	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
		return
	}
	switch {
	case errors.Is(err, ErrLoginTaken):
		h.flash(r, flashDanger, "Login já existe. Escolha outro login.")
	case errors.Is(err, ErrEmailTaken):
		h.flash(r, flashDanger, "Email já existe. Escolha outro email.")
	case errors.Is(err, ErrWeakPassword):
		h.flash(r, flashDanger, "A senha não atende aos requisitos mínimos.")
	default:
		h.logger.Error("Saving user failed", "error", err)
		h.flash(r, flashDanger, prefix+err.Error())
	}
}

func (h *handlers) newUserForm(w http.ResponseWriter, r *http.Request) {
	h.userForm(w, r, view{"Title": "Novo Usuário"})
}

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	in, err := userInput(r)
	if err == nil {
		a := actor(r)
		_, err = h.svc.CreateUser(r.Context(), &a, in)
	}
	if err == nil {
		h.flash(r, flashSuccess, "Usuário criado com sucesso!")
		h.redirect(w, r, "/usuarios")
		return
	}
	h.userFailure(r, err, "Erro ao criar usuário: ")
	h.redirect(w, r, "/usuarios/novo")
}

func (h *handlers) editUserForm(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(h, w, r, h.store.Users.Get)
	if !ok {
		return
	}
	h.userForm(w, r, view{"Title": "Editar Usuário", "User": u, "Editing": true})
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(h, w, r, h.store.Users.Get)
	if !ok {
		return
	}
	in, err := userInput(r)
	if err == nil {
		_, err = h.svc.UpdateUser(r.Context(), actor(r), u, in)
	}
	if err == nil {
		h.flash(r, flashSuccess, "Usuário atualizado com sucesso!")
		h.redirect(w, r, "/usuarios")
		return
	}
	h.userFailure(r, err, "Erro ao atualizar usuário: ")
	h.redirect(w, r, "/usuarios/"+strconv.FormatInt(u.ID, 10)+"/editar")
}

func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	u, ok := lookup(h, w, r, h.store.Users.Get)
	if !ok {
		return
	}
	err := h.svc.DeleteUser(r.Context(), actor(r), u)
	switch {
	case err == nil:
		h.flash(r, flashSuccess, "Usuário excluído com sucesso!")
	case errors.Is(err, ErrSelfDelete):
		h.flash(r, flashDanger, "Não é possível excluir o próprio usuário.")
	default:
		if !errors.Is(err, store.ErrReferenced) {
			h.logger.Error("Deleting user failed", "id", u.ID, "error", err)
		}
		h.flash(r, flashDanger, "Erro ao excluir usuário.")
	}
	h.redirect(w, r, "/usuarios")
}
