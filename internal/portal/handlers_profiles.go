package portal

import (
	"errors"
	"net/http"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func (h *handlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles.List(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "perfis.html", view{"Title": "Perfis", "Profiles": profiles})
}

func profileInput(r *http.Request) ProfileInput {
	f := form{r}
	return ProfileInput{Name: f.get("nome"), Description: f.get("descricao")}
}

func (h *handlers) profileFailure(r *http.Request, err error, fallback string) {
	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
		return
	}
	if errors.Is(err, ErrProfileNameTaken) {
		h.flash(r, flashDanger, "Já existe um perfil com este nome.")
		return
	}
	h.logger.Error("Saving profile failed", "error", err)
	h.flash(r, flashDanger, fallback)
}

func (h *handlers) newProfileForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "perfil_form.html", view{"Title": "Novo Perfil"})
}

func (h *handlers) createProfile(w http.ResponseWriter, r *http.Request) {
	in := profileInput(r)
	if _, err := h.svc.CreateProfile(r.Context(), actor(r), in); err != nil {
		h.profileFailure(r, err, "Erro ao criar perfil.")
		h.render(w, r, http.StatusOK, "perfil_form.html", view{
			"Title":   "Novo Perfil",
			"Profile": store.Profile{Name: in.Name, Description: in.Description},
		})
		return
	}
	h.flash(r, flashSuccess, "Perfil criado com sucesso!")
	h.redirect(w, r, "/perfis")
}

func (h *handlers) editProfileForm(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Profiles.Get)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "perfil_form.html", view{"Title": "Editar Perfil", "Profile": p, "Editing": true})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Profiles.Get)
	if !ok {
		return
	}
	in := profileInput(r)
	if _, err := h.svc.UpdateProfile(r.Context(), actor(r), p, in); err != nil {
		h.profileFailure(r, err, "Erro ao atualizar perfil.")
		p.Name, p.Description = in.Name, in.Description
		h.render(w, r, http.StatusOK, "perfil_form.html", view{"Title": "Editar Perfil", "Profile": p, "Editing": true})
		return
	}
	h.flash(r, flashSuccess, "Perfil atualizado com sucesso!")
	h.redirect(w, r, "/perfis")
}

func (h *handlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Profiles.Get)
	if !ok {
		return
	}
	err := h.svc.DeleteProfile(r.Context(), actor(r), p)
	switch {
	case err == nil:
		h.flash(r, flashSuccess, "Perfil excluído com sucesso!")
	case errors.Is(err, store.ErrReferenced):
		h.flash(r, flashDanger, "Erro ao excluir perfil. Existem usuários vinculados.")
	default:
		h.logger.Error("Deleting profile failed", "id", p.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao excluir perfil.")
	}
	h.redirect(w, r, "/perfis")
}
