package portal

import (
	"errors"
	"net/http"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func projectInput(r *http.Request) ProjectInput {
	f := form{r}
	return ProjectInput{
		Code:             f.get("codigo_projeto"),
		Name:             f.get("nome_projeto"),
		EconomicControl:  f.get("controle_economico"),
		InitiativeNumber: f.get("numero_iniciativa"),
		Situation:        f.get("situacao_projeto"),
	}
}

func (h *handlers) listProjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.store.Projects.List(r.Context(), store.ProjectFilter{
		Situation: q.Get("situacao"),
		Search:    q.Get("search"),
		Page:      queryInt(r, "page"),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "projetos.html", view{
		"Title":      "Projetos",
		"Pagination": page,
		"Query":      q,
	})
}

func (h *handlers) newProjectForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "projeto_form.html", view{"Title": "Novo Projeto"})
}

func (h *handlers) createProject(w http.ResponseWriter, r *http.Request) {
	in := projectInput(r)
	_, err := h.svc.CreateProject(r.Context(), actor(r), in)
	if err == nil {
		h.flash(r, flashSuccess, "Projeto criado com sucesso!")
		h.redirect(w, r, "/projetos")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Creating project failed", "error", err)
		h.flash(r, flashDanger, "Erro ao criar projeto. Verifique se o código do projeto já existe.")
	}
	var draft store.Project
	in.apply(&draft)
	h.render(w, r, http.StatusOK, "projeto_form.html", view{"Title": "Novo Projeto", "Project": draft})
}

func (h *handlers) showProject(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Projects.Get)
	if !ok {
		return
	}
	tasks, err := h.store.Tasks.ListByProject(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	incidents, err := h.store.Incidents.ListByProject(r.Context(), p.ID)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "projeto_detalhes.html", view{
		"Title":     p.Code + " - " + p.Name,
		"Project":   p,
		"Tasks":     tasks,
		"Incidents": incidents,
	})
}

func (h *handlers) editProjectForm(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Projects.Get)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "projeto_form.html", view{"Title": "Editar Projeto", "Project": p, "Editing": true})
}

func (h *handlers) updateProject(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Projects.Get)
	if !ok {
		return
	}
	in := projectInput(r)
	_, err := h.svc.UpdateProject(r.Context(), actor(r), p, in)
	if err == nil {
		h.flash(r, flashSuccess, "Projeto atualizado com sucesso!")
		h.redirect(w, r, "/projetos")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Updating project failed", "id", p.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao atualizar projeto. Verifique se o código do projeto ou controle econômico já existem.")
	}
	in.apply(&p)
	h.render(w, r, http.StatusOK, "projeto_form.html", view{"Title": "Editar Projeto", "Project": p, "Editing": true})
}

func (h *handlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(h, w, r, h.store.Projects.Get)
	if !ok {
		return
	}
	if err := h.svc.DeleteProject(r.Context(), actor(r), p); err != nil {
		if !errors.Is(err, store.ErrReferenced) {
			h.logger.Error("Deleting project failed", "id", p.ID, "error", err)
		}
		h.flash(r, flashDanger, "Erro ao excluir projeto.")
	} else {
		h.flash(r, flashSuccess, "Projeto excluído com sucesso!")
	}
	h.redirect(w, r, "/projetos")
}
