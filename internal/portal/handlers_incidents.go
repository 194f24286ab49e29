package portal

import (
	"net/http"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func (h *handlers) listIncidents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.store.Incidents.List(r.Context(), store.IncidentFilter{
		Status:   q.Get("status"),
		Priority: q.Get("prioridade"),
		Search:   q.Get("busca"),
		Page:     queryInt(r, "page"),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "incidentes.html", view{
		"Title":      "Incidentes",
		"Pagination": page,
		"Query":      q,
	})
}

func (h *handlers) incidentForm(w http.ResponseWriter, r *http.Request, data view) {
	projects, err := h.store.Projects.All(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data["Projects"] = projects
	h.render(w, r, http.StatusOK, "incidente_form.html", data)
}

func (h *handlers) newIncidentForm(w http.ResponseWriter, r *http.Request) {
	h.incidentForm(w, r, view{"Title": "Novo Incidente", "SelectedProject": queryID(r, "projeto")})
}

func (h *handlers) createIncident(w http.ResponseWriter, r *http.Request) {
	f := form{r}
	projectID, err := f.id("id_projeto")
	if err == nil {
		_, err = h.svc.CreateIncident(r.Context(), actor(r), IncidentInput{
			ProjectID:   projectID,
			Title:       f.get("titulo"),
			Description: f.get("descricao"),
			Priority:    f.get("prioridade"),
		})
	}
	if err == nil {
		h.flash(r, flashSuccess, "Incidente criado com sucesso!")
		h.redirect(w, r, "/incidentes")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Creating incident failed", "error", err)
		h.flash(r, flashDanger, "Erro ao criar incidente: "+err.Error())
	}
	h.redirect(w, r, "/incidentes/novo")
}

func (h *handlers) editIncidentForm(w http.ResponseWriter, r *http.Request) {
	i, ok := lookup(h, w, r, h.store.Incidents.Get)
	if !ok {
		return
	}
	h.incidentForm(w, r, view{"Title": "Editar Incidente", "Incident": i, "Editing": true, "SelectedProject": i.ProjectID})
}

func (h *handlers) updateIncident(w http.ResponseWriter, r *http.Request) {
	i, ok := lookup(h, w, r, h.store.Incidents.Get)
	if !ok {
		return
	}
	f := form{r}
	in := IncidentInput{
		Title:       f.get("titulo"),
		Description: f.get("descricao"),
		Priority:    f.get("prioridade"),
		Status:      f.get("status"),
	}
	_, err := h.svc.UpdateIncident(r.Context(), actor(r), i, in)
	if err == nil {
		h.flash(r, flashSuccess, "Incidente atualizado com sucesso!")
		h.redirect(w, r, "/incidentes")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Updating incident failed", "id", i.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao atualizar incidente.")
	}
	i.Title, i.Description, i.Priority, i.Status = in.Title, in.Description, in.Priority, in.Status
	h.incidentForm(w, r, view{"Title": "Editar Incidente", "Incident": i, "Editing": true, "SelectedProject": i.ProjectID})
}

func (h *handlers) deleteIncident(w http.ResponseWriter, r *http.Request) {
	i, ok := lookup(h, w, r, h.store.Incidents.Get)
	if !ok {
		return
	}
	if err := h.svc.DeleteIncident(r.Context(), actor(r), i); err != nil {
		h.logger.Error("Deleting incident failed", "id", i.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao excluir incidente.")
	} else {
		h.flash(r, flashSuccess, "Incidente excluído com sucesso!")
	}
	h.redirect(w, r, "/incidentes")
}
