package portal

import (
	"net/http"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.store.Tasks.List(r.Context(), store.TaskFilter{
		Status:     q.Get("status"),
		Priority:   q.Get("prioridade"),
		ProjectID:  queryID(r, "projeto"),
		AssigneeID: queryID(r, "responsavel"),
		Search:     q.Get("search"),
		Page:       queryInt(r, "page"),
	})
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	data := view{
		"Title":      "Tarefas",
		"Pagination": page,
		"Query":      q,
		"Today":      dateOnly(h.svc.now().In(h.store.Location())),
	}
	if !h.taskChoices(w, r, data) {
		return
	}
	h.render(w, r, http.StatusOK, "tarefas.html", data)
}

// taskChoices adds the project and assignee options to data.
func (h *handlers) taskChoices(w http.ResponseWriter, r *http.Request, data view) bool {
	projects, err := h.store.Projects.All(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return false
	}
	users, err := h.store.Users.ListActive(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return false
	}
	data["Projects"] = projects
	data["Users"] = users
	return true
}

func (h *handlers) taskForm(w http.ResponseWriter, r *http.Request, data view) {
	if h.taskChoices(w, r, data) {
		h.render(w, r, http.StatusOK, "tarefa_form.html", data)
	}
}

func (h *handlers) taskInput(r *http.Request) (TaskInput, error) {
	f := form{r}
	in := TaskInput{
		Title:       f.get("titulo"),
		Description: f.get("descricao"),
		Priority:    f.get("prioridade"),
		Status:      f.get("status"),
	}
	var err error
	if in.ProjectID, err = f.id("id_projeto"); err != nil {
		return in, err
	}
	if in.AssigneeID, err = f.optionalID("id_usuario_responsavel"); err != nil {
		return in, err
	}
	in.DueDate, err = f.date("data_limite", h.store.Location())
	return in, err
}

func (h *handlers) newTaskForm(w http.ResponseWriter, r *http.Request) {
	h.taskForm(w, r, view{"Title": "Nova Tarefa", "SelectedProject": queryID(r, "projeto")})
}

func (h *handlers) createTask(w http.ResponseWriter, r *http.Request) {
	in, err := h.taskInput(r)
	if err == nil {
		_, err = h.svc.CreateTask(r.Context(), actor(r), in)
	}
	if err == nil {
		h.flash(r, flashSuccess, "Tarefa criada com sucesso!")
		h.redirect(w, r, "/tarefas")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Creating task failed", "error", err)
		h.flash(r, flashDanger, "Erro ao criar tarefa: "+err.Error())
	}
	h.redirect(w, r, "/tarefas/novo")
}

func (h *handlers) editTaskForm(w http.ResponseWriter, r *http.Request) {
	t, ok := lookup(h, w, r, h.store.Tasks.Get)
	if !ok {
		return
	}
	h.taskForm(w, r, view{"Title": "Editar Tarefa", "Task": t, "Editing": true, "SelectedProject": t.ProjectID})
}

func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	t, ok := lookup(h, w, r, h.store.Tasks.Get)
	if !ok {
		return
	}
	in, err := h.taskInput(r)
	if err == nil {
		if _, err = h.svc.UpdateTask(r.Context(), actor(r), t, in); err != nil {
			t.AssigneeID, t.Title, t.Description = in.AssigneeID, in.Title, in.Description
			t.Priority, t.Status, t.DueDate = in.Priority, in.Status, in.DueDate
		}
	}
	if err == nil {
		h.flash(r, flashSuccess, "Tarefa atualizada com sucesso!")
		h.redirect(w, r, "/tarefas")
		return
	}

	if msg, ok := fieldMessage(err); ok {
		h.flash(r, flashDanger, msg)
	} else {
		h.logger.Error("Updating task failed", "id", t.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao atualizar tarefa.")
	}
	h.taskForm(w, r, view{"Title": "Editar Tarefa", "Task": t, "Editing": true, "SelectedProject": t.ProjectID})
}

func (h *handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	t, ok := lookup(h, w, r, h.store.Tasks.Get)
	if !ok {
		return
	}
	if err := h.svc.DeleteTask(r.Context(), actor(r), t); err != nil {
		h.logger.Error("Deleting task failed", "id", t.ID, "error", err)
		h.flash(r, flashDanger, "Erro ao excluir tarefa.")
	} else {
		h.flash(r, flashSuccess, "Tarefa excluída com sucesso!")
	}
	h.redirect(w, r, "/tarefas")
}
