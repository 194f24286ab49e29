package portal

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/modular"
	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/database"
)

// HealthChecker reports database health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) ([]database.HealthReport, error)
}

type handlers struct {
	svc       *Service
	store     *store.Store
	auth      *auth.Service
	health    HealthChecker
	config    *Config
	logger    modular.Logger
	templates map[string]*template.Template
	flashes   *flashSealer
	// base is the router's mount prefix, prepended to links and redirects.
	base string
}

func newHandlers(svc *Service, authSvc *auth.Service, health HealthChecker, cfg *Config, base string, logger modular.Logger) (*handlers, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	flashes, err := newFlashSealer(authSvc.Config().JWT.Secret)
	if err != nil {
		return nil, err
	}
	return &handlers{
		svc:       svc,
		store:     svc.Store(),
		auth:      authSvc,
		health:    health,
		config:    cfg,
		logger:    logger,
		templates: tmpl,
		flashes:   flashes,
		base:      base,
	}, nil
}

// routes registers every portal route on r.
func (h *handlers) routes(r chi.Router) {
	r.Handle("/static/*", staticHandler())
	r.Get("/healthz", h.healthz)
	r.Post("/api/token", h.apiToken)
	r.Post("/api/token/refresh", h.apiRefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(h.identify)

		r.Route("/api", func(r chi.Router) {
			r.Use(h.requireAPIUser)
			r.Get("/dashboard/stats", h.apiDashboardStats)
			r.Get("/projetos", h.apiProjects)
			r.Get("/atividades", h.apiActivity)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.loadFlashes)
			r.Get("/login", h.loginForm)
			r.Post("/login", h.login)
			if !h.config.DisableAdminScreen {
				r.Get("/criar-admin", h.createAdminForm)
				r.Post("/criar-admin", h.createAdmin)
			}

			r.Group(func(r chi.Router) {
				r.Use(h.requireUser)
				r.Get("/", h.index)
				r.Get("/logout", h.logout)

				r.Get("/projetos", h.listProjects)
				r.Get("/projetos/novo", h.newProjectForm)
				r.Post("/projetos/novo", h.createProject)
				r.Get("/projetos/{id}", h.showProject)
				r.Get("/projetos/{id}/editar", h.editProjectForm)
				r.Post("/projetos/{id}/editar", h.updateProject)
				r.Post("/projetos/{id}/excluir", h.deleteProject)

				r.Get("/incidentes", h.listIncidents)
				r.Get("/incidentes/novo", h.newIncidentForm)
				r.Post("/incidentes/novo", h.createIncident)
				r.Get("/incidentes/{id}/editar", h.editIncidentForm)
				r.Post("/incidentes/{id}/editar", h.updateIncident)
				r.Post("/incidentes/{id}/excluir", h.deleteIncident)

				r.Get("/usuarios", h.listUsers)
				r.Get("/usuarios/novo", h.newUserForm)
				r.Post("/usuarios/novo", h.createUser)
				r.Get("/usuarios/{id}/editar", h.editUserForm)
				r.Post("/usuarios/{id}/editar", h.updateUser)
				r.Post("/usuarios/{id}/excluir", h.deleteUser)

				r.Get("/tarefas", h.listTasks)
				r.Get("/tarefas/novo", h.newTaskForm)
				r.Post("/tarefas/novo", h.createTask)
				r.Get("/tarefas/{id}/editar", h.editTaskForm)
				r.Post("/tarefas/{id}/editar", h.updateTask)
				r.Post("/tarefas/{id}/excluir", h.deleteTask)

				r.Get("/perfis", h.listProfiles)
				r.Get("/perfis/novo", h.newProfileForm)
				r.Post("/perfis/novo", h.createProfile)
				r.Get("/perfis/{id}/editar", h.editProfileForm)
				r.Post("/perfis/{id}/editar", h.updateProfile)
				r.Post("/perfis/{id}/excluir", h.deleteProfile)
			})
		})
	})
}

// actor returns the authenticated user; routes using it sit behind
// requireUser.
func actor(r *http.Request) store.User {
	u, _ := currentUser(r)
	return u
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// lookup loads the record named by {id}, answering 404 when the id is
// malformed or unknown.
func lookup[T any](h *handlers, w http.ResponseWriter, r *http.Request, get func(context.Context, int64) (T, error)) (T, bool) {
	var zero T
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return zero, false
	}
	v, err := get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.notFound(w, r)
		return zero, false
	}
	if err != nil {
		h.serverError(w, r, err)
		return zero, false
	}
	return v, true
}

func (h *handlers) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// form reads trimmed form values.
type form struct{ r *http.Request }

func (f form) get(name string) string {
	return strings.TrimSpace(f.r.PostFormValue(name))
}

// id parses an optional numeric id field. Empty yields 0.
func (f form) id(name string) (int64, error) {
	v := f.get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, invalid(name)
	}
	return n, nil
}

// optionalID parses an id field where empty means none.
func (f form) optionalID(name string) (*int64, error) {
	n, err := f.id(name)
	if err != nil || n == 0 {
		return nil, err
	}
	return &n, nil
}

// date parses a YYYY-MM-DD field in loc. Empty yields nil.
func (f form) date(name string, loc *time.Location) (*time.Time, error) {
	v := f.get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(store.DateLayout, v, loc)
	if err != nil {
		return nil, invalid(name)
	}
	return &t, nil
}

// queryInt parses a numeric query parameter, returning 0 when absent or
// malformed.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}

func queryID(r *http.Request, name string) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// fieldMessage returns the flash text of a validation error.
func fieldMessage(err error) (string, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Message(), true
	}
	return "", false
}
