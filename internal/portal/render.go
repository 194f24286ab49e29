package portal

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// pages lists the page templates; each is parsed together with the layout.
var pages = []string{
	"login.html", "criar_admin.html", "index.html",
	"projetos.html", "projeto_form.html", "projeto_detalhes.html",
	"incidentes.html", "incidente_form.html",
	"usuarios.html", "usuario_form.html",
	"tarefas.html", "tarefa_form.html",
	"perfis.html", "perfil_form.html",
}

var templateFuncs = template.FuncMap{
	"datetime": func(v any) string {
		switch t := v.(type) {
		case time.Time:
			return t.Format("02/01/2006 15:04")
		case *time.Time:
			if t == nil {
				return "-"
			}
			return t.Format("02/01/2006 15:04")
		}
		return "-"
	},
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(store.DateLayout)
	},
	"dateBR": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.Format("02/01/2006")
	},
	"same": func(a, b any) bool { return fmt.Sprint(a) == fmt.Sprint(b) },
	"deref": func(v *int64) int64 {
		if v == nil {
			return 0
		}
		return *v
	},
	"pageURL": func(q url.Values, n int) string {
		c := url.Values{}
		for k, v := range q {
			c[k] = v
		}
		c.Set("page", strconv.Itoa(n))
		return "?" + c.Encode()
	},
	"incidentStatuses":  func() []string { return store.IncidentStatuses },
	"taskStatuses":      func() []string { return store.TaskStatuses },
	"priorities":        func() []string { return store.Priorities },
	"projectSituations": func() []string { return store.ProjectSituations },
	"userStatuses":      func() []string { return store.UserStatuses },
}

func parseTemplates() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		t, err := template.New(page).Funcs(templateFuncs).ParseFS(templatesFS,
			"templates/layout.html", "templates/pagination.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		out[page] = t
	}
	return out, nil
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// view is the data handed to a page template.
type view map[string]any

func (h *handlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data view) {
	t, ok := h.templates[page]
	if !ok {
		h.logger.Error("Unknown template", "template", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = view{}
	}
	if u, ok := currentUser(r); ok {
		data["CurrentUser"] = u
	}
	data["Flashes"] = h.takeFlashes(w, r)
	data["Path"] = r.URL.Path
	data["Base"] = h.base
	data["AdminScreen"] = !h.config.DisableAdminScreen

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("Template rendering failed", "template", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect stores pending flash messages in a cookie and redirects to
// target under the router's base path.
func (h *handlers) redirect(w http.ResponseWriter, r *http.Request, target string) {
	h.saveFlashes(w, r)
	http.Redirect(w, r, h.base+target, http.StatusFound)
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Não encontrado", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
