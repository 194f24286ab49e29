package portal

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/database"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	reports, err := h.health.HealthCheck(r.Context())
	if err != nil {
		h.logger.Error("Health check failed", "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	status := http.StatusOK
	for _, rep := range reports {
		if rep.Status != database.HealthStatusHealthy {
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, map[string]any{"reports": reports})
}

type credentials struct {
	Login        string `json:"login"`
	Password     string `json:"senha"`
	RefreshToken string `json:"refresh_token"`
}

// readCredentials accepts a JSON body or a form.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&c)
		return c, err
	}
	c.Login = r.PostFormValue("login")
	c.Password = r.PostFormValue("senha")
	c.RefreshToken = r.PostFormValue("refresh_token")
	return c, nil
}

func (h *handlers) apiToken(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.svc.Authenticate(r.Context(), c.Login, c.Password)
	if err != nil {
		if !errors.Is(err, ErrInvalidCredentials) {
			h.logger.Error("Token authentication failed", "error", err)
		}
		writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	pair, err := h.auth.GenerateToken(r.Context(), strconv.FormatInt(u.ID, 10), map[string]any{loginClaim: u.Login})
	if err != nil {
		h.logger.Error("Issuing token failed", "user_id", u.ID, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "token unavailable")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *handlers) apiRefreshToken(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(r)
	if err != nil || c.RefreshToken == "" {
		writeJSONError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	claims, err := h.auth.RefreshClaims(c.RefreshToken)
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	u, ok := h.activeUser(r, claims.UserID, claims.Custom[loginClaim])
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	pair, err := h.auth.RefreshToken(r.Context(), c.RefreshToken, map[string]any{loginClaim: u.Login})
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type projectRef struct {
	Code string `json:"codigo_projeto"`
	Name string `json:"nome_projeto"`
}

type recentProject struct {
	Code      string     `json:"codigo_projeto"`
	Name      string     `json:"nome_projeto"`
	Situation string     `json:"situacao_projeto"`
	UpdatedAt *time.Time `json:"data_ultima_atualizacao"`
}

type recentIncident struct {
	Title     string     `json:"titulo"`
	Project   projectRef `json:"projeto"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"data_ultima_atualizacao"`
}

type dashboardStats struct {
	TotalProjects     int `json:"total_projetos"`
	ActiveProjects    int `json:"projetos_ativos"`
	DoneProjects      int `json:"projetos_concluidos"`
	CancelledProjects int `json:"projetos_cancelados"`
	UpdatedToday      int `json:"atualizacoes_hoje"`

	TotalIncidents      int `json:"total_incidentes"`
	OpenIncidents       int `json:"incidentes_abertos"`
	AnalysisIncidents   int `json:"incidentes_em_analise"`
	InProgressIncidents int `json:"incidentes_em_andamento"`
	ResolvedIncidents   int `json:"incidentes_resolvidos"`
	ClosedIncidents     int `json:"incidentes_fechados"`
	HighIncidents       int `json:"incidentes_alta"`
	MediumIncidents     int `json:"incidentes_media"`
	LowIncidents        int `json:"incidentes_baixa"`

	RecentProjects  []recentProject  `json:"ultimos_projetos"`
	RecentIncidents []recentIncident `json:"ultimos_incidentes"`
}

func newDashboardStats(st store.Stats) dashboardStats {
	out := dashboardStats{
		TotalProjects:       st.TotalProjects,
		ActiveProjects:      st.ActiveProjects,
		DoneProjects:        st.DoneProjects,
		CancelledProjects:   st.CancelledProjects,
		UpdatedToday:        st.UpdatedToday,
		TotalIncidents:      st.TotalIncidents,
		OpenIncidents:       st.IncidentsByStatus[store.IncidentOpen],
		AnalysisIncidents:   st.IncidentsByStatus[store.IncidentAnalysis],
		InProgressIncidents: st.IncidentsByStatus[store.IncidentInProgress],
		ResolvedIncidents:   st.IncidentsByStatus[store.IncidentResolved],
		ClosedIncidents:     st.IncidentsByStatus[store.IncidentClosed],
		HighIncidents:       st.IncidentsByPriority[store.PriorityHigh],
		MediumIncidents:     st.IncidentsByPriority[store.PriorityMedium],
		LowIncidents:        st.IncidentsByPriority[store.PriorityLow],
		RecentProjects:      make([]recentProject, 0, len(st.RecentProjects)),
		RecentIncidents:     make([]recentIncident, 0, len(st.RecentIncidents)),
	}
	for _, p := range st.RecentProjects {
		out.RecentProjects = append(out.RecentProjects, recentProject{
			Code:      p.Code,
			Name:      p.Name,
			Situation: p.Situation,
			UpdatedAt: p.UpdatedAt,
		})
	}
	for _, i := range st.RecentIncidents {
		out.RecentIncidents = append(out.RecentIncidents, recentIncident{
			Title:     i.Title,
			Project:   projectRef{Code: i.ProjectCode, Name: i.ProjectName},
			Status:    i.Status,
			UpdatedAt: i.UpdatedAt,
		})
	}
	return out
}

func (h *handlers) apiDashboardStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.store.Dashboard.Stats(r.Context(), h.svc.now())
	if err != nil {
		h.logger.Error("Dashboard stats failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, newDashboardStats(st))
}

type projectSummary struct {
	ID   int64  `json:"id_projeto"`
	Code string `json:"codigo_projeto"`
	Name string `json:"nome_projeto"`
}

func (h *handlers) apiProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.Projects.All(r.Context())
	if err != nil {
		h.logger.Error("Listing projects failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "projects unavailable")
		return
	}
	out := make([]projectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, projectSummary{ID: p.ID, Code: p.Code, Name: p.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

type activityEntry struct {
	ID         string    `json:"id"`
	Type       string    `json:"tipo"`
	Entity     string    `json:"entidade"`
	EntityID   *int64    `json:"id_entidade"`
	ActorID    *int64    `json:"id_usuario"`
	ActorLogin string    `json:"login"`
	Summary    string    `json:"resumo"`
	OccurredAt time.Time `json:"data"`
}

func (h *handlers) apiActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	switch {
	case limit <= 0:
		limit = defaultActivityLimit
	case limit > maxActivityLimit:
		limit = maxActivityLimit
	}
	entries, err := h.store.Activity.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Listing activity failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "activity unavailable")
		return
	}
	out := make([]activityEntry, 0, len(entries))
	for _, a := range entries {
		out = append(out, activityEntry{
			ID:         a.ID,
			Type:       a.EventType,
			Entity:     a.Entity,
			EntityID:   a.EntityID,
			ActorID:    a.ActorID,
			ActorLogin: a.ActorLogin,
			Summary:    a.Summary,
			OccurredAt: a.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
