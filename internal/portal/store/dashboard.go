package store

import (
	"context"
	"time"
)

// RecentLimit is how many recently updated rows the dashboard shows.
const RecentLimit = 5

// Stats is the dashboard aggregate.
type Stats struct {
	TotalProjects     int
	ActiveProjects    int
	DoneProjects      int
	CancelledProjects int
	UpdatedToday      int

	TotalIncidents      int
	IncidentsByStatus   map[string]int
	IncidentsByPriority map[string]int

	RecentProjects  []Project
	RecentIncidents []Incident
}

// DashboardRepository computes dashboard statistics.
type DashboardRepository struct{ s *Store }

func (r *DashboardRepository) groupCount(ctx context.Context, op, query string, keys []string) (map[string]int, int, error) {
	rows, err := r.s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, 0, mapError(op, err)
	}
	defer rows.Close()

	out := make(map[string]int, len(keys))
	for _, k := range keys {
		out[k] = 0
	}
	total := 0
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, 0, mapError(op, err)
		}
		out[key] = n
		total += n
	}
	return out, total, mapError(op, rows.Err())
}

// Stats aggregates project and incident counts. A project counts as updated
// today when its last update falls on today's date in the store's location.
func (r *DashboardRepository) Stats(ctx context.Context, now time.Time) (Stats, error) {
	var st Stats

	situations, total, err := r.groupCount(ctx, "count projects by situation",
		`SELECT situation, COUNT(*) FROM projects GROUP BY situation`, ProjectSituations)
	if err != nil {
		return st, err
	}
	st.TotalProjects = total
	st.ActiveProjects = situations[ProjectActive]
	st.DoneProjects = situations[ProjectDone]
	st.CancelledProjects = situations[ProjectCancelled]

	today := now.In(r.s.loc).Format(DateLayout)
	st.UpdatedToday, err = r.s.count(ctx, "count projects updated today",
		`SELECT COUNT(*) FROM projects WHERE updated_at IS NOT NULL AND substr(updated_at, 1, 10) = ?`, today)
	if err != nil {
		return st, err
	}

	st.IncidentsByStatus, st.TotalIncidents, err = r.groupCount(ctx, "count incidents by status",
		`SELECT status, COUNT(*) FROM incidents GROUP BY status`, IncidentStatuses)
	if err != nil {
		return st, err
	}
	st.IncidentsByPriority, _, err = r.groupCount(ctx, "count incidents by priority",
		`SELECT priority, COUNT(*) FROM incidents GROUP BY priority`, Priorities)
	if err != nil {
		return st, err
	}

	if st.RecentProjects, err = r.s.Projects.Recent(ctx, RecentLimit); err != nil {
		return st, err
	}
	st.RecentIncidents, err = r.s.Incidents.Recent(ctx, RecentLimit)
	return st, err
}
