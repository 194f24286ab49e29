package store

import (
	"context"
	"database/sql"
	"time"
)

// Incident is a problem reported against a project.
type Incident struct {
	ID          int64
	ProjectID   int64
	ProjectCode string
	ProjectName string
	CreatedBy   int64
	CreatorName string
	UpdatedBy   *int64
	Title       string
	Description string
	Priority    string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	ResolvedAt  *time.Time
}

// IncidentFilter narrows an incident listing. Search matches the title,
// the description and the project code.
type IncidentFilter struct {
	Status   string
	Priority string
	Search   string
	Page     int
}

// IncidentRepository persists incidents.
type IncidentRepository struct{ s *Store }

const incidentSelect = `SELECT i.id, i.project_id, p.code, p.name, i.created_by, cu.full_name, i.updated_by,
	i.title, i.description, i.priority, i.status, i.created_at, i.updated_at, i.resolved_at
	FROM incidents i
	JOIN projects p ON p.id = i.project_id
	JOIN users cu ON cu.id = i.created_by`

func (r *IncidentRepository) scan(row interface{ Scan(...any) error }) (Incident, error) {
	var i Incident
	var updatedBy sql.NullInt64
	var created string
	var updated, resolved sql.NullString
	err := row.Scan(&i.ID, &i.ProjectID, &i.ProjectCode, &i.ProjectName, &i.CreatedBy, &i.CreatorName, &updatedBy,
		&i.Title, &i.Description, &i.Priority, &i.Status, &created, &updated, &resolved)
	if err != nil {
		return i, err
	}
	i.UpdatedBy = int64Ptr(updatedBy)
	if i.CreatedAt, err = r.s.parseTime(created); err != nil {
		return i, err
	}
	if i.UpdatedAt, err = r.s.parseTimePtr(updated); err != nil {
		return i, err
	}
	i.ResolvedAt, err = r.s.parseTimePtr(resolved)
	return i, err
}

func (r *IncidentRepository) query(ctx context.Context, op, query string, args ...any) ([]Incident, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []Incident
	for rows.Next() {
		i, err := r.scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, i)
	}
	return out, mapError(op, rows.Err())
}

func (f IncidentFilter) where() *whereClause {
	w := &whereClause{}
	if f.Status != "" {
		w.add("i.status = ?", f.Status)
	}
	if f.Priority != "" {
		w.add("i.priority = ?", f.Priority)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		w.add(`(i.title LIKE ? ESCAPE '\' OR i.description LIKE ? ESCAPE '\' OR p.code LIKE ? ESCAPE '\')`,
			like, like, like)
	}
	return w
}

// List returns one page of incidents, newest first.
func (r *IncidentRepository) List(ctx context.Context, f IncidentFilter) (Page[Incident], error) {
	page := Page[Incident]{Number: normalizePage(f.Page), PerPage: PerPage}
	w := f.where()

	total, err := r.s.count(ctx, "count incidents",
		`SELECT COUNT(*) FROM incidents i JOIN projects p ON p.id = i.project_id`+w.String(), w.args...)
	if err != nil {
		return page, err
	}
	page.Total = total

	args := append(append([]any{}, w.args...), page.PerPage, page.offset())
	page.Items, err = r.query(ctx, "list incidents",
		incidentSelect+w.String()+` ORDER BY i.created_at DESC, i.id DESC LIMIT ? OFFSET ?`, args...)
	return page, err
}

// ListByProject returns a project's incidents, newest first.
func (r *IncidentRepository) ListByProject(ctx context.Context, projectID int64) ([]Incident, error) {
	return r.query(ctx, "list project incidents",
		incidentSelect+` WHERE i.project_id = ? ORDER BY i.created_at DESC, i.id DESC`, projectID)
}

// Recent returns the limit most recently updated incidents, never-updated last.
func (r *IncidentRepository) Recent(ctx context.Context, limit int) ([]Incident, error) {
	return r.query(ctx, "recent incidents",
		incidentSelect+` ORDER BY i.updated_at IS NULL, i.updated_at DESC, i.id DESC LIMIT ?`, limit)
}

func (r *IncidentRepository) Get(ctx context.Context, id int64) (Incident, error) {
	i, err := r.scan(r.s.db.QueryRowContext(ctx, incidentSelect+` WHERE i.id = ?`, id))
	return i, mapError("get incident", err)
}

func (r *IncidentRepository) Create(ctx context.Context, i *Incident) error {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO incidents (project_id, created_by, updated_by, title, description, priority, status,
			created_at, updated_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ProjectID, i.CreatedBy, nullInt(i.UpdatedBy), i.Title, i.Description, i.Priority, i.Status,
		r.s.formatTime(i.CreatedAt), r.s.formatTimePtr(i.UpdatedAt), r.s.formatTimePtr(i.ResolvedAt))
	if err != nil {
		return mapError("create incident", err)
	}
	i.ID, err = res.LastInsertId()
	return mapError("create incident", err)
}

// Update writes the editable fields; the project never changes.
func (r *IncidentRepository) Update(ctx context.Context, i Incident) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE incidents SET updated_by = ?, title = ?, description = ?, priority = ?, status = ?,
			updated_at = ?, resolved_at = ?
		 WHERE id = ?`,
		nullInt(i.UpdatedBy), i.Title, i.Description, i.Priority, i.Status,
		r.s.formatTimePtr(i.UpdatedAt), r.s.formatTimePtr(i.ResolvedAt), i.ID)
	if err != nil {
		return mapError("update incident", err)
	}
	return affectedOne("update incident", res)
}

func (r *IncidentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM incidents WHERE id = ?`, id)
	if err != nil {
		return mapError("delete incident", err)
	}
	return affectedOne("delete incident", res)
}

func (r *IncidentRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, "count incidents", `SELECT COUNT(*) FROM incidents`)
}
