package store

import (
	"context"
	"database/sql"
	"time"
)

// Project is a tracked project.
type Project struct {
	ID               int64
	CreatedBy        int64
	CreatorName      string
	UpdatedBy        *int64
	UpdaterName      string
	Code             string
	Name             string
	EconomicControl  string
	InitiativeNumber string
	Situation        string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	Situation string
	Search    string
	Page      int
}

// ProjectRepository persists projects.
type ProjectRepository struct{ s *Store }

const projectSelect = `SELECT p.id, p.created_by, cu.full_name, p.updated_by, COALESCE(uu.full_name, ''),
	p.code, p.name, p.economic_control, p.initiative_number, p.situation, p.created_at, p.updated_at
	FROM projects p
	JOIN users cu ON cu.id = p.created_by
	LEFT JOIN users uu ON uu.id = p.updated_by`

// projectsByRecentUpdate orders by last update, most recent first, never-updated last.
const projectsByRecentUpdate = ` ORDER BY p.updated_at IS NULL, p.updated_at DESC, p.id DESC`

func (r *ProjectRepository) scan(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var updatedBy sql.NullInt64
	var created string
	var updated sql.NullString
	err := row.Scan(&p.ID, &p.CreatedBy, &p.CreatorName, &updatedBy, &p.UpdaterName,
		&p.Code, &p.Name, &p.EconomicControl, &p.InitiativeNumber, &p.Situation, &created, &updated)
	if err != nil {
		return p, err
	}
	p.UpdatedBy = int64Ptr(updatedBy)
	if p.CreatedAt, err = r.s.parseTime(created); err != nil {
		return p, err
	}
	p.UpdatedAt, err = r.s.parseTimePtr(updated)
	return p, err
}

func (r *ProjectRepository) query(ctx context.Context, op, query string, args ...any) ([]Project, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, p)
	}
	return out, mapError(op, rows.Err())
}

func (f ProjectFilter) where() *whereClause {
	w := &whereClause{}
	if f.Situation != "" {
		w.add("p.situation = ?", f.Situation)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		w.add(`(p.code LIKE ? ESCAPE '\' OR p.name LIKE ? ESCAPE '\')`, like, like)
	}
	return w
}

// List returns one page of projects, most recently updated first.
func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) (Page[Project], error) {
	page := Page[Project]{Number: normalizePage(f.Page), PerPage: PerPage}
	w := f.where()

	total, err := r.s.count(ctx, "count projects", `SELECT COUNT(*) FROM projects p`+w.String(), w.args...)
	if err != nil {
		return page, err
	}
	page.Total = total

	args := append(append([]any{}, w.args...), page.PerPage, page.offset())
	page.Items, err = r.query(ctx, "list projects",
		projectSelect+w.String()+projectsByRecentUpdate+` LIMIT ? OFFSET ?`, args...)
	return page, err
}

// All returns every project ordered by code.
func (r *ProjectRepository) All(ctx context.Context) ([]Project, error) {
	return r.query(ctx, "list all projects", projectSelect+` ORDER BY p.code`)
}

// Recent returns the limit most recently updated projects.
func (r *ProjectRepository) Recent(ctx context.Context, limit int) ([]Project, error) {
	return r.query(ctx, "recent projects", projectSelect+projectsByRecentUpdate+` LIMIT ?`, limit)
}

func (r *ProjectRepository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := r.scan(r.s.db.QueryRowContext(ctx, projectSelect+` WHERE p.id = ?`, id))
	return p, mapError("get project", err)
}

func (r *ProjectRepository) GetByCode(ctx context.Context, code string) (Project, error) {
	p, err := r.scan(r.s.db.QueryRowContext(ctx, projectSelect+` WHERE p.code = ?`, code))
	return p, mapError("get project by code", err)
}

// Create inserts p and sets its ID. A duplicate code fails with ErrConflict.
func (r *ProjectRepository) Create(ctx context.Context, p *Project) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO projects (created_by, updated_by, code, name, economic_control, initiative_number,
			situation, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.CreatedBy, nullInt(p.UpdatedBy), p.Code, p.Name, p.EconomicControl, p.InitiativeNumber,
		p.Situation, r.s.formatTime(p.CreatedAt), r.s.formatTimePtr(p.UpdatedAt))
	if err != nil {
		return mapError("create project", err)
	}
	p.ID, err = res.LastInsertId()
	return mapError("create project", err)
}

func (r *ProjectRepository) Update(ctx context.Context, p Project) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE projects SET updated_by = ?, code = ?, name = ?, economic_control = ?, initiative_number = ?,
			situation = ?, updated_at = ?
		 WHERE id = ?`,
		nullInt(p.UpdatedBy), p.Code, p.Name, p.EconomicControl, p.InitiativeNumber,
		p.Situation, r.s.formatTimePtr(p.UpdatedAt), p.ID)
	if err != nil {
		return mapError("update project", err)
	}
	return affectedOne("update project", res)
}

// Delete removes a project; it fails with ErrReferenced while incidents or
// tasks belong to it.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return mapError("delete project", err)
	}
	return affectedOne("delete project", res)
}

func (r *ProjectRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, "count projects", `SELECT COUNT(*) FROM projects`)
}
