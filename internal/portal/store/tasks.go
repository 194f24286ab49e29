package store

import (
	"context"
	"database/sql"
	"time"
)

// Task is a unit of work inside a project.
type Task struct {
	ID           int64
	ProjectID    int64
	ProjectCode  string
	ProjectName  string
	CreatedBy    int64
	CreatorName  string
	UpdatedBy    *int64
	AssigneeID   *int64
	AssigneeName string
	Title        string
	Description  string
	Priority     string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
	DueDate      *time.Time
	CompletedAt  *time.Time
}

// IsOverdue reports whether the task is past its due date on day today
// without being finished.
func (t Task) IsOverdue(today time.Time) bool {
	if t.DueDate == nil || t.Status == TaskDone || t.Status == TaskCancelled {
		return false
	}
	return t.DueDate.Format(DateLayout) < today.Format(DateLayout)
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	Status     string
	Priority   string
	ProjectID  int64
	AssigneeID int64
	Search     string
	Page       int
}

// TaskRepository persists tasks.
type TaskRepository struct{ s *Store }

const taskSelect = `SELECT t.id, t.project_id, p.code, p.name, t.created_by, cu.full_name, t.updated_by,
	t.assignee_id, COALESCE(au.full_name, ''), t.title, t.description, t.priority, t.status,
	t.created_at, t.updated_at, t.due_date, t.completed_at
	FROM tasks t
	JOIN projects p ON p.id = t.project_id
	JOIN users cu ON cu.id = t.created_by
	LEFT JOIN users au ON au.id = t.assignee_id`

func (r *TaskRepository) scan(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var updatedBy, assignee sql.NullInt64
	var created string
	var updated, due, completed sql.NullString
	err := row.Scan(&t.ID, &t.ProjectID, &t.ProjectCode, &t.ProjectName, &t.CreatedBy, &t.CreatorName, &updatedBy,
		&assignee, &t.AssigneeName, &t.Title, &t.Description, &t.Priority, &t.Status,
		&created, &updated, &due, &completed)
	if err != nil {
		return t, err
	}
	t.UpdatedBy = int64Ptr(updatedBy)
	t.AssigneeID = int64Ptr(assignee)
	if t.CreatedAt, err = r.s.parseTime(created); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = r.s.parseTimePtr(updated); err != nil {
		return t, err
	}
	if t.DueDate, err = r.s.parseDatePtr(due); err != nil {
		return t, err
	}
	t.CompletedAt, err = r.s.parseTimePtr(completed)
	return t, err
}

func (r *TaskRepository) query(ctx context.Context, op, query string, args ...any) ([]Task, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := r.scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, t)
	}
	return out, mapError(op, rows.Err())
}

func (f TaskFilter) where() *whereClause {
	w := &whereClause{}
	if f.Status != "" {
		w.add("t.status = ?", f.Status)
	}
	if f.Priority != "" {
		w.add("t.priority = ?", f.Priority)
	}
	if f.ProjectID != 0 {
		w.add("t.project_id = ?", f.ProjectID)
	}
	if f.AssigneeID != 0 {
		w.add("t.assignee_id = ?", f.AssigneeID)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		w.add(`(t.title LIKE ? ESCAPE '\' OR t.description LIKE ? ESCAPE '\')`, like, like)
	}
	return w
}

// List returns one page of tasks, newest first.
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) (Page[Task], error) {
	page := Page[Task]{Number: normalizePage(f.Page), PerPage: PerPage}
	w := f.where()

	total, err := r.s.count(ctx, "count tasks", `SELECT COUNT(*) FROM tasks t`+w.String(), w.args...)
	if err != nil {
		return page, err
	}
	page.Total = total

	args := append(append([]any{}, w.args...), page.PerPage, page.offset())
	page.Items, err = r.query(ctx, "list tasks",
		taskSelect+w.String()+` ORDER BY t.created_at DESC, t.id DESC LIMIT ? OFFSET ?`, args...)
	return page, err
}

// ListByProject returns a project's tasks, newest first.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int64) ([]Task, error) {
	return r.query(ctx, "list project tasks",
		taskSelect+` WHERE t.project_id = ? ORDER BY t.created_at DESC, t.id DESC`, projectID)
}

// Overdue returns unfinished tasks whose due date is before today, oldest
// due date first.
func (r *TaskRepository) Overdue(ctx context.Context, today time.Time) ([]Task, error) {
	return r.query(ctx, "list overdue tasks",
		taskSelect+` WHERE t.due_date IS NOT NULL AND t.due_date < ? AND t.status NOT IN (?, ?)
		ORDER BY t.due_date, t.id`,
		today.In(r.s.loc).Format(DateLayout), TaskDone, TaskCancelled)
}

func (r *TaskRepository) Get(ctx context.Context, id int64) (Task, error) {
	t, err := r.scan(r.s.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = ?`, id))
	return t, mapError("get task", err)
}

func (r *TaskRepository) Create(ctx context.Context, t *Task) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO tasks (project_id, created_by, updated_by, assignee_id, title, description, priority, status,
			created_at, updated_at, due_date, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectID, t.CreatedBy, nullInt(t.UpdatedBy), nullInt(t.AssigneeID), t.Title, t.Description,
		t.Priority, t.Status, r.s.formatTime(t.CreatedAt), r.s.formatTimePtr(t.UpdatedAt),
		r.s.formatDatePtr(t.DueDate), r.s.formatTimePtr(t.CompletedAt))
	if err != nil {
		return mapError("create task", err)
	}
	t.ID, err = res.LastInsertId()
	return mapError("create task", err)
}

func (r *TaskRepository) Update(ctx context.Context, t Task) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE tasks SET project_id = ?, updated_by = ?, assignee_id = ?, title = ?, description = ?,
			priority = ?, status = ?, updated_at = ?, due_date = ?, completed_at = ?
		 WHERE id = ?`,
		t.ProjectID, nullInt(t.UpdatedBy), nullInt(t.AssigneeID), t.Title, t.Description,
		t.Priority, t.Status, r.s.formatTimePtr(t.UpdatedAt), r.s.formatDatePtr(t.DueDate),
		r.s.formatTimePtr(t.CompletedAt), t.ID)
	if err != nil {
		return mapError("update task", err)
	}
	return affectedOne("update task", res)
}

func (r *TaskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return mapError("delete task", err)
	}
	return affectedOne("delete task", res)
}

func (r *TaskRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, "count tasks", `SELECT COUNT(*) FROM tasks`)
}
