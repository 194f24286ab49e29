package store

import (
	"context"
	"database/sql"
	"time"
)

// User is a portal account.
type User struct {
	ID           int64
	ProfileID    int64
	ProfileName  string
	Login        string
	FullName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
	Status       string
}

// IsActive reports whether the user may log in.
func (u User) IsActive() bool { return u.Status == UserActive }

// IsAdmin reports whether the user has the ADMIN profile.
func (u User) IsAdmin() bool { return u.ProfileName == ProfileAdmin }

// UserFilter narrows a user listing.
type UserFilter struct {
	Status    string
	ProfileID int64
	Search    string
	Page      int
}

// UserRepository persists users.
type UserRepository struct{ s *Store }

const userSelect = `SELECT u.id, u.profile_id, p.name, u.login, u.full_name, u.email,
	u.password_hash, u.created_at, u.last_login_at, u.status
	FROM users u JOIN profiles p ON p.id = u.profile_id`

func (r *UserRepository) scan(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var created string
	var lastLogin sql.NullString
	err := row.Scan(&u.ID, &u.ProfileID, &u.ProfileName, &u.Login, &u.FullName, &u.Email,
		&u.PasswordHash, &created, &lastLogin, &u.Status)
	if err != nil {
		return u, err
	}
	if u.CreatedAt, err = r.s.parseTime(created); err != nil {
		return u, err
	}
	u.LastLoginAt, err = r.s.parseTimePtr(lastLogin)
	return u, err
}

func (r *UserRepository) query(ctx context.Context, op, query string, args ...any) ([]User, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, mapError(op, err)
		}
		out = append(out, u)
	}
	return out, mapError(op, rows.Err())
}

func (f UserFilter) where() *whereClause {
	w := &whereClause{}
	if f.Status != "" {
		w.add("u.status = ?", f.Status)
	}
	if f.ProfileID != 0 {
		w.add("u.profile_id = ?", f.ProfileID)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		w.add(`(u.login LIKE ? ESCAPE '\' OR u.full_name LIKE ? ESCAPE '\' OR u.email LIKE ? ESCAPE '\')`, like, like, like)
	}
	return w
}

// List returns one page of users ordered by full name.
func (r *UserRepository) List(ctx context.Context, f UserFilter) (Page[User], error) {
	page := Page[User]{Number: normalizePage(f.Page), PerPage: PerPage}
	w := f.where()

	total, err := r.s.count(ctx, "count users", `SELECT COUNT(*) FROM users u`+w.String(), w.args...)
	if err != nil {
		return page, err
	}
	page.Total = total

	args := append(append([]any{}, w.args...), page.PerPage, page.offset())
	page.Items, err = r.query(ctx, "list users",
		userSelect+w.String()+` ORDER BY u.full_name, u.id LIMIT ? OFFSET ?`, args...)
	return page, err
}

// ListActive returns active users ordered by full name.
func (r *UserRepository) ListActive(ctx context.Context) ([]User, error) {
	return r.query(ctx, "list active users", userSelect+` WHERE u.status = ? ORDER BY u.full_name, u.id`, UserActive)
}

func (r *UserRepository) Get(ctx context.Context, id int64) (User, error) {
	u, err := r.scan(r.s.db.QueryRowContext(ctx, userSelect+` WHERE u.id = ?`, id))
	return u, mapError("get user", err)
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (User, error) {
	u, err := r.scan(r.s.db.QueryRowContext(ctx, userSelect+` WHERE u.login = ?`, login))
	return u, mapError("get user by login", err)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := r.scan(r.s.db.QueryRowContext(ctx, userSelect+` WHERE u.email = ?`, email))
	return u, mapError("get user by email", err)
}

// LoginTaken reports whether another user than exceptID uses login.
func (r *UserRepository) LoginTaken(ctx context.Context, login string, exceptID int64) (bool, error) {
	n, err := r.s.count(ctx, "check login", `SELECT COUNT(*) FROM users WHERE login = ? AND id <> ?`, login, exceptID)
	return n > 0, err
}

// EmailTaken reports whether another user than exceptID uses email.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	n, err := r.s.count(ctx, "check email", `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, exceptID)
	return n > 0, err
}

// Create inserts u and sets its ID. Status defaults to ATIVO.
func (r *UserRepository) Create(ctx context.Context, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO users (profile_id, login, full_name, email, password_hash, created_at, last_login_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ProfileID, u.Login, u.FullName, u.Email, u.PasswordHash,
		r.s.formatTime(u.CreatedAt), r.s.formatTimePtr(u.LastLoginAt), u.Status)
	if err != nil {
		return mapError("create user", err)
	}
	u.ID, err = res.LastInsertId()
	return mapError("create user", err)
}

// Update writes the profile, identity and status fields. The password hash
// is left untouched; see SetPassword.
func (r *UserRepository) Update(ctx context.Context, u User) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE users SET profile_id = ?, login = ?, full_name = ?, email = ?, status = ? WHERE id = ?`,
		u.ProfileID, u.Login, u.FullName, u.Email, u.Status, u.ID)
	if err != nil {
		return mapError("update user", err)
	}
	return affectedOne("update user", res)
}

func (r *UserRepository) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := r.s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return mapError("set password", err)
	}
	return affectedOne("set password", res)
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, r.s.formatTime(at), id)
	if err != nil {
		return mapError("touch last login", err)
	}
	return affectedOne("touch last login", res)
}

// Delete removes a user; it fails with ErrReferenced while the user authored
// or is assigned to records.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapError("delete user", err)
	}
	return affectedOne("delete user", res)
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, "count users", `SELECT COUNT(*) FROM users`)
}
