package store

import (
	"context"
	"time"
)

// Profile is an access profile users belong to.
type Profile struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UserCount   int
}

// ProfileRepository persists profiles.
type ProfileRepository struct{ s *Store }

const profileColumns = `p.id, p.name, p.description, p.created_at,
	(SELECT COUNT(*) FROM users u WHERE u.profile_id = p.id)`

func (r *ProfileRepository) scan(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	var created string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &created, &p.UserCount); err != nil {
		return p, err
	}
	t, err := r.s.parseTime(created)
	if err != nil {
		return p, err
	}
	p.CreatedAt = t
	return p, nil
}

// List returns every profile ordered by name.
func (r *ProfileRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles p ORDER BY p.name`)
	if err != nil {
		return nil, mapError("list profiles", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, mapError("scan profile", err)
		}
		out = append(out, p)
	}
	return out, mapError("list profiles", rows.Err())
}

func (r *ProfileRepository) Get(ctx context.Context, id int64) (Profile, error) {
	p, err := r.scan(r.s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.id = ?`, id))
	return p, mapError("get profile", err)
}

func (r *ProfileRepository) GetByName(ctx context.Context, name string) (Profile, error) {
	p, err := r.scan(r.s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles p WHERE p.name = ?`, name))
	return p, mapError("get profile by name", err)
}

// Create inserts p and sets its ID. A zero CreatedAt is stamped with now.
func (r *ProfileRepository) Create(ctx context.Context, p *Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := r.s.db.ExecContext(ctx,
		`INSERT INTO profiles (name, description, created_at) VALUES (?, ?, ?)`,
		p.Name, p.Description, r.s.formatTime(p.CreatedAt))
	if err != nil {
		return mapError("create profile", err)
	}
	p.ID, err = res.LastInsertId()
	return mapError("create profile", err)
}

func (r *ProfileRepository) Update(ctx context.Context, p Profile) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE profiles SET name = ?, description = ? WHERE id = ?`,
		p.Name, p.Description, p.ID)
	if err != nil {
		return mapError("update profile", err)
	}
	return affectedOne("update profile", res)
}

// Delete removes a profile; it fails with ErrReferenced while users use it.
func (r *ProfileRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return mapError("delete profile", err)
	}
	return affectedOne("delete profile", res)
}

func (r *ProfileRepository) Count(ctx context.Context) (int, error) {
	return r.s.count(ctx, "count profiles", `SELECT COUNT(*) FROM profiles`)
}

// Ensure returns the profile called name, creating it with description when
// it does not exist.
func (r *ProfileRepository) Ensure(ctx context.Context, name, description string) (Profile, bool, error) {
	p, err := r.GetByName(ctx, name)
	if err == nil {
		return p, false, nil
	}
	if !isNotFound(err) {
		return p, false, err
	}
	p = Profile{Name: name, Description: description}
	if err := r.Create(ctx, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}
