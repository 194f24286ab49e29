// Package store persists the portal's profiles, users, projects, incidents,
// tasks and activity log in a SQL database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrConflict   = errors.New("record conflicts with an existing one")
	ErrReferenced = errors.New("record is referenced by other records")
)

const (
	// TimeLayout is how timestamps are written: local wall-clock time in the
	// store's location.
	TimeLayout = "2006-01-02 15:04:05"
	// DateLayout is used for due dates.
	DateLayout = "2006-01-02"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the store.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories over one database.
type Store struct {
	db  DBTX
	loc *time.Location

	Profiles  *ProfileRepository
	Users     *UserRepository
	Projects  *ProjectRepository
	Incidents *IncidentRepository
	Tasks     *TaskRepository
	Activity  *ActivityRepository
	Dashboard *DashboardRepository
}

// New creates a store. Timestamps are written and read in loc; a nil loc
// means time.Local.
func New(db DBTX, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{db: db, loc: loc}
	s.Profiles = &ProfileRepository{s}
	s.Users = &UserRepository{s}
	s.Projects = &ProjectRepository{s}
	s.Incidents = &IncidentRepository{s}
	s.Tasks = &TaskRepository{s}
	s.Activity = &ActivityRepository{s}
	s.Dashboard = &DashboardRepository{s}
	return s
}

// WithTx runs fn against a store bound to one transaction, committing when
// fn succeeds. A store that is already transactional runs fn directly.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	beginner, ok := s.db.(interface {
		BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	})
	if !ok {
		return fn(s)
	}
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(New(tx, s.loc)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rolling back: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Location returns the time zone timestamps are stored in.
func (s *Store) Location() *time.Location { return s.loc }

func (s *Store) formatTime(t time.Time) string {
	return t.In(s.loc).Format(TimeLayout)
}

func (s *Store) formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.formatTime(*t)
}

func (s *Store) parseTime(v string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) parseTimePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := s.parseTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) formatDatePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}

func (s *Store) parseDatePtr(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, v.String, s.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing date %q: %w", v.String, err)
	}
	return &t, nil
}

func nullInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// mapError translates driver errors into the store's sentinel errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: %v", op, ErrReferenced, err)
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w: %v", op, ErrConflict, err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w: %v", op, ErrReferenced, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func affectedOne(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// likePattern builds a LIKE pattern matching s anywhere, escaping the
// wildcard characters with a backslash.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// whereClause collects filter conditions and their arguments.
type whereClause struct {
	conds []string
	args  []any
}

func (w *whereClause) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *whereClause) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (s *Store) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
