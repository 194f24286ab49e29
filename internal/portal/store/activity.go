package store

import (
	"context"
	"database/sql"
	"time"
)

// Activity is one entry of the audit trail.
type Activity struct {
	ID         string
	EventType  string
	Entity     string
	EntityID   *int64
	ActorID    *int64
	ActorLogin string
	Summary    string
	OccurredAt time.Time
}

// ActivityRepository persists the audit trail.
type ActivityRepository struct{ s *Store }

func (r *ActivityRepository) Record(ctx context.Context, a Activity) error {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now()
	}
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, event_type, entity, entity_id, actor_id, actor_login, summary, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EventType, a.Entity, nullInt(a.EntityID), nullInt(a.ActorID), a.ActorLogin, a.Summary,
		r.s.formatTime(a.OccurredAt))
	return mapError("record activity", err)
}

// Recent returns the latest limit entries, newest first.
func (r *ActivityRepository) Recent(ctx context.Context, limit int) ([]Activity, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT id, event_type, entity, entity_id, actor_id, actor_login, summary, occurred_at
		 FROM activity_log ORDER BY occurred_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapError("recent activity", err)
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var entityID, actorID sql.NullInt64
		var occurred string
		if err := rows.Scan(&a.ID, &a.EventType, &a.Entity, &entityID, &actorID, &a.ActorLogin, &a.Summary, &occurred); err != nil {
			return nil, mapError("scan activity", err)
		}
		a.EntityID = int64Ptr(entityID)
		a.ActorID = int64Ptr(actorID)
		if a.OccurredAt, err = r.s.parseTime(occurred); err != nil {
			return nil, mapError("scan activity", err)
		}
		out = append(out, a)
	}
	return out, mapError("recent activity", rows.Err())
}

// Prune deletes entries older than before and returns how many were removed.
func (r *ActivityRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM activity_log WHERE occurred_at < ?`, r.s.formatTime(before))
	if err != nil {
		return 0, mapError("prune activity", err)
	}
	n, err := res.RowsAffected()
	return n, mapError("prune activity", err)
}
