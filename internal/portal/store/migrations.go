package store

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/portal/modules/database"
)

// Migrations returns the portal schema in version order.
func Migrations() []database.Migration {
	return []database.Migration{
		{
			ID:      "0001_profiles_users",
			Version: "0001",
			SQL: `
CREATE TABLE profiles (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        VARCHAR(50) NOT NULL UNIQUE,
	description VARCHAR(200) NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE TABLE users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	profile_id    INTEGER NOT NULL REFERENCES profiles(id) ON DELETE RESTRICT,
	login         VARCHAR(50) NOT NULL UNIQUE,
	full_name     VARCHAR(100) NOT NULL,
	email         VARCHAR(120) NOT NULL UNIQUE,
	password_hash VARCHAR(200) NOT NULL,
	created_at    TEXT NOT NULL,
	last_login_at TEXT,
	status        VARCHAR(20) NOT NULL DEFAULT 'ATIVO'
);
CREATE INDEX idx_users_profile ON users(profile_id);`,
		},
		{
			ID:      "0002_projects",
			Version: "0002",
			SQL: `
CREATE TABLE projects (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	created_by        INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
	updated_by        INTEGER REFERENCES users(id) ON DELETE RESTRICT,
	code              VARCHAR(10) NOT NULL UNIQUE,
	name              VARCHAR(100) NOT NULL,
	economic_control  VARCHAR(50) NOT NULL,
	initiative_number VARCHAR(50) NOT NULL,
	situation         VARCHAR(20) NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT
);
CREATE INDEX idx_projects_updated ON projects(updated_at);`,
		},
		{
			ID:      "0003_incidents_tasks",
			Version: "0003",
			SQL: `
CREATE TABLE incidents (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  INTEGER NOT NULL REFERENCES projects(id) ON DELETE RESTRICT,
	created_by  INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
	updated_by  INTEGER REFERENCES users(id) ON DELETE RESTRICT,
	title       VARCHAR(200) NOT NULL,
	description TEXT NOT NULL,
	priority    VARCHAR(20) NOT NULL,
	status      VARCHAR(20) NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT,
	resolved_at TEXT
);
CREATE INDEX idx_incidents_project ON incidents(project_id);
CREATE TABLE tasks (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id   INTEGER NOT NULL REFERENCES projects(id) ON DELETE RESTRICT,
	created_by   INTEGER NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
	updated_by   INTEGER REFERENCES users(id) ON DELETE RESTRICT,
	assignee_id  INTEGER REFERENCES users(id) ON DELETE RESTRICT,
	title        VARCHAR(200) NOT NULL,
	description  TEXT NOT NULL,
	priority     VARCHAR(20) NOT NULL,
	status       VARCHAR(20) NOT NULL,
	created_at   TEXT NOT NULL,
	updated_at   TEXT,
	due_date     TEXT,
	completed_at TEXT
);
CREATE INDEX idx_tasks_project ON tasks(project_id);
CREATE INDEX idx_tasks_assignee ON tasks(assignee_id);`,
		},
		{
			ID:      "0004_activity_log",
			Version: "0004",
			SQL: `
CREATE TABLE activity_log (
	id          TEXT PRIMARY KEY,
	event_type  VARCHAR(100) NOT NULL,
	entity      VARCHAR(30) NOT NULL,
	entity_id   INTEGER,
	actor_id    INTEGER,
	actor_login VARCHAR(50) NOT NULL DEFAULT '',
	summary     VARCHAR(300) NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL
);
CREATE INDEX idx_activity_occurred ON activity_log(occurred_at);`,
		},
	}
}

// Tables lists the portal tables, dependents first, for schema resets.
var Tables = []string{"activity_log", "tasks", "incidents", "projects", "users", "profiles"}

// DropAll removes every portal table and the migration history so the
// schema can be rebuilt from scratch.
func DropAll(ctx context.Context, db DBTX) error {
	for _, table := range append(append([]string{}, Tables...), "schema_migrations") {
		// #nosec G202 - table names come from the fixed list above
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("dropping %s: %w", table, err)
		}
	}
	return nil
}
