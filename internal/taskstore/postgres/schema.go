// Package postgres provides the PostgreSQL-backed implementation of
// [taskstore.Store].
//
// All record kinds share a single [pgxpool.Pool] connection pool. [Migrate]
// bootstraps the schema with CREATE TABLE IF NOT EXISTS; anything beyond that
// (column changes, backfills) is a manual operation.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	task, err := store.CreateTask(ctx, taskstore.Task{UserID: uid, Title: "Buy groceries"})
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTasks = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    project_id  TEXT         NOT NULL DEFAULT '',
    title       TEXT         NOT NULL,
    description TEXT         NOT NULL DEFAULT '',
    status      TEXT         NOT NULL DEFAULT 'pending',
    priority    TEXT         NOT NULL DEFAULT 'medium',
    due_date    TEXT         NOT NULL DEFAULT '',
    assignee    TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_user_id
    ON tasks (user_id);

CREATE INDEX IF NOT EXISTS idx_tasks_user_status
    ON tasks (user_id, status);
`

const ddlProjects = `
CREATE TABLE IF NOT EXISTS projects (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    name        TEXT         NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_projects_user_id
    ON projects (user_id);

CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_user_name
    ON projects (user_id, lower(name));
`

const ddlNotifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    entity_kind TEXT         NOT NULL,
    action      TEXT         NOT NULL,
    entity_id   TEXT         NOT NULL DEFAULT '',
    message     TEXT         NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_id
    ON notifications (user_id, created_at);
`

// Migrate creates all required tables and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlTasks, ddlProjects, ddlNotifications} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres store: migrate: %w", err)
		}
	}
	return nil
}
