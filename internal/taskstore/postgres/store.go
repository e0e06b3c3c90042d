package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voxtask/voxtask/internal/taskstore"
)

// Ensure Store implements the taskstore.Store interface.
var _ taskstore.Store = (*Store)(nil)

// Store is the PostgreSQL-backed task store. All operations are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// verifies connectivity, and runs [Migrate] so all required tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

const taskColumns = "id, user_id, project_id, title, description, status, priority, due_date, assignee, created_at, updated_at"

func scanTask(row pgx.Row) (taskstore.Task, error) {
	var t taskstore.Task
	err := row.Scan(&t.ID, &t.UserID, &t.ProjectID, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.DueDate, &t.Assignee, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// CreateTask implements taskstore.Store.
func (s *Store) CreateTask(ctx context.Context, t taskstore.Task) (taskstore.Task, error) {
	if t.UserID == "" || t.Title == "" {
		return taskstore.Task{}, fmt.Errorf("postgres store: create task: user ID and title are required")
	}
	if t.Status == "" {
		t.Status = taskstore.StatusPending
	}
	if t.Priority == "" {
		t.Priority = taskstore.PriorityMedium
	}

	const q = `
		INSERT INTO tasks
		    (id, user_id, project_id, title, description, status, priority, due_date, assignee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + taskColumns

	row := s.pool.QueryRow(ctx, q,
		taskstore.NewID(), t.UserID, t.ProjectID, t.Title, t.Description,
		t.Status, t.Priority, t.DueDate, t.Assignee)
	created, err := scanTask(row)
	if err != nil {
		return taskstore.Task{}, fmt.Errorf("postgres store: create task: %w", err)
	}
	return created, nil
}

// UpdateTask implements taskstore.Store.
func (s *Store) UpdateTask(ctx context.Context, userID, taskID string, upd taskstore.TaskUpdate) (taskstore.Task, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID, taskID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Title != nil {
		sets = append(sets, "title = "+next(*upd.Title))
	}
	if upd.Status != nil {
		sets = append(sets, "status = "+next(*upd.Status))
	}
	if upd.Priority != nil {
		sets = append(sets, "priority = "+next(*upd.Priority))
	}
	if upd.DueDate != nil {
		sets = append(sets, "due_date = "+next(*upd.DueDate))
	}
	if upd.Assignee != nil {
		sets = append(sets, "assignee = "+next(*upd.Assignee))
	}

	q := fmt.Sprintf(`
		UPDATE tasks SET %s
		WHERE  user_id = $1 AND id = $2
		RETURNING %s`, strings.Join(sets, ", "), taskColumns)

	t, err := scanTask(s.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return taskstore.Task{}, fmt.Errorf("postgres store: update task %q: %w", taskID, taskstore.ErrNotFound)
	}
	if err != nil {
		return taskstore.Task{}, fmt.Errorf("postgres store: update task: %w", err)
	}
	return t, nil
}

// FindTaskByTitle implements taskstore.Store.
func (s *Store) FindTaskByTitle(ctx context.Context, userID, title string) (taskstore.Task, error) {
	const q = `
		SELECT ` + taskColumns + `
		FROM   tasks
		WHERE  user_id = $1 AND lower(title) = lower($2)
		ORDER  BY created_at DESC
		LIMIT  1`

	t, err := scanTask(s.pool.QueryRow(ctx, q, userID, title))
	if errors.Is(err, pgx.ErrNoRows) {
		return taskstore.Task{}, fmt.Errorf("postgres store: task %q: %w", title, taskstore.ErrNotFound)
	}
	if err != nil {
		return taskstore.Task{}, fmt.Errorf("postgres store: find task by title: %w", err)
	}
	return t, nil
}

// ListTaskTitles implements taskstore.Store.
func (s *Store) ListTaskTitles(ctx context.Context, userID string) ([]string, error) {
	const q = `
		SELECT title
		FROM   tasks
		WHERE  user_id = $1 AND status NOT IN ('completed', 'cancelled')
		ORDER  BY title`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: list task titles: %w", err)
	}
	titles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres store: list task titles: %w", err)
	}
	return titles, nil
}

// QueryTasks implements taskstore.Store.
func (s *Store) QueryTasks(ctx context.Context, userID string, f taskstore.TaskFilter) ([]taskstore.Task, error) {
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"user_id = $1"}
	if f.Status != "" {
		conditions = append(conditions, "status = "+next(f.Status))
	}
	if f.Priority != "" {
		conditions = append(conditions, "priority = "+next(f.Priority))
	}
	if f.Project != "" {
		conditions = append(conditions, "project_id = "+next(f.Project))
	}

	q := fmt.Sprintf(`
		SELECT %s
		FROM   tasks
		WHERE  %s
		ORDER  BY created_at DESC`, taskColumns, strings.Join(conditions, " AND "))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query tasks: %w", err)
	}
	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (taskstore.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: query tasks: %w", err)
	}
	return tasks, nil
}

const projectColumns = "id, user_id, name, created_at, updated_at"

func scanProject(row pgx.Row) (taskstore.Project, error) {
	var p taskstore.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProject implements taskstore.Store.
func (s *Store) CreateProject(ctx context.Context, p taskstore.Project) (taskstore.Project, error) {
	if p.UserID == "" || p.Name == "" {
		return taskstore.Project{}, fmt.Errorf("postgres store: create project: user ID and name are required")
	}

	const q = `
		INSERT INTO projects (id, user_id, name)
		VALUES ($1, $2, $3)
		RETURNING ` + projectColumns

	created, err := scanProject(s.pool.QueryRow(ctx, q, taskstore.NewID(), p.UserID, p.Name))
	if isUniqueViolation(err) {
		return taskstore.Project{}, fmt.Errorf("postgres store: project %q: %w", p.Name, taskstore.ErrDuplicate)
	}
	if err != nil {
		return taskstore.Project{}, fmt.Errorf("postgres store: create project: %w", err)
	}
	return created, nil
}

// UpdateProject implements taskstore.Store.
func (s *Store) UpdateProject(ctx context.Context, userID, projectID string, upd taskstore.ProjectUpdate) (taskstore.Project, error) {
	sets := []string{"updated_at = now()"}
	args := []any{userID, projectID}
	if upd.Name != nil {
		args = append(args, *upd.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}

	q := fmt.Sprintf(`
		UPDATE projects SET %s
		WHERE  user_id = $1 AND id = $2
		RETURNING %s`, strings.Join(sets, ", "), projectColumns)

	p, err := scanProject(s.pool.QueryRow(ctx, q, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return taskstore.Project{}, fmt.Errorf("postgres store: update project %q: %w", projectID, taskstore.ErrNotFound)
	}
	if err != nil {
		return taskstore.Project{}, fmt.Errorf("postgres store: update project: %w", err)
	}
	return p, nil
}

// FindProjectByName implements taskstore.Store.
func (s *Store) FindProjectByName(ctx context.Context, userID, name string) (taskstore.Project, error) {
	const q = `
		SELECT ` + projectColumns + `
		FROM   projects
		WHERE  user_id = $1 AND lower(name) = lower($2)
		LIMIT  1`

	p, err := scanProject(s.pool.QueryRow(ctx, q, userID, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return taskstore.Project{}, fmt.Errorf("postgres store: project %q: %w", name, taskstore.ErrNotFound)
	}
	if err != nil {
		return taskstore.Project{}, fmt.Errorf("postgres store: find project by name: %w", err)
	}
	return p, nil
}

// QueryProjects implements taskstore.Store.
func (s *Store) QueryProjects(ctx context.Context, userID string) ([]taskstore.Project, error) {
	const q = `
		SELECT ` + projectColumns + `
		FROM   projects
		WHERE  user_id = $1
		ORDER  BY created_at DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query projects: %w", err)
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (taskstore.Project, error) {
		return scanProject(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres store: query projects: %w", err)
	}
	return projects, nil
}

// CreateNotification implements taskstore.Store.
func (s *Store) CreateNotification(ctx context.Context, n taskstore.Notification) (taskstore.Notification, error) {
	const q = `
		INSERT INTO notifications (id, user_id, entity_kind, action, entity_id, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, entity_kind, action, entity_id, message, created_at`

	var created taskstore.Notification
	err := s.pool.QueryRow(ctx, q,
		taskstore.NewID(), n.UserID, n.EntityKind, n.Action, n.EntityID, n.Message).
		Scan(&created.ID, &created.UserID, &created.EntityKind, &created.Action,
			&created.EntityID, &created.Message, &created.CreatedAt)
	if err != nil {
		return taskstore.Notification{}, fmt.Errorf("postgres store: create notification: %w", err)
	}
	return created, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
