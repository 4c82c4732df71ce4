package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepo stores tasks in PostgreSQL through a pgx connection pool.
type PostgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgresRepo connects to dsn and verifies the connection with a ping.
func NewPostgresRepo(ctx context.Context, dsn string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresRepo{pool: pool}, nil
}

func (r *PostgresRepo) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepo) Ping(ctx context.Context) error { return r.pool.Ping(ctx) }

func (r *PostgresRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NOT NULL,
	task TEXT NOT NULL CHECK (task <> ''),
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks (user_id, created_at DESC);
`)
	if err != nil {
		return fmt.Errorf("migrating tasks table: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Create(ctx context.Context, ownerID int64, text string, now time.Time) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, task, completed, created_at, updated_at)
		VALUES ($1, $2, FALSE, $3, $3)
		RETURNING id
	`, ownerID, text, now.UTC()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNoRows
		}
		return 0, fmt.Errorf("inserting task: %w", err)
	}
	return id, nil
}

func (r *PostgresRepo) ListByOwner(ctx context.Context, ownerID int64) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, task, completed, created_at, updated_at
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Text, &t.Completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, ownerID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) SetCompleted(ctx context.Context, ownerID, id int64, completed bool, now time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tasks SET completed = $1, updated_at = $2
		WHERE id = $3 AND user_id = $4
	`, completed, now.UTC(), id, ownerID)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}
