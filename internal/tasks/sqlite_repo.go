package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so lexical order of stored values matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type SQLiteRepo struct {
	db *sqlx.DB
}

type sqliteRow struct {
	ID        int64  `db:"id"`
	UserID    int64  `db:"user_id"`
	Task      string `db:"task"`
	Completed bool   `db:"completed"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func NewSQLiteRepo(dsn string) (*SQLiteRepo, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if strings.Contains(dsn, ":memory:") {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Close() error { return r.db.Close() }

func (r *SQLiteRepo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *SQLiteRepo) Create(ctx context.Context, ownerID int64, text string, now time.Time) (int64, error) {
	ts := now.UTC().Format(timeLayout)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (user_id, task, completed, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, ownerID, text, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("inserting task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrNoRows
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepo) ListByOwner(ctx context.Context, ownerID int64) ([]Task, error) {
	var rows []sqliteRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, task, completed, created_at, updated_at
		FROM tasks
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	out := make([]Task, 0, len(rows))
	for _, row := range rows {
		t, err := row.task()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (row sqliteRow) task() (Task, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("task %d created_at: %w", row.ID, err)
	}
	updated, err := time.Parse(timeLayout, row.UpdatedAt)
	if err != nil {
		return Task{}, fmt.Errorf("task %d updated_at: %w", row.ID, err)
	}
	return Task{
		ID:        row.ID,
		OwnerID:   row.UserID,
		Text:      row.Task,
		Completed: row.Completed,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting task %d: %w", id, err)
	}
	return affectedOne(res.RowsAffected())
}

func (r *SQLiteRepo) SetCompleted(ctx context.Context, ownerID, id int64, completed bool, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, completed, now.UTC().Format(timeLayout), id, ownerID)
	if err != nil {
		return fmt.Errorf("updating task %d: %w", id, err)
	}
	return affectedOne(res.RowsAffected())
}

func affectedOne(n int64, err error) error {
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// ApplyMigrations ensures schema exists
func (r *SQLiteRepo) ApplyMigrations(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	task TEXT NOT NULL CHECK (task <> ''),
	completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("creating tasks table: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_created ON tasks (user_id, created_at DESC)`)
	if err != nil {
		return fmt.Errorf("creating tasks index: %w", err)
	}
	return nil
}

// sqlitePragmas run on every new pooled connection.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// SQLiteFileDSN builds file:/absolute/path?_pragma=busy_timeout(5000)&_pragma=...
func SQLiteFileDSN(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return "file:" + filepath.ToSlash(abs) + "?_pragma=" + strings.Join(sqlitePragmas, "&_pragma="), nil
}
