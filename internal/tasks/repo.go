package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Repository persists tasks. Every method is scoped by owner: a row whose
// user_id differs from ownerID is invisible to reads and untouched by writes.
// Delete and SetCompleted return ErrNoRows when the scoped statement matched
// nothing.
type Repository interface {
	Create(ctx context.Context, ownerID int64, text string, now time.Time) (int64, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]Task, error)
	Delete(ctx context.Context, ownerID, id int64) error
	SetCompleted(ctx context.Context, ownerID, id int64, completed bool, now time.Time) error
}

var ErrClosed = errors.New("repository closed")

type InMemoryRepo struct {
	mu     sync.Mutex
	seq    int64
	store  map[int64]Task
	closed bool
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		store: make(map[int64]Task),
	}
}

func (r *InMemoryRepo) Create(_ context.Context, ownerID int64, text string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, ErrClosed
	}

	r.seq++
	r.store[r.seq] = Task{
		ID:        r.seq,
		OwnerID:   ownerID,
		Text:      text,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	return r.seq, nil
}

func (r *InMemoryRepo) ListByOwner(_ context.Context, ownerID int64) ([]Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}

	out := make([]Task, 0, len(r.store))
	for _, t := range r.store {
		if t.OwnerID == ownerID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, ownerID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	t, ok := r.store[id]
	if !ok || t.OwnerID != ownerID {
		return ErrNoRows
	}
	delete(r.store, id)
	return nil
}

func (r *InMemoryRepo) SetCompleted(_ context.Context, ownerID, id int64, completed bool, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	t, ok := r.store[id]
	if !ok || t.OwnerID != ownerID {
		return ErrNoRows
	}
	t.Completed = completed
	t.UpdatedAt = now.UTC()
	r.store[id] = t
	return nil
}

// Close makes every later call fail with ErrClosed.
func (r *InMemoryRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
