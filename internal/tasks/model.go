package tasks

import "time"

// Task is one to-do item owned by a single user.
type Task struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"user_id"`
	Text      string    `json:"task"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats are the counters shown above the task list.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

func ComputeStats(list []Task) Stats {
	var s Stats
	s.Total = len(list)
	for _, t := range list {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	return s
}
