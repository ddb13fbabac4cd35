package tasks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/desertthunder/mediafetch/internal/shared"
)

// Registry maps task IDs to running tasks.
//
// Tasks are inserted when spawned and removed once their terminal event is published.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: map[string]*Task{}}
}

// Add inserts t; IDs must be unique.
func (r *Registry) Add(t *Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[t.ID]; exists {
		return fmt.Errorf("%w: duplicate task id %s", shared.ErrInvalidArgument, t.ID)
	}
	r.tasks[t.ID] = t
	return nil
}

// Get looks up a running task.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", shared.ErrTaskNotFound, id)
	}
	return t, nil
}

// Remove deletes id; removing an absent id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// Len is the number of running tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Snapshots lists running tasks, oldest first.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	list := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		list = append(list, t)
	}
	r.mu.RUnlock()

	out := make([]Snapshot, 0, len(list))
	for _, t := range list {
		out = append(out, t.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// CancelAll cancels every running task.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tasks {
		t.Cancel()
	}
}
