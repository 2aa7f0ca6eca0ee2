package tracking

import (
	"log/slog"
	"sort"
)

// Registry is the authoritative set of tracked tasks keyed by id.
type Registry struct {
	tasks  map[int64]Task
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{tasks: map[int64]Task{}, logger: logger}
}

// Seed replaces the registry contents. Tasks without a valid destination are
// skipped and logged. It returns the number of tasks accepted.
func (r *Registry) Seed(tasks []Task) int {
	r.tasks = make(map[int64]Task, len(tasks))
	for _, t := range tasks {
		if !t.Destination.Valid() {
			r.logger.Warn("excluding task without valid destination",
				"task_id", t.ID,
				"destination", t.Destination.String())
			continue
		}
		r.tasks[t.ID] = t
	}
	return len(r.tasks)
}

// Upsert inserts t or replaces the entry with the same id. The previous
// entry is returned when one existed.
func (r *Registry) Upsert(t Task) (prev Task, replaced bool, err error) {
	if !t.Destination.Valid() {
		return Task{}, false, ErrInvalidDestination
	}
	prev, replaced = r.tasks[t.ID]
	r.tasks[t.ID] = t
	return prev, replaced, nil
}

// Remove deletes the task and reports whether it existed. Cascading to the
// position store and reconciler is the engine's job.
func (r *Registry) Remove(id int64) bool {
	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

func (r *Registry) Get(id int64) (Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

// List returns all tracked tasks ordered by id.
func (r *Registry) List() []Task {
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int { return len(r.tasks) }
