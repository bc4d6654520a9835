// Package tasks runs long indexing jobs in the background and keeps
// their status for polling, so a caller that triggered a job can learn
// whether it succeeded instead of firing and forgetting.
package tasks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State of a background task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Task is a snapshot of one background job.
type Task struct {
	ID          string
	Name        string
	State       State
	Count       int
	Error       string
	SubmittedAt time.Time
	FinishedAt  time.Time
}

// Fn is the job body. The returned count is recorded on success.
type Fn func(ctx context.Context) (int, error)

// Manager tracks background tasks in memory. Task history lives for the
// process lifetime only.
type Manager struct {
	mu     sync.RWMutex
	tasks  map[string]*Task
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewManager creates an empty task manager.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		tasks:  make(map[string]*Task),
		logger: logger,
	}
}

// Submit registers a task and runs fn on its own goroutine. The returned
// snapshot carries the id for later polling. The task runs with the given
// base context so shutdown cancels in-flight jobs.
func (m *Manager) Submit(ctx context.Context, name string, fn Fn) Task {
	t := &Task{
		ID:          uuid.NewString(),
		Name:        name,
		State:       StatePending,
		SubmittedAt: time.Now(),
	}

	m.mu.Lock()
	m.tasks[t.ID] = t
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(ctx, t.ID, fn)

	return *t
}

// Get returns a task snapshot by id.
func (m *Manager) Get(id string) (Task, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// List returns all known tasks, newest first.
func (m *Manager) List() []Task {
	m.mu.RLock()
	out := make([]Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// Wait blocks until every submitted task has finished. Used on shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, id string, fn Fn) {
	defer m.wg.Done()

	m.update(id, func(t *Task) { t.State = StateRunning })

	count, err := fn(ctx)

	m.update(id, func(t *Task) {
		t.FinishedAt = time.Now()
		if err != nil {
			t.State = StateFailed
			t.Error = err.Error()
			return
		}
		t.State = StateSucceeded
		t.Count = count
	})

	if err != nil {
		m.logger.Error("background task failed", zap.String("task_id", id), zap.Error(err))
		return
	}
	m.logger.Info("background task finished", zap.String("task_id", id), zap.Int("count", count))
}

func (m *Manager) update(id string, mutate func(*Task)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tasks[id]; ok {
		mutate(t)
	}
}
