// Package queue provides in-memory, per-project-per-stage FIFO task
// queues, ported from the original's workers/queue.rs
// (RwLock<HashMap<String, RwLock<Vec<TaskItem>>>>).
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task is one unit of queued work: a ticket ready to be handed to a
// worker at a specific stage.
type Task struct {
	ID        string
	ProjectID string
	Stage     string
	TicketID  string
	QueuedAt  time.Time
}

// Status summarizes a single queue's depth, mirroring the original's
// QueueStatus.
type Status struct {
	Name  string
	Depth int
}

// Name builds the canonical queue key for a project+stage pair.
func Name(projectID, stage string) string {
	return fmt.Sprintf("%s-%s-queue", projectID, stage)
}

type taskQueue struct {
	mu    sync.Mutex
	tasks []Task
}

// Manager owns every project+stage queue in the process. It never
// blocks: Add and Next both take and release a queue-local lock, and
// the registry lock is only held for the map lookup/insert.
type Manager struct {
	mu     sync.RWMutex
	queues map[string]*taskQueue
}

// NewManager constructs an empty registry of queues.
func NewManager() *Manager {
	return &Manager{queues: make(map[string]*taskQueue)}
}

func (m *Manager) getOrCreate(name string) *taskQueue {
	m.mu.RLock()
	q, ok := m.queues[name]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[name]; ok {
		return q
	}
	q = &taskQueue{}
	m.queues[name] = q
	return q
}

// Add appends a task to the back of its project+stage queue, creating
// the queue on first use.
func (m *Manager) Add(projectID, stage, ticketID string) Task {
	t := Task{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Stage:     stage,
		TicketID:  ticketID,
		QueuedAt:  time.Now().UTC(),
	}
	q := m.getOrCreate(Name(projectID, stage))
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
	return t
}

// Next pops and returns the task at the front of a project+stage
// queue, or ok=false if it is empty or doesn't exist.
func (m *Manager) Next(projectID, stage string) (Task, bool) {
	name := Name(projectID, stage)
	m.mu.RLock()
	q, exists := m.queues[name]
	m.mu.RUnlock()
	if !exists {
		return Task{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t, true
}

// Status reports the current depth of one queue.
func (m *Manager) Status(projectID, stage string) Status {
	name := Name(projectID, stage)
	m.mu.RLock()
	q, exists := m.queues[name]
	m.mu.RUnlock()
	if !exists {
		return Status{Name: name, Depth: 0}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{Name: name, Depth: len(q.tasks)}
}

// Delete removes a queue entirely, if present.
func (m *Manager) Delete(projectID, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, Name(projectID, stage))
}

// List returns the names of every queue currently tracked, including
// empty ones that have not been deleted.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// Tasks returns a snapshot of the tasks currently queued for a
// project+stage, front to back, without removing them.
func (m *Manager) Tasks(projectID, stage string) []Task {
	name := Name(projectID, stage)
	m.mu.RLock()
	q, exists := m.queues[name]
	m.mu.RUnlock()
	if !exists {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}
