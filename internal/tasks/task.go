package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/mediafetch/internal/models"
)

// Task is the handle of one running download.
type Task struct {
	ID        string
	Request   models.FetchRequest
	StartedAt time.Time

	bus    *Bus
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.RWMutex
	state      models.TaskState
	platform   models.Platform
	title      string
	filename   string
	attempts   int
	message    string
	finishedAt time.Time
}

// NewTask creates a pending task whose context derives from parent.
func NewTask(parent context.Context, id string, req models.FetchRequest) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		ID:        id,
		Request:   req,
		StartedAt: time.Now().UTC(),
		bus:       NewBus(),
		ctx:       ctx,
		cancel:    cancel,
		state:     models.TaskPending,
		platform:  models.PlatformYouTube,
	}
}

// Next reads the task's next progress event; see [Bus.Next].
func (t *Task) Next(ctx context.Context) (models.ProgressEvent, error) {
	return t.bus.Next(ctx)
}

// Events streams the task's progress events; see [Bus.Events].
func (t *Task) Events(ctx context.Context) <-chan models.ProgressEvent {
	return t.bus.Events(ctx)
}

// Context is cancelled by [Task.Cancel] or when the owning service shuts down.
func (t *Task) Context() context.Context { return t.ctx }

// Cancel stops the download; the worker publishes the terminal event.
func (t *Task) Cancel() { t.cancel() }

// Publish forwards a progress event to the task's bus.
func (t *Task) Publish(ev models.ProgressEvent) bool {
	return t.bus.Publish(ev)
}

func (t *Task) setState(s models.TaskState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = s
	if s.IsTerminal() {
		t.finishedAt = time.Now().UTC()
	}
}

func (t *Task) setMedia(platform models.Platform, title, filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.platform, t.title, t.filename = platform, title, filename
}

func (t *Task) beginAttempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts++
	return t.attempts
}

func (t *Task) setMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
}

// State returns the current lifecycle state.
func (t *Task) State() models.TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Snapshot is a point-in-time, JSON-friendly view of a task.
type Snapshot struct {
	ID         string           `json:"id"`
	URL        string           `json:"url"`
	Kind       models.MediaKind `json:"type"`
	Platform   models.Platform  `json:"platform"`
	State      models.TaskState `json:"state"`
	Title      string           `json:"title,omitempty"`
	Filename   string           `json:"filename,omitempty"`
	Attempts   int              `json:"attempts"`
	Percent    float64          `json:"percent"`
	Message    string           `json:"message,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
}

// Snapshot copies the task's current fields.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Snapshot{
		ID:        t.ID,
		URL:       t.Request.URL,
		Kind:      t.Request.Kind,
		Platform:  t.platform,
		State:     t.state,
		Title:     t.title,
		Filename:  t.filename,
		Attempts:  t.attempts,
		Percent:   t.bus.Percent(),
		Message:   t.message,
		StartedAt: t.StartedAt,
	}
	if !t.finishedAt.IsZero() {
		finished := t.finishedAt
		s.FinishedAt = &finished
	}
	return s
}
