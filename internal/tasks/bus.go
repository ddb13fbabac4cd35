package tasks

import (
	"context"
	"io"
	"sync"

	"github.com/desertthunder/mediafetch/internal/models"
)

// Bus is a single-producer, single-consumer progress queue for one task.
//
// Publish never blocks. Next blocks until an event is queued, the stream has
// delivered its terminal event (io.EOF), or the caller's context ends.
type Bus struct {
	mu          sync.Mutex
	queue       []models.ProgressEvent
	wake        chan struct{}
	terminated  bool
	lastPercent float64
}

// NewBus returns a bus whose first event is [models.InitialProgress].
func NewBus() *Bus {
	initial := models.InitialProgress()
	return &Bus{
		queue:       []models.ProgressEvent{initial},
		wake:        make(chan struct{}),
		lastPercent: initial.Percent,
	}
}

// Publish queues ev and reports whether it was accepted.
//
// Events after a terminal event are dropped. Progress percentages lower than
// the last published value are raised to it, including across retry attempts,
// so a new attempt reports the earlier high-water mark until it passes it.
func (b *Bus) Publish(ev models.ProgressEvent) bool {
	if ev == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.terminated {
		return false
	}
	if p, ok := ev.(models.Progress); ok {
		if p.Percent < b.lastPercent {
			p.Percent = b.lastPercent
		}
		b.lastPercent = p.Percent
		ev = p
	}
	if models.IsTerminal(ev) {
		b.terminated = true
	}

	b.queue = append(b.queue, ev)
	close(b.wake)
	b.wake = make(chan struct{})
	return true
}

// Next returns the next event in publish order.
func (b *Bus) Next(ctx context.Context) (models.ProgressEvent, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, nil
		}
		if b.terminated {
			b.mu.Unlock()
			return nil, io.EOF
		}
		wake := b.wake
		b.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Events adapts Next to a channel that closes after the terminal event or when ctx ends.
func (b *Bus) Events(ctx context.Context) <-chan models.ProgressEvent {
	out := make(chan models.ProgressEvent)
	go func() {
		defer close(out)
		for {
			ev, err := b.Next(ctx)
			if err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Terminated reports whether a terminal event has been published.
func (b *Bus) Terminated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terminated
}

// Percent is the highest progress percentage published so far.
func (b *Bus) Percent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastPercent
}
