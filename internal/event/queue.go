package event

import (
	"context"
	"time"
)

// Queue is a bounded FIFO with one producer and one consumer.
type Queue struct {
	ch chan Event
}

func NewQueue(size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{ch: make(chan Event, size)}
}

// Put blocks while the queue is full.
func (q *Queue) Put(ctx context.Context, ev Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get waits up to timeout for the next event.
func (q *Queue) Get(ctx context.Context, timeout time.Duration) (Event, bool) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case ev := <-q.ch:
		return ev, true
	case <-t.C:
		return Event{}, false
	case <-ctx.Done():
		return Event{}, false
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Drain drops everything currently buffered and reports how many events went.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}
