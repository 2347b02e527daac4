package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// kindQueue admits exactly one in-flight call at a time, in strict submission
// order. lastCall is only touched by the holder, so it needs no extra lock.
type kindQueue struct {
	mu       sync.Mutex
	busy     bool
	waiters  []chan struct{}
	lastCall time.Time
}

func (q *kindQueue) acquire(ctx context.Context) error {
	q.mu.Lock()
	if !q.busy {
		q.busy = true
		q.mu.Unlock()
		return nil
	}

	ticket := make(chan struct{})
	q.waiters = append(q.waiters, ticket)
	q.mu.Unlock()

	select {
	case <-ticket:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiters {
			if w == ticket {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// the ticket was already granted; hand the slot to the next waiter
		q.release()
		return ctx.Err()
	}
}

func (q *kindQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiters) > 0 {
		next := q.waiters[0]
		q.waiters = q.waiters[1:]
		close(next)
		return
	}
	q.busy = false
}

func fmt5xx(status int) error {
	return fmt.Errorf("provider returned HTTP %d", status)
}
