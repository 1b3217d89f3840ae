package game

import (
	"sync"

	"github.com/okeyhub/okey101/internal/cache"
)

// actionQueue is an unbounded FIFO between the room loop and its publisher. push never
// blocks, so a slow Redis cannot stall the game.
type actionQueue struct {
	mu     sync.Mutex
	items  []cache.GameActionRecord
	closed bool
	wake   chan struct{}
}

func newActionQueue() *actionQueue {
	return &actionQueue{wake: make(chan struct{}, 1)}
}

func (q *actionQueue) push(rec cache.GameActionRecord) {
	q.mu.Lock()
	q.items = append(q.items, rec)
	q.mu.Unlock()
	q.signal()
}

func (q *actionQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// take returns everything queued so far and whether the queue has been closed.
func (q *actionQueue) take() ([]cache.GameActionRecord, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items, q.closed
}

func (q *actionQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
