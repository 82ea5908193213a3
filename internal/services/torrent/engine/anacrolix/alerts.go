package anacrolix

import (
	"sync"

	"torrentsession/internal/domain"
)

// alertQueue decouples alert emission from the consumer. push never blocks;
// a single pump goroutine feeds out in FIFO order.
type alertQueue struct {
	mu      sync.Mutex
	pending []domain.Alert
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	out     chan domain.Alert
}

func newAlertQueue() *alertQueue {
	q := &alertQueue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan domain.Alert),
	}
	go q.pump()
	return q
}

func (q *alertQueue) push(alert domain.Alert) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, alert)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// close stops the pump and closes out. Alerts not yet delivered are
// discarded.
func (q *alertQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.pending = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *alertQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *alertQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		next := q.pending[0]
		q.pending[0] = domain.Alert{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		select {
		case q.out <- next:
		case <-q.done:
			return
		}
	}
}
