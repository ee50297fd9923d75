package runner

import "sync"

type job interface {
	invoke()
	joined() *Barrier
}

// jobQueue is an unbounded multi-producer multi-consumer FIFO. Producers
// never block; consumers block until a job arrives or the queue is closed and
// drained.
type jobQueue struct {
	mu     sync.Mutex
	cond   sync.Cond
	items  []job
	head   int
	closed bool
}

func newJobQueue() *jobQueue {
	q := &jobQueue{items: make([]job, 0, 64)}
	q.cond.L = &q.mu
	return q
}

// push appends jobs atomically. before runs under the queue lock, ahead of
// the jobs becoming visible to consumers. It reports false, without calling
// before, if the queue is closed.
func (q *jobQueue) push(before func(), jobs ...job) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if before != nil {
		before()
	}
	q.items = append(q.items, jobs...)
	q.mu.Unlock()

	if len(jobs) == 1 {
		q.cond.Signal()
	} else {
		q.cond.Broadcast()
	}
	return true
}

func (q *jobQueue) pop() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		if q.closed {
			return nil, false
		}
		q.cond.Wait()
	}

	j := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return j, true
}

func (q *jobQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *jobQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
