package event

import "sync"

// Queue is a double-buffered queue. Items pushed during tick N are read in
// tick N+1: Swap rotates the back buffer to the front and hands it out.
type Queue[T any] struct {
	mu    sync.Mutex
	front []T
	back  []T
}

// Push appends v to the back buffer. Safe from any goroutine.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.back = append(q.back, v)
	q.mu.Unlock()
}

// Swap returns everything pushed since the previous Swap. The returned slice
// is valid until the next call to Swap.
func (q *Queue[T]) Swap() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.front)
	q.front, q.back = q.back, q.front[:0]
	return q.front
}

// Len returns the number of items waiting for the next Swap.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}
