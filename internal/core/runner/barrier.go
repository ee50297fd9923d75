package runner

import "sync"

type barrierCallback struct {
	fn      func(payload any)
	payload any
}

// Barrier counts outstanding participants of a parallel submission. When the
// count returns to zero every registered callback fires once with its payload.
// The first error thrown by any participant is kept; later ones are dropped.
//
// Participants must be added before the work that signals them can run. The
// runners in this package do that before a job becomes visible to workers.
type Barrier struct {
	mu           sync.Mutex
	cond         sync.Cond
	participants int
	firing       int
	callbacks    []barrierCallback
	err          error
}

var barrierPool = sync.Pool{
	New: func() any { return NewBarrier() },
}

func NewBarrier() *Barrier {
	b := &Barrier{}
	b.cond.L = &b.mu
	return b
}

// AcquireBarrier takes a barrier from the shared pool. Call Release once the
// barrier has completed and nobody observes it anymore.
func AcquireBarrier() *Barrier {
	return barrierPool.Get().(*Barrier)
}

// Release resets the barrier and returns it to the shared pool. Releasing a
// barrier with outstanding participants panics.
func (b *Barrier) Release() {
	b.mu.Lock()
	if b.participants != 0 || b.firing != 0 {
		b.mu.Unlock()
		panic("runner: release of a barrier with outstanding participants")
	}
	b.callbacks = b.callbacks[:0]
	b.err = nil
	b.mu.Unlock()
	barrierPool.Put(b)
}

// AddParticipants increases the outstanding count by n.
func (b *Barrier) AddParticipants(n int) {
	if n < 0 {
		panic("runner: negative participant count")
	}
	b.mu.Lock()
	b.participants += n
	b.mu.Unlock()
}

// AddCallback registers fn to run, with payload, the next time the
// participant count reaches zero.
func (b *Barrier) AddCallback(fn func(payload any), payload any) {
	b.mu.Lock()
	b.callbacks = append(b.callbacks, barrierCallback{fn: fn, payload: payload})
	b.mu.Unlock()
}

// Signal marks one participant as finished.
func (b *Barrier) Signal() {
	b.mu.Lock()
	b.participants--
	if b.participants < 0 {
		b.mu.Unlock()
		panic("runner: barrier signalled more often than participants were added")
	}
	if b.participants != 0 {
		b.mu.Unlock()
		return
	}

	var fired []barrierCallback
	if len(b.callbacks) != 0 {
		fired = make([]barrierCallback, len(b.callbacks))
		copy(fired, b.callbacks)
		clear(b.callbacks)
		b.callbacks = b.callbacks[:0]
	}
	b.firing++
	b.mu.Unlock()

	for _, cb := range fired {
		cb.fn(cb.payload)
	}

	b.mu.Lock()
	b.firing--
	b.cond.Broadcast()
	b.mu.Unlock()
}

// Throw records err if no error was recorded yet, then signals.
func (b *Barrier) Throw(err error) {
	b.mu.Lock()
	if b.err == nil {
		b.err = err
	}
	b.mu.Unlock()
	b.Signal()
}

// Participants returns the outstanding count.
func (b *Barrier) Participants() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.participants
}

// Err returns the first recorded error, if any.
func (b *Barrier) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Wait blocks until no participant is outstanding and all completion
// callbacks have returned, then reports the first recorded error.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.participants != 0 || b.firing != 0 {
		b.cond.Wait()
	}
	return b.err
}
