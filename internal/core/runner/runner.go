// Package runner dispatches jobs either on the calling goroutine or across a
// fixed pool of worker goroutines, joined through completion barriers.
package runner

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// ErrClosed is returned when submitting to a runner that has been closed.
var ErrClosed = errors.New("runner: closed")

// Range is a half-open index range [From, To).
type Range struct {
	From int
	To   int
}

func (r Range) Len() int { return r.To - r.From }

// GroupAction processes one contiguous slice of a group submission.
type GroupAction func(r Range)

// Runner executes jobs. A nil barrier makes a submission fire-and-forget.
type Runner interface {
	DegreeOfParallelism() int
	Run(action func(), barrier *Barrier) error
	RunGroup(taskCount int, action GroupAction, barrier *Barrier) error
}

// Split partitions [0, taskCount) into min(taskCount, degree) contiguous
// ranges. The first taskCount%slices ranges are one element longer.
func Split(taskCount, degree int) []Range {
	n := sliceCount(taskCount, degree)
	if n == 0 {
		return nil
	}
	out := make([]Range, 0, n)
	eachSlice(taskCount, n, func(_ int, r Range) {
		out = append(out, r)
	})
	return out
}

func sliceCount(taskCount, degree int) int {
	if taskCount <= 0 {
		return 0
	}
	if degree < 1 {
		degree = 1
	}
	return min(taskCount, degree)
}

func eachSlice(taskCount, slices int, fn func(i int, r Range)) {
	div := taskCount / slices
	remaining := taskCount % slices
	acc := 0
	for i := 0; i != slices; i++ {
		start := acc
		if i < remaining {
			acc += div + 1
		} else {
			acc += div
		}
		fn(i, Range{From: start, To: acc})
	}
}

// PanicError carries a value recovered from a panicking job.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("runner: job panicked: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// invokeJoined runs fn as one barrier participant. The participant must
// already be registered.
func invokeJoined(b *Barrier, fn func()) {
	defer func() {
		if v := recover(); v != nil {
			b.Throw(newPanicError(v))
			return
		}
		b.Signal()
	}()
	fn()
}
