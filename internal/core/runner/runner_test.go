package runner

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

func TestSplitBalanced(t *testing.T) {
	assert.Equal(t, []Range{{0, 4}, {4, 7}, {7, 10}}, Split(10, 3))
	assert.Equal(t, []Range{{0, 1}, {1, 2}}, Split(2, 8))
	assert.Equal(t, []Range{{0, 5}}, Split(5, 1))
	assert.Nil(t, Split(0, 4))
	assert.Equal(t, []Range{{0, 3}}, Split(3, 0))
}

func TestSplitCoversRangeExactly(t *testing.T) {
	for taskCount := 1; taskCount <= 64; taskCount++ {
		for degree := 1; degree <= 12; degree++ {
			ranges := Split(taskCount, degree)
			require.Len(t, ranges, min(taskCount, degree))

			next := 0
			shortest, longest := taskCount, 0
			for _, r := range ranges {
				require.Equal(t, next, r.From, "gap or overlap at %d/%d", taskCount, degree)
				next = r.To
				shortest = min(shortest, r.Len())
				longest = max(longest, r.Len())
			}
			require.Equal(t, taskCount, next)
			require.LessOrEqual(t, longest-shortest, 1)
		}
	}
}

func TestParallelRunnerRunWithBarrier(t *testing.T) {
	r := NewParallelRunner(4)
	defer r.Close()

	var count atomic.Int32
	b := AcquireBarrier()
	for i := 0; i < 100; i++ {
		require.NoError(t, r.Run(func() { count.Add(1) }, b))
	}
	require.NoError(t, b.Wait())
	b.Release()
	assert.EqualValues(t, 100, count.Load())
}

func TestParallelRunnerRunGroupVisitsEveryIndexOnce(t *testing.T) {
	r := NewParallelRunner(3)
	defer r.Close()

	const n = 1000
	seen := make([]int32, n)
	var slices atomic.Int32

	b := NewBarrier()
	require.NoError(t, r.RunGroup(n, func(rng Range) {
		slices.Add(1)
		for i := rng.From; i != rng.To; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
	}, b))
	require.NoError(t, b.Wait())

	assert.EqualValues(t, 3, slices.Load())
	for i, v := range seen {
		require.EqualValues(t, 1, v, "index %d", i)
	}
}

func TestParallelRunnerGroupArrayRecycledAfterBarrier(t *testing.T) {
	r := NewParallelRunner(2)
	defer r.Close()

	for round := 0; round < 50; round++ {
		var sum atomic.Int64
		b := AcquireBarrier()
		require.NoError(t, r.RunGroup(10, func(rng Range) {
			for i := rng.From; i != rng.To; i++ {
				sum.Add(int64(i))
			}
		}, b))
		require.NoError(t, b.Wait())
		b.Release()
		require.EqualValues(t, 45, sum.Load())
	}
}

func TestRunWithCopiesPayload(t *testing.T) {
	type payload struct {
		index int
		out   *[8]int
	}
	r := NewParallelRunner(4)
	defer r.Close()

	var out [8]int
	b := NewBarrier()
	for i := range out {
		require.NoError(t, RunWith(r, payload{index: i, out: &out}, func(p *payload) {
			p.out[p.index] = p.index * 10
		}, b))
	}
	require.NoError(t, b.Wait())
	assert.Equal(t, [8]int{0, 10, 20, 30, 40, 50, 60, 70}, out)
}

func TestRunGroupWithSharesPayloadAcrossSlices(t *testing.T) {
	type payload struct{ dst []int }
	for _, r := range []Runner{Sequential, NewParallelRunner(4)} {
		dst := make([]int, 37)
		b := NewBarrier()
		require.NoError(t, RunGroupWith(r, len(dst), payload{dst: dst}, func(p *payload, rng Range) {
			for i := rng.From; i != rng.To; i++ {
				p.dst[i] = i
			}
		}, b))
		require.NoError(t, b.Wait())
		for i, v := range dst {
			require.Equal(t, i, v)
		}
		if pr, ok := r.(*ParallelRunner); ok {
			pr.Close()
		}
	}
}

func TestPanicWithBarrierReachesObserver(t *testing.T) {
	r := NewParallelRunner(4)
	defer r.Close()

	var completed atomic.Int32
	b := NewBarrier()
	require.NoError(t, r.RunGroup(8, func(rng Range) {
		if rng.From == 0 {
			panic(errors.New("slice failed"))
		}
		completed.Add(1)
	}, b))

	err := b.Wait()
	require.Error(t, err)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.EqualError(t, errors.Unwrap(err), "slice failed")
	assert.EqualValues(t, 3, completed.Load(), "sibling slices run to completion")
}

func TestPanicWithoutBarrierIsLoggedAndWorkerSurvives(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	r := NewParallelRunner(1, WithLogger(zap.New(core)))
	defer r.Close()

	require.NoError(t, r.Run(func() { panic("boom") }, nil))

	var ran atomic.Bool
	b := NewBarrier()
	require.NoError(t, r.Run(func() { ran.Store(true) }, b))
	require.NoError(t, b.Wait())
	assert.True(t, ran.Load())

	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "uncaught job panic", logs.All()[0].Message)
}

func TestFirstErrorWins(t *testing.T) {
	r := NewParallelRunner(4)
	defer r.Close()

	gate := make(chan struct{})
	b := NewBarrier()
	require.NoError(t, r.Run(func() { panic("first") }, b))
	require.Eventually(t, func() bool { return b.Err() != nil }, time.Second, time.Millisecond)
	require.NoError(t, r.Run(func() { <-gate; panic("second") }, b))
	close(gate)

	err := b.Wait()
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "first", pe.Value)
}

func TestClosedRunnerRejectsSubmissions(t *testing.T) {
	r := NewParallelRunner(2)
	r.Close()
	r.Wait()

	b := NewBarrier()
	assert.ErrorIs(t, r.Run(func() {}, b), ErrClosed)
	assert.ErrorIs(t, r.RunGroup(10, func(Range) {}, b), ErrClosed)
	assert.ErrorIs(t, RunWith(r, 1, func(*int) {}, b), ErrClosed)
	assert.Zero(t, b.Participants())
}

func TestCloseDrainsQueuedJobs(t *testing.T) {
	r := NewParallelRunner(1)
	gate := make(chan struct{})
	var count atomic.Int32
	require.NoError(t, r.Run(func() { <-gate }, nil))
	for i := 0; i < 10; i++ {
		require.NoError(t, r.Run(func() { count.Add(1) }, nil))
	}
	r.Close()
	close(gate)
	r.Wait()
	assert.EqualValues(t, 10, count.Load())
}

func TestConcurrentProducers(t *testing.T) {
	r := NewParallelRunner(4)
	defer r.Close()

	var count atomic.Int64
	b := NewBarrier()
	var g errgroup.Group
	for p := 0; p < 8; p++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				if err := r.Run(func() { count.Add(1) }, b); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, b.Wait())
	assert.EqualValues(t, 1600, count.Load())
}

func TestSequentialRunner(t *testing.T) {
	var order []int
	require.NoError(t, Sequential.Run(func() { order = append(order, 1) }, nil))
	require.NoError(t, Sequential.RunGroup(4, func(rng Range) {
		assert.Equal(t, Range{0, 4}, rng)
		order = append(order, 2)
	}, nil))
	require.NoError(t, Sequential.RunGroup(0, func(Range) { order = append(order, 3) }, nil))
	assert.Equal(t, []int{1, 2}, order)

	b := NewBarrier()
	require.NoError(t, Sequential.Run(func() { panic("inline") }, b))
	assert.Error(t, b.Wait())

	assert.Panics(t, func() { _ = Sequential.Run(func() { panic("inline") }, nil) })
}

func TestBarrierOrderingUnderConcurrentSignals(t *testing.T) {
	for round := 0; round < 100; round++ {
		b := NewBarrier()
		var fired atomic.Int32
		b.AddParticipants(3)
		b.AddCallback(func(payload any) {
			assert.Equal(t, "arr", payload)
			fired.Add(1)
		}, "arr")

		var wg sync.WaitGroup
		wg.Add(3)
		for i := 0; i < 3; i++ {
			go func() {
				defer wg.Done()
				b.Signal()
			}()
		}
		wg.Wait()
		require.NoError(t, b.Wait())
		require.EqualValues(t, 1, fired.Load())
	}
}
