package ecs

import (
	"sync/atomic"

	"github.com/l1jgo/ecsched/internal/core/runner"
)

// recordFrame lives for one fan-out call. Every slice job gets a copy; the
// buffer and the cursor are shared.
type recordFrame[F, R any] struct {
	fetch  F
	out    []R
	cursor *atomic.Int64
}

// reserve returns the next free slot of the destination buffer.
func (f *recordFrame[F, R]) reserve() int {
	return int(f.cursor.Add(1))
}

func record[F, R any](q *Query, r runner.Runner, fetch F, each func(f *recordFrame[F, R], id EntityID) R) ([]R, error) {
	n := q.Count()
	if n == 0 {
		return []R{}, nil
	}
	cursor := new(atomic.Int64)
	cursor.Store(-1)
	frame := recordFrame[F, R]{fetch: fetch, out: make([]R, n), cursor: cursor}
	err := HandleWith(q, r, frame, func(f *recordFrame[F, R], slots []EntityID) {
		for _, id := range slots {
			f.out[f.reserve()] = each(f, id)
		}
	})
	if err != nil {
		return nil, err
	}
	return frame.out, nil
}

// Record runs recorder once per matched entity and collects the results. The
// output order follows slot reservation, not entity order, when r runs slices
// in parallel.
//
// Record and the RecordSlices functions wait through Query.Handle, so the
// nesting restriction documented there applies: from inside a job of a
// ParallelRunner, record with runner.Sequential.
func Record[R any](q *Query, recorder func(id EntityID) R, r runner.Runner) ([]R, error) {
	return record(q, r, recorder, func(f *recordFrame[func(EntityID) R, R], id EntityID) R {
		return f.fetch(id)
	})
}

// RecordEntities collects the matched entity ids.
func RecordEntities(q *Query, r runner.Runner) ([]EntityID, error) {
	return Record(q, func(id EntityID) EntityID { return id }, r)
}

type fetch1[C1 any] struct {
	s1 *PtrComponentStore[C1]
}

// RecordSlices1 passes the entity's C1 in place to recorder.
func RecordSlices1[C1, R any](q *Query, recorder func(*C1) R, r runner.Runner) ([]R, error) {
	w := q.world
	return record(q, r, fetch1[C1]{storeOf[C1](w)}, func(f *recordFrame[fetch1[C1], R], id EntityID) R {
		return recorder(mustFetch(f.fetch.s1, id))
	})
}

type fetch2[C1, C2 any] struct {
	s1 *PtrComponentStore[C1]
	s2 *PtrComponentStore[C2]
}

func RecordSlices2[C1, C2, R any](q *Query, recorder func(*C1, *C2) R, r runner.Runner) ([]R, error) {
	w := q.world
	fetch := fetch2[C1, C2]{storeOf[C1](w), storeOf[C2](w)}
	return record(q, r, fetch, func(f *recordFrame[fetch2[C1, C2], R], id EntityID) R {
		return recorder(mustFetch(f.fetch.s1, id), mustFetch(f.fetch.s2, id))
	})
}

type fetch3[C1, C2, C3 any] struct {
	s1 *PtrComponentStore[C1]
	s2 *PtrComponentStore[C2]
	s3 *PtrComponentStore[C3]
}

func RecordSlices3[C1, C2, C3, R any](q *Query, recorder func(*C1, *C2, *C3) R, r runner.Runner) ([]R, error) {
	w := q.world
	fetch := fetch3[C1, C2, C3]{storeOf[C1](w), storeOf[C2](w), storeOf[C3](w)}
	return record(q, r, fetch, func(f *recordFrame[fetch3[C1, C2, C3], R], id EntityID) R {
		return recorder(
			mustFetch(f.fetch.s1, id),
			mustFetch(f.fetch.s2, id),
			mustFetch(f.fetch.s3, id),
		)
	})
}

type fetch4[C1, C2, C3, C4 any] struct {
	s1 *PtrComponentStore[C1]
	s2 *PtrComponentStore[C2]
	s3 *PtrComponentStore[C3]
	s4 *PtrComponentStore[C4]
}

func RecordSlices4[C1, C2, C3, C4, R any](q *Query, recorder func(*C1, *C2, *C3, *C4) R, r runner.Runner) ([]R, error) {
	w := q.world
	fetch := fetch4[C1, C2, C3, C4]{storeOf[C1](w), storeOf[C2](w), storeOf[C3](w), storeOf[C4](w)}
	return record(q, r, fetch, func(f *recordFrame[fetch4[C1, C2, C3, C4], R], id EntityID) R {
		return recorder(
			mustFetch(f.fetch.s1, id),
			mustFetch(f.fetch.s2, id),
			mustFetch(f.fetch.s3, id),
			mustFetch(f.fetch.s4, id),
		)
	})
}

type fetch5[C1, C2, C3, C4, C5 any] struct {
	s1 *PtrComponentStore[C1]
	s2 *PtrComponentStore[C2]
	s3 *PtrComponentStore[C3]
	s4 *PtrComponentStore[C4]
	s5 *PtrComponentStore[C5]
}

func RecordSlices5[C1, C2, C3, C4, C5, R any](q *Query, recorder func(*C1, *C2, *C3, *C4, *C5) R, r runner.Runner) ([]R, error) {
	w := q.world
	fetch := fetch5[C1, C2, C3, C4, C5]{
		storeOf[C1](w), storeOf[C2](w), storeOf[C3](w), storeOf[C4](w), storeOf[C5](w),
	}
	return record(q, r, fetch, func(f *recordFrame[fetch5[C1, C2, C3, C4, C5], R], id EntityID) R {
		return recorder(
			mustFetch(f.fetch.s1, id),
			mustFetch(f.fetch.s2, id),
			mustFetch(f.fetch.s3, id),
			mustFetch(f.fetch.s4, id),
			mustFetch(f.fetch.s5, id),
		)
	})
}

type fetch6[C1, C2, C3, C4, C5, C6 any] struct {
	s1 *PtrComponentStore[C1]
	s2 *PtrComponentStore[C2]
	s3 *PtrComponentStore[C3]
	s4 *PtrComponentStore[C4]
	s5 *PtrComponentStore[C5]
	s6 *PtrComponentStore[C6]
}

func RecordSlices6[C1, C2, C3, C4, C5, C6, R any](q *Query, recorder func(*C1, *C2, *C3, *C4, *C5, *C6) R, r runner.Runner) ([]R, error) {
	w := q.world
	fetch := fetch6[C1, C2, C3, C4, C5, C6]{
		storeOf[C1](w), storeOf[C2](w), storeOf[C3](w), storeOf[C4](w), storeOf[C5](w), storeOf[C6](w),
	}
	return record(q, r, fetch, func(f *recordFrame[fetch6[C1, C2, C3, C4, C5, C6], R], id EntityID) R {
		return recorder(
			mustFetch(f.fetch.s1, id),
			mustFetch(f.fetch.s2, id),
			mustFetch(f.fetch.s3, id),
			mustFetch(f.fetch.s4, id),
			mustFetch(f.fetch.s5, id),
			mustFetch(f.fetch.s6, id),
		)
	})
}
