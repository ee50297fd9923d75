package ecs

import (
	"strings"

	"github.com/kelindar/bitmap"

	"github.com/l1jgo/ecsched/internal/core/runner"
	"github.com/l1jgo/ecsched/internal/core/typeid"
)

// Matcher selects entities by the component types they carry. The zero
// Matcher matches every entity. Matchers are immutable once built.
type Matcher struct {
	all   bitmap.Bitmap
	none  bitmap.Bitmap
	never bool
}

// MatchNone matches no entity. Systems using it only run their hooks.
func MatchNone() Matcher {
	return Matcher{never: true}
}

// MatchAll matches entities carrying every listed component.
func MatchAll(components ...typeid.ID) Matcher {
	var m Matcher
	for _, c := range components {
		m.all.Set(uint32(c))
	}
	return m
}

// Without returns a copy of m that also rejects entities carrying any of the
// listed components.
func (m Matcher) Without(components ...typeid.ID) Matcher {
	out := Matcher{all: cloneBits(m.all), none: cloneBits(m.none), never: m.never}
	for _, c := range components {
		out.none.Set(uint32(c))
	}
	return out
}

// Requires returns the required component types.
func (m Matcher) Requires() []typeid.ID {
	ids := make([]typeid.ID, 0, m.all.Count())
	m.all.Range(func(x uint32) {
		ids = append(ids, typeid.ID(x))
	})
	return ids
}

// Match reports whether a component signature satisfies m.
func (m Matcher) Match(sig bitmap.Bitmap) bool {
	if m.never {
		return false
	}
	ok := true
	m.all.Range(func(x uint32) {
		if ok && !sig.Contains(x) {
			ok = false
		}
	})
	if !ok {
		return false
	}
	m.none.Range(func(x uint32) {
		if ok && sig.Contains(x) {
			ok = false
		}
	})
	return ok
}

func (m Matcher) String() string {
	if m.never {
		return "match(none)"
	}
	var b strings.Builder
	b.WriteString("match(")
	sep := ""
	m.all.Range(func(x uint32) {
		b.WriteString(sep)
		b.WriteString(typeid.ID(x).String())
		sep = ","
	})
	m.none.Range(func(x uint32) {
		b.WriteString(sep)
		b.WriteString("!")
		b.WriteString(typeid.ID(x).String())
		sep = ","
	})
	b.WriteString(")")
	return b.String()
}

func cloneBits(src bitmap.Bitmap) bitmap.Bitmap {
	var dst bitmap.Bitmap
	src.Range(func(x uint32) {
		dst.Set(x)
	})
	return dst
}

// Matches reports whether entity id is alive and satisfies m.
func (w *World) Matches(id EntityID, m Matcher) bool {
	sig, ok := w.signatures[id]
	return ok && m.Match(sig)
}

// Query is a snapshot of the entities matching a Matcher at the time it was
// taken. Later structural changes are not reflected.
type Query struct {
	world   *World
	matcher Matcher
	slots   []EntityID
}

// Query snapshots the entities currently matching m, in storage order.
func (w *World) Query(m Matcher) *Query {
	q := &Query{world: w, matcher: m}
	if m.never {
		return q
	}
	for _, id := range w.entities {
		if m.Match(w.signatures[id]) {
			q.slots = append(q.slots, id)
		}
	}
	return q
}

// Subset builds a query from ids, keeping those that are alive and satisfy m.
// Repeated ids are kept.
func (w *World) Subset(m Matcher, ids []EntityID) *Query {
	q := &Query{world: w, matcher: m, slots: make([]EntityID, 0, len(ids))}
	for _, id := range ids {
		if w.Matches(id, m) {
			q.slots = append(q.slots, id)
		}
	}
	return q
}

// Single wraps one entity as a query, whether or not it matches.
func (w *World) Single(id EntityID) *Query {
	return &Query{world: w, slots: []EntityID{id}}
}

func (q *Query) World() *World     { return q.world }
func (q *Query) Matcher() Matcher  { return q.matcher }
func (q *Query) Count() int        { return len(q.slots) }
func (q *Query) Slots() []EntityID { return q.slots }

// Handle splits the snapshot into contiguous slices, runs fn on each through
// r and waits for all of them. A nil runner uses the world's runner.
//
// Handle blocks the calling goroutine until every slice is done. It must not
// be called with a ParallelRunner from a job running on that same runner:
// the waiting workers would starve the slices queued behind them. Nested
// fan-outs inside parallel systems pass runner.Sequential instead.
func (q *Query) Handle(r runner.Runner, fn func(slots []EntityID)) error {
	if len(q.slots) == 0 {
		return nil
	}
	if r == nil {
		r = q.world.runner
	}
	b := runner.AcquireBarrier()
	defer b.Release()
	err := r.RunGroup(len(q.slots), func(rng runner.Range) {
		fn(q.slots[rng.From:rng.To])
	}, b)
	if werr := b.Wait(); err == nil {
		err = werr
	}
	return err
}

// HandleWith is Handle with a payload shared by every slice. The same
// restriction on nesting applies.
func HandleWith[T any](q *Query, r runner.Runner, data T, fn func(data *T, slots []EntityID)) error {
	if len(q.slots) == 0 {
		return nil
	}
	if r == nil {
		r = q.world.runner
	}
	slots := q.slots
	b := runner.AcquireBarrier()
	defer b.Release()
	err := runner.RunGroupWith(r, len(slots), data, func(data *T, rng runner.Range) {
		fn(data, slots[rng.From:rng.To])
	}, b)
	if werr := b.Wait(); err == nil {
		err = werr
	}
	return err
}

// Each2 iterates over entities that have both component A and B.
// It iterates over the smaller store and checks the larger one.
func Each2[A, B any](w *World, fn func(EntityID, *A, *B)) {
	sa, sb := storeOf[A](w), storeOf[B](w)
	if sa == nil || sb == nil {
		return
	}
	if sa.Len() <= sb.Len() {
		for id, a := range sa.data {
			if b, ok := sb.data[id]; ok {
				fn(id, a, b)
			}
		}
		return
	}
	for id, b := range sb.data {
		if a, ok := sa.data[id]; ok {
			fn(id, a, b)
		}
	}
}
