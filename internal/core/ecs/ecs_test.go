package ecs

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/ecsched/internal/core/event"
	"github.com/l1jgo/ecsched/internal/core/runner"
)

type position struct{ X, Y int }
type health struct{ HP, Max int }
type frozen struct{}

type damage struct{ Amount int }

func (d damage) Execute(w *World, target EntityID) {
	if h, ok := Get[health](w, target); ok {
		h.HP -= d.Amount
	}
}

func TestEntityPoolReusesIndicesWithNewGeneration(t *testing.T) {
	p := NewEntityPool()
	a := p.Create()
	require.False(t, a.IsZero())
	require.True(t, p.Destroy(a))
	assert.False(t, p.Destroy(a))

	b := p.Create()
	assert.Equal(t, a.Index(), b.Index())
	assert.Equal(t, a.Generation()+1, b.Generation())
	assert.False(t, p.Alive(a))
	assert.True(t, p.Alive(b))
	assert.Equal(t, 1, p.Len())
	assert.False(t, p.Alive(0))
}

func TestComponentAccess(t *testing.T) {
	w := NewWorld()
	id := w.CreateEntity()

	hp, err := Add(w, id, health{HP: 10, Max: 10})
	require.NoError(t, err)
	hp.HP = 7

	got, ok := Get[health](w, id)
	require.True(t, ok)
	assert.Equal(t, 7, got.HP)
	assert.True(t, Has[health](w, id))

	_, err = Require[position](w, id)
	var notFound *ComponentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, id, notFound.Entity)
	assert.ErrorIs(t, err, ErrComponentNotFound)

	Remove[health](w, id)
	assert.False(t, Has[health](w, id))

	w.Destroy(id)
	_, err = Add(w, id, position{})
	assert.ErrorIs(t, err, ErrEntityNotAlive)
}

func TestQueryMatchesSignatures(t *testing.T) {
	w := NewWorld()
	a := w.CreateEntity()
	b := w.CreateEntity()
	c := w.CreateEntity()
	_, _ = Add(w, a, position{})
	_, _ = Add(w, a, health{})
	_, _ = Add(w, b, position{})
	_, _ = Add(w, c, position{})
	_, _ = Add(w, c, health{})
	_, _ = Add(w, c, frozen{})

	q := w.Query(MatchAll(ComponentOf[position](), ComponentOf[health]()))
	assert.Equal(t, []EntityID{a, c}, q.Slots())

	q = w.Query(MatchAll(ComponentOf[position]()).Without(ComponentOf[frozen]()))
	assert.Equal(t, []EntityID{a, b}, q.Slots())

	assert.Equal(t, 3, w.Query(Matcher{}).Count())
	assert.True(t, w.Matches(c, MatchAll(ComponentOf[frozen]())))
}

func TestDestroyKeepsDenseOrderAndSendsRemoved(t *testing.T) {
	w := NewWorld()
	var added, removed []EntityID
	event.Listen(w.Dispatcher(), func(id EntityID, _ Added) bool {
		added = append(added, id)
		return false
	})
	event.Listen(w.Dispatcher(), func(id EntityID, _ Removed) bool {
		// Components are still readable while Removed is delivered.
		assert.True(t, Has[position](w, id))
		removed = append(removed, id)
		return false
	})

	ids := make([]EntityID, 4)
	for i := range ids {
		ids[i] = w.CreateEntity()
		_, _ = Add(w, ids[i], position{X: i})
	}
	w.MarkForDestruction(ids[1])
	w.MarkForDestruction(ids[1])
	assert.Equal(t, 1, w.FlushDestroyQueue())

	assert.Equal(t, ids, added)
	assert.Equal(t, []EntityID{ids[1]}, removed)
	assert.Equal(t, 3, w.Len())
	assert.ElementsMatch(t, []EntityID{ids[0], ids[2], ids[3]}, w.Query(Matcher{}).Slots())
	assert.False(t, Has[position](w, ids[1]))
}

func TestModifyExecutesThenSends(t *testing.T) {
	w := NewWorld()
	id := w.CreateEntity()
	_, _ = Add(w, id, health{HP: 10})

	var seen []int
	event.Listen(w.Dispatcher(), func(target EntityID, d damage) bool {
		h, _ := Get[health](w, target)
		seen = append(seen, h.HP)
		return false
	})
	w.Modify(id, damage{Amount: 3})
	assert.Equal(t, []int{7}, seen)
}

func TestAcquireAddonCreatesOnce(t *testing.T) {
	w := NewWorld()
	type counter struct{ n int }
	calls := 0
	create := func(*World) *counter { calls++; return &counter{} }

	a := AcquireAddon(w, create)
	b := AcquireAddon(w, create)
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)

	got, ok := Addon[*counter](w)
	require.True(t, ok)
	assert.Same(t, a, got)
}

func populate(t *testing.T, n int) *World {
	t.Helper()
	w := NewWorld()
	for i := 0; i < n; i++ {
		id := w.CreateEntity()
		_, err := Add(w, id, position{X: i, Y: i * 2})
		require.NoError(t, err)
		_, err = Add(w, id, health{HP: i})
		require.NoError(t, err)
	}
	return w
}

func TestRecordCoversEverySlotOnce(t *testing.T) {
	const n = 1000
	w := populate(t, n)
	pr := runner.NewParallelRunner(4)
	defer pr.Close()

	q := w.Query(MatchAll(ComponentOf[position]()))
	parallel, err := RecordSlices1(q, func(p *position) int { return p.X }, pr)
	require.NoError(t, err)
	sequential, err := RecordSlices1(q, func(p *position) int { return p.X }, runner.Sequential)
	require.NoError(t, err)

	require.Len(t, parallel, n)
	sort.Ints(parallel)
	for i, v := range parallel {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, parallel, sequential)
}

func TestRecordEntitiesMatchesQuery(t *testing.T) {
	w := populate(t, 64)
	pr := runner.NewParallelRunner(3)
	defer pr.Close()

	q := w.Query(Matcher{})
	ids, err := RecordEntities(q, pr)
	require.NoError(t, err)
	assert.ElementsMatch(t, q.Slots(), ids)
}

func TestRecordSlicesPassesStoragePointers(t *testing.T) {
	w := populate(t, 10)
	q := w.Query(MatchAll(ComponentOf[position](), ComponentOf[health]()))

	out, err := RecordSlices2(q, func(p *position, h *health) int {
		h.HP += 100
		return p.Y
	}, nil)
	require.NoError(t, err)
	assert.Len(t, out, 10)

	for _, id := range q.Slots() {
		h, _ := Get[health](w, id)
		assert.GreaterOrEqual(t, h.HP, 100)
	}
}

func TestRecordEmptyQueryDoesNotTouchRunner(t *testing.T) {
	w := NewWorld()
	pr := runner.NewParallelRunner(2)
	pr.Close()

	out, err := Record(w.Query(Matcher{}), func(EntityID) int { return 1 }, pr)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestRecordMissingComponentSurfacesError(t *testing.T) {
	w := populate(t, 20)
	pr := runner.NewParallelRunner(4)
	defer pr.Close()

	q := w.Query(Matcher{})
	_, err := RecordSlices3(q, func(*position, *health, *frozen) int { return 0 }, pr)
	require.Error(t, err)

	var notFound *ComponentNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, ComponentOf[frozen](), notFound.Component)

	_, err = RecordSlices1(q, func(*frozen) int { return 0 }, runner.Sequential)
	assert.ErrorIs(t, err, ErrComponentNotFound)
}

func TestEach2VisitsIntersection(t *testing.T) {
	w := populate(t, 5)
	extra := w.CreateEntity()
	_, _ = Add(w, extra, position{})

	n := 0
	Each2(w, func(_ EntityID, p *position, h *health) {
		assert.Equal(t, p.X, h.HP)
		n++
	})
	assert.Equal(t, 5, n)
}
