package system

import (
	"slices"

	"go.uber.org/multierr"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/scheduler"
	"github.com/l1jgo/ecsched/internal/core/typeid"
)

// Chain is an ordered, immutable list of system entries. Every method returns
// a new chain and leaves the receiver untouched, so chains can be shared and
// extended freely.
type Chain struct {
	entries []Entry
}

// NewChain returns a chain holding entries in order.
func NewChain(entries ...Entry) Chain {
	return Chain{entries: slices.Clone(entries)}
}

func (c Chain) Len() int { return len(c.entries) }

// Entries returns a copy of the chain's entries.
func (c Chain) Entries() []Entry { return slices.Clone(c.entries) }

// Contains reports whether an entry for id is in the chain.
func (c Chain) Contains(id typeid.ID) bool {
	return c.index(id) >= 0
}

func (c Chain) index(id typeid.ID) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.id == id })
}

func (c Chain) Add(e Entry) Chain {
	return Chain{entries: append(slices.Clip(c.entries), e)}
}

func (c Chain) Concat(other Chain) Chain {
	if len(other.entries) == 0 {
		return c
	}
	return Chain{entries: append(slices.Clip(c.entries), other.entries...)}
}

// Remove drops the first entry for id.
func (c Chain) Remove(id typeid.ID) Chain {
	i := c.index(id)
	if i < 0 {
		return c
	}
	return Chain{entries: slices.Delete(slices.Clone(c.entries), i, i+1)}
}

// RemoveAll drops every entry for id.
func (c Chain) RemoveAll(id typeid.ID) Chain {
	if !c.Contains(id) {
		return c
	}
	return Chain{entries: slices.DeleteFunc(slices.Clone(c.entries), func(e Entry) bool { return e.id == id })}
}

const (
	unvisited = iota
	visiting
	visited
)

// RegisterTo registers every system of the chain into sched, in an order
// honoring their After/Before declarations. Every system also runs after
// preds. Declarations may only reference systems of the same chain; those
// are checked before anything is registered.
//
// On a cycle every registration made by the call is disposed, newest first,
// and a *DependencyError is returned. On success one more node, depending on
// every system of the chain, is created: the returned handle's Node, which
// later chains can run after.
func (c Chain) RegisterTo(w *ecs.World, sched *scheduler.Scheduler, preds ...*scheduler.Node) (*ChainHandle, error) {
	order := make([]typeid.ID, 0, len(c.entries))
	byID := make(map[typeid.ID]Entry, len(c.entries))
	for _, e := range c.entries {
		if _, ok := byID[e.id]; ok {
			continue
		}
		byID[e.id] = e
		order = append(order, e.id)
	}

	deps := make(map[typeid.ID]Dependencies, len(order))
	for _, id := range order {
		d := byID[id].Dependencies()
		for _, ref := range slices.Concat(d.After, d.Before) {
			if ref == id {
				return nil, &DependencyError{System: id, Dependency: ref, Reason: ReasonSelf}
			}
			if _, ok := byID[ref]; !ok {
				return nil, &DependencyError{System: id, Dependency: ref, Reason: ReasonMissing}
			}
		}
		deps[id] = d
	}

	// A Before declaration is an After declaration on the other side.
	after := make(map[typeid.ID][]typeid.ID, len(order))
	for _, id := range order {
		after[id] = append(after[id], deps[id].After...)
		for _, succ := range deps[id].Before {
			after[succ] = append(after[succ], id)
		}
	}

	var (
		lib     = LibraryOf(w)
		state   = make(map[typeid.ID]int, len(order))
		nodes   = make(map[typeid.ID]*scheduler.Node, len(order))
		handles = make([]*Handle, 0, len(order))
		visit   func(id typeid.ID) error
	)
	visit = func(id typeid.ID) error {
		switch state[id] {
		case visiting:
			return &DependencyError{System: id, Reason: ReasonCycle}
		case visited:
			return nil
		}
		state[id] = visiting

		ps := make([]*scheduler.Node, 0, len(preds)+len(after[id]))
		for _, p := range preds {
			if p != nil {
				ps = append(ps, p)
			}
		}
		for _, dep := range after[id] {
			if err := visit(dep); err != nil {
				return err
			}
			ps = append(ps, nodes[dep])
		}

		h, err := lib.Register(sched, byID[id], ps...)
		if err != nil {
			return err
		}
		handles = append(handles, h)
		nodes[id] = h.Node()
		state[id] = visited
		return nil
	}

	rollback := func(err error) (*ChainHandle, error) {
		for i := len(handles) - 1; i >= 0; i-- {
			err = multierr.Append(err, handles[i].Dispose())
		}
		return nil, err
	}

	for _, id := range order {
		if err := visit(id); err != nil {
			return rollback(err)
		}
	}

	all := make([]*scheduler.Node, 0, len(handles))
	for _, h := range handles {
		all = append(all, h.Node())
	}
	node, err := sched.CreateNode("chain", all...)
	if err != nil {
		return rollback(err)
	}
	return &ChainHandle{node: node, handles: handles}, nil
}

// ChainHandle owns the registrations made by one RegisterTo call.
type ChainHandle struct {
	node     *scheduler.Node
	handles  []*Handle
	disposed bool
}

// Node completes once every system of the chain ran.
func (h *ChainHandle) Node() *scheduler.Node { return h.node }

// Handles returns the system handles in registration order.
func (h *ChainHandle) Handles() []*Handle { return slices.Clone(h.handles) }

// Dispose removes the chain node, then releases the system handles newest
// first. Errors from every step are returned together.
func (h *ChainHandle) Dispose() error {
	if h.disposed {
		return ErrHandleDisposed
	}
	h.disposed = true
	err := h.node.Dispose()
	for i := len(h.handles) - 1; i >= 0; i-- {
		err = multierr.Append(err, h.handles[i].Dispose())
	}
	return err
}
