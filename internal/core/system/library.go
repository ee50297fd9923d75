package system

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/l1jgo/ecsched/internal/core/ecs"
	"github.com/l1jgo/ecsched/internal/core/event"
	"github.com/l1jgo/ecsched/internal/core/scheduler"
	"github.com/l1jgo/ecsched/internal/core/typeid"
)

// Library is the per-world registry of system instances. For every system
// type it keeps at most one instance and one node per scheduler, shared by
// all handles that registered it.
type Library struct {
	world *ecs.World
	log   *zap.Logger

	mu    sync.Mutex
	slots map[typeid.ID]*Slot
}

// LibraryOf returns the library of w, creating it on first use.
func LibraryOf(w *ecs.World) *Library {
	return ecs.AcquireAddon(w, newLibrary)
}

func newLibrary(w *ecs.World) *Library {
	return &Library{
		world: w,
		log:   zap.NewNop(),
		slots: make(map[typeid.ID]*Slot),
	}
}

// SetLogger sets the logger used for registrations.
func (l *Library) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	l.mu.Lock()
	l.log = log.With(zap.Stringer("world", l.world.ID()))
	l.mu.Unlock()
}

// Slot holds the registrations of one system type. Its state is guarded by
// the owning library's lock.
type Slot struct {
	lib       *Library
	id        typeid.ID
	instances map[*scheduler.Scheduler]*instance
	building  map[*scheduler.Scheduler]bool
}

func (s *Slot) ID() typeid.ID { return s.id }

func (s *Slot) lookup(sched *scheduler.Scheduler) (*instance, bool) {
	s.lib.mu.Lock()
	defer s.lib.mu.Unlock()
	in, ok := s.instances[sched]
	return in, ok
}

// Instance returns the system registered in sched.
func (s *Slot) Instance(sched *scheduler.Scheduler) (System, bool) {
	in, ok := s.lookup(sched)
	if !ok {
		return nil, false
	}
	return in.system, true
}

// Node returns the node of the system in sched.
func (s *Slot) Node(sched *scheduler.Scheduler) (*scheduler.Node, bool) {
	in, ok := s.lookup(sched)
	if !ok {
		return nil, false
	}
	return in.node, true
}

// Refs returns the number of live handles for the system in sched.
func (s *Slot) Refs(sched *scheduler.Scheduler) int {
	s.lib.mu.Lock()
	defer s.lib.mu.Unlock()
	if in, ok := s.instances[sched]; ok {
		return in.refs
	}
	return 0
}

// Acquire returns the slot of id, creating it on first access.
func (l *Library) Acquire(id typeid.ID) *Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquire(id)
}

func (l *Library) acquire(id typeid.ID) *Slot {
	s, ok := l.slots[id]
	if !ok {
		s = &Slot{
			lib:       l,
			id:        id,
			instances: make(map[*scheduler.Scheduler]*instance),
			building:  make(map[*scheduler.Scheduler]bool),
		}
		l.slots[id] = s
	}
	return s
}

// Register adds the system built by e to sched after preds. A system type
// already registered in sched shares its instance and node with the new
// handle, and preds are ignored; the ones its node does not already wait on
// are logged. A system reached again while its own children are being
// registered is a cycle.
func (l *Library) Register(sched *scheduler.Scheduler, e Entry, preds ...*scheduler.Node) (*Handle, error) {
	l.mu.Lock()
	slot := l.acquire(e.id)
	log := l.log
	if in, ok := slot.instances[sched]; ok {
		in.refs++
		l.mu.Unlock()
		if dropped := missingPreds(in.node, preds); len(dropped) > 0 {
			log.Warn("system already registered, predecessors ignored",
				zap.Stringer("system", e.id),
				zap.Strings("dropped", dropped),
			)
		}
		return &Handle{lib: l, slot: slot, sched: sched, inst: in}, nil
	}
	if slot.building[sched] {
		l.mu.Unlock()
		return nil, &DependencyError{System: e.id, Reason: ReasonCycle}
	}
	slot.building[sched] = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(slot.building, sched)
		l.mu.Unlock()
	}()

	sys, err := build(e)
	if err != nil {
		return nil, err
	}
	in := &instance{
		world:  l.world,
		system: sys,
		desc:   sys.Descriptor(),
		refs:   1,
	}
	in.before, _ = sys.(BeforeExecuter)
	in.after, _ = sys.(AfterExecuter)

	in.node, err = sched.CreateTask(e.id.String(), in.run, preds...)
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", e.id, err)
	}
	if len(in.desc.Trigger) > 0 {
		in.listen()
	}
	if in.desc.Children.Len() > 0 {
		in.children, err = in.desc.Children.RegisterTo(l.world, sched, in.node)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("register children of %s: %w", e.id, err), in.teardown())
		}
	}

	l.mu.Lock()
	slot.instances[sched] = in
	l.mu.Unlock()
	log.Debug("system registered",
		zap.Stringer("system", e.id),
		zap.Int("triggers", len(in.desc.Trigger)),
		zap.Bool("parallel", in.desc.Parallel),
	)
	return &Handle{lib: l, slot: slot, sched: sched, inst: in}, nil
}

// missingPreds names the nodes of preds that node does not wait on.
func missingPreds(node *scheduler.Node, preds []*scheduler.Node) []string {
	have := node.Predecessors()
	var names []string
	for _, p := range preds {
		if p != nil && !slices.Contains(have, p) {
			names = append(names, p.Name())
		}
	}
	return names
}

// build creates the system instance, turning a panicking constructor into an
// error.
func build(e Entry) (sys System, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("create %s: panic: %v", e.id, v)
		}
	}()
	if e.create == nil {
		return nil, fmt.Errorf("create %s: no constructor", e.id)
	}
	sys = e.create()
	if sys == nil {
		return nil, fmt.Errorf("create %s: constructor returned nil", e.id)
	}
	return sys, nil
}

func (l *Library) release(h *Handle) error {
	l.mu.Lock()
	h.inst.refs--
	if h.inst.refs > 0 {
		l.mu.Unlock()
		return nil
	}
	delete(h.slot.instances, h.sched)
	log := l.log
	l.mu.Unlock()

	err := h.inst.teardown()
	log.Debug("system unregistered", zap.Stringer("system", h.slot.id), zap.Error(err))
	return err
}

// instance is one system living in one scheduler.
type instance struct {
	world    *ecs.World
	system   System
	desc     Descriptor
	before   BeforeExecuter
	after    AfterExecuter
	node     *scheduler.Node
	refs     int
	pending  *event.Queue[ecs.EntityID]
	cancel   []func()
	children *ChainHandle
}

func (in *instance) listen() {
	in.pending = new(event.Queue[ecs.EntityID])
	d := in.world.Dispatcher()
	for _, t := range in.desc.Trigger {
		in.cancel = append(in.cancel, d.ListenType(t, func(id ecs.EntityID, _ any) bool {
			in.pending.Push(id)
			return false
		}))
	}
}

// run is the node body executed once per tick.
func (in *instance) run() error {
	w := in.world
	if in.before != nil {
		in.before.BeforeExecute(w)
	}
	err := in.execute(w)
	if in.after != nil {
		in.after.AfterExecute(w)
	}
	return err
}

func (in *instance) execute(w *ecs.World) error {
	var q *ecs.Query
	if in.pending != nil {
		ids := in.pending.Swap()
		if len(ids) == 0 {
			return nil
		}
		q = w.Subset(in.desc.Matcher, ids)
	} else {
		q = w.Query(in.desc.Matcher)
	}

	if in.desc.Parallel {
		return q.Handle(w.Runner(), func(slots []ecs.EntityID) {
			for _, id := range slots {
				in.system.Execute(w, id)
			}
		})
	}
	for _, id := range q.Slots() {
		in.system.Execute(w, id)
	}
	return nil
}

// teardown stops listening, disposes children, the node and the system, in
// that order.
func (in *instance) teardown() error {
	for _, cancel := range in.cancel {
		cancel()
	}
	in.cancel = nil

	var err error
	if in.children != nil {
		err = multierr.Append(err, in.children.Dispose())
	}
	err = multierr.Append(err, in.node.Dispose())
	if d, ok := in.system.(Disposer); ok {
		err = multierr.Append(err, d.Dispose(in.world))
	}
	return err
}

// Handle owns one registration of a system. Disposing the last handle of a
// (system, scheduler) pair removes its node.
type Handle struct {
	lib   *Library
	slot  *Slot
	sched *scheduler.Scheduler
	inst  *instance

	once sync.Once
}

func (h *Handle) ID() typeid.ID                   { return h.slot.id }
func (h *Handle) System() System                  { return h.inst.system }
func (h *Handle) Node() *scheduler.Node           { return h.inst.node }
func (h *Handle) Scheduler() *scheduler.Scheduler { return h.sched }

// Dispose releases the registration. Later calls return ErrHandleDisposed.
func (h *Handle) Dispose() error {
	err := ErrHandleDisposed
	h.once.Do(func() {
		err = h.lib.release(h)
	})
	return err
}
