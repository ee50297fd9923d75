// Package scheduler runs a dependency graph of tasks once per tick.
//
// Nodes are created with a fixed predecessor set, so the graph is acyclic by
// construction. A tick runs every live node exactly once, each only after all
// of its predecessors finished in the same tick.
package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDisposed     = errors.New("scheduler: disposed")
	ErrNodeDisposed = errors.New("scheduler: node disposed")
	ErrForeignNode  = errors.New("scheduler: node belongs to another scheduler")
)

// Task is the body of a node. A returned error is reported by the tick but
// does not stop other nodes.
type Task func() error

// Node is a vertex of the task graph.
type Node struct {
	sched    *Scheduler
	seq      uint64
	name     string
	task     Task
	preds    []*Node
	succs    []*Node
	disposed bool
}

func (n *Node) Name() string { return n.name }

// Predecessors returns the live predecessors of n.
func (n *Node) Predecessors() []*Node {
	n.sched.mu.Lock()
	defer n.sched.mu.Unlock()
	return slices.Clone(n.preds)
}

// Disposed reports whether n was removed from its scheduler.
func (n *Node) Disposed() bool {
	n.sched.mu.Lock()
	defer n.sched.mu.Unlock()
	return n.disposed
}

// Dispose detaches n from its predecessors and successors. Successors keep
// running on later ticks, without the edge.
func (n *Node) Dispose() error {
	s := n.sched
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.disposed {
		return fmt.Errorf("dispose %s: %w", n.name, ErrNodeDisposed)
	}
	s.detach(n)
	s.log.Debug("node disposed", zap.String("node", n.name), zap.Int("nodes", len(s.nodes)))
	return nil
}

func (n *Node) String() string { return n.name }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for graph changes and tick failures.
func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// Scheduler owns the task graph. Graph changes are safe from any goroutine
// but must not race with a tick; ticks run one at a time.
type Scheduler struct {
	mu       sync.Mutex
	log      *zap.Logger
	nodes    []*Node
	nextSeq  uint64
	version  uint64
	disposed bool
	plan     *plan
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:   zap.NewNop(),
		nodes: make([]*Node, 0, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask adds a node running task after every node in preds.
func (s *Scheduler) CreateTask(name string, task Task, preds ...*Node) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, fmt.Errorf("create %s: %w", name, ErrDisposed)
	}
	for _, p := range preds {
		if p.sched != s {
			return nil, fmt.Errorf("create %s after %s: %w", name, p.name, ErrForeignNode)
		}
		if p.disposed {
			return nil, fmt.Errorf("create %s after %s: %w", name, p.name, ErrNodeDisposed)
		}
	}

	s.nextSeq++
	n := &Node{
		sched: s,
		seq:   s.nextSeq,
		name:  name,
		task:  task,
	}
	for _, p := range preds {
		if slices.Contains(n.preds, p) {
			continue
		}
		n.preds = append(n.preds, p)
		p.succs = append(p.succs, n)
	}
	s.nodes = append(s.nodes, n)
	s.version++
	s.log.Debug("node created",
		zap.String("node", name),
		zap.Int("predecessors", len(n.preds)),
		zap.Int("nodes", len(s.nodes)),
	)
	return n, nil
}

// CreateNode adds a join node with no body.
func (s *Scheduler) CreateNode(name string, preds ...*Node) (*Node, error) {
	return s.CreateTask(name, nil, preds...)
}

// NodeCount returns the number of live nodes.
func (s *Scheduler) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// Nodes returns the live nodes in registration order.
func (s *Scheduler) Nodes() []*Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.nodes)
}

// Dispose detaches every node. Later calls return ErrDisposed.
func (s *Scheduler) Dispose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return ErrDisposed
	}
	s.disposed = true
	for len(s.nodes) > 0 {
		s.detach(s.nodes[len(s.nodes)-1])
	}
	s.plan = nil
	return nil
}

// detach must be called with s.mu held.
func (s *Scheduler) detach(n *Node) {
	for _, p := range n.preds {
		p.succs = slices.DeleteFunc(p.succs, func(x *Node) bool { return x == n })
	}
	for _, c := range n.succs {
		c.preds = slices.DeleteFunc(c.preds, func(x *Node) bool { return x == n })
	}
	n.preds, n.succs = nil, nil
	n.disposed = true
	s.nodes = slices.DeleteFunc(s.nodes, func(x *Node) bool { return x == n })
	s.version++
}

// Tick runs every node once on the calling goroutine. Among ready nodes the
// earliest registered runs first. Node errors and panics are collected and
// returned together after the whole graph ran.
func (s *Scheduler) Tick() error {
	p, err := s.schedule()
	if err != nil {
		return err
	}
	indegree := slices.Clone(p.indegree)
	ready := slices.Clone(p.tier0)

	var errs error
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		errs = multierr.Append(errs, p.run(i))
		for _, d := range p.succs[i] {
			indegree[d]--
			if indegree[d] == 0 {
				// Indices follow registration order; keep ready sorted.
				at, _ := slices.BinarySearch(ready, d)
				ready = slices.Insert(ready, at, d)
			}
		}
	}
	s.report(errs)
	return errs
}

// TickConcurrent runs independent branches of the graph on separate
// goroutines, at most limit at a time (limit <= 0 means unbounded). Ordering
// between predecessors and successors is the same as for Tick.
func (s *Scheduler) TickConcurrent(limit int) error {
	p, err := s.schedule()
	if err != nil {
		return err
	}
	if len(p.nodes) == 0 {
		return nil
	}

	queue := make(chan int, len(p.nodes))
	current, next := p.indegrees()
	for _, i := range p.tier0 {
		queue <- i
	}

	var (
		g     errgroup.Group
		errMu sync.Mutex
		errs  error
	)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for range p.nodes {
		i := <-queue
		g.Go(func() error {
			// Keep going on failure so every successor still gets scheduled.
			if err := p.run(i); err != nil {
				errMu.Lock()
				errs = multierr.Append(errs, err)
				errMu.Unlock()
			}
			for _, d := range p.succs[i] {
				next[d].Add(1)
				if current[d].Add(-1) == 0 {
					queue <- d
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	s.report(errs)
	return errs
}

func (s *Scheduler) report(errs error) {
	if errs == nil {
		return
	}
	s.log.Warn("tick finished with failures",
		zap.Int("failures", len(multierr.Errors(errs))),
		zap.Error(errs),
	)
}

// schedule returns the current plan, rebuilding it after graph changes.
func (s *Scheduler) schedule() (*plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, ErrDisposed
	}
	if s.plan == nil || s.plan.version != s.version {
		s.plan = newPlan(s.nodes, s.version)
	}
	return s.plan, nil
}

// runNode invokes a node body, turning panics into errors.
func runNode(n *Node) (err error) {
	if n.task == nil {
		return nil
	}
	defer func() {
		if v := recover(); v != nil {
			err = eris.Errorf("node %s panicked: %v", n.name, v)
		}
	}()
	if err := n.task(); err != nil {
		return eris.Wrapf(err, "node %s failed", n.name)
	}
	return nil
}
