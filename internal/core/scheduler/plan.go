package scheduler

import "sync/atomic"

// plan is the flattened graph used by ticks. It is rebuilt whenever the graph
// version changes.
type plan struct {
	version  uint64
	nodes    []*Node
	succs    [][]int
	indegree []int
	tier0    []int

	// indegree0 and indegree1 are double-buffered counters for concurrent
	// ticks. While one drains to zero the other refills, so neither needs
	// resetting between ticks.
	active    uint8
	indegree0 []atomic.Int32
	indegree1 []atomic.Int32
}

func newPlan(nodes []*Node, version uint64) *plan {
	p := &plan{
		version:   version,
		nodes:     make([]*Node, len(nodes)),
		succs:     make([][]int, len(nodes)),
		indegree:  make([]int, len(nodes)),
		indegree0: make([]atomic.Int32, len(nodes)),
		indegree1: make([]atomic.Int32, len(nodes)),
	}
	copy(p.nodes, nodes)

	index := make(map[*Node]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}
	for i, n := range nodes {
		for _, pred := range n.preds {
			from := index[pred]
			p.succs[from] = append(p.succs[from], i)
		}
		p.indegree[i] = len(n.preds)
		p.indegree0[i].Store(int32(len(n.preds))) //nolint:gosec // bounded by node count
		if len(n.preds) == 0 {
			p.tier0 = append(p.tier0, i)
		}
	}
	return p
}

// indegrees returns the counters for this tick and flips the active buffer.
func (p *plan) indegrees() (current, next []atomic.Int32) {
	first := p.active == 0
	p.active = 1 - p.active
	if first {
		return p.indegree0, p.indegree1
	}
	return p.indegree1, p.indegree0
}

func (p *plan) run(i int) error {
	return runNode(p.nodes[i])
}
