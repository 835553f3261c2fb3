// Package domain contains the core build model: tools, commands, jobs, their
// fingerprints and the job graph the scheduler executes.
package domain

import (
	"iter"
	"maps"
	"slices"

	"go.trai.ch/zerr"
)

// Node is a job in the flattened graph, keyed by its fingerprint.
type Node struct {
	fingerprint Fingerprint
	job         *Job
	inputs      []Fingerprint
}

// Fingerprint returns the node's identity.
func (n *Node) Fingerprint() Fingerprint { return n.fingerprint }

// Job returns the job the node was created from.
func (n *Node) Job() *Job { return n.job }

// Inputs returns the fingerprints of the node's direct dependencies.
func (n *Node) Inputs() []Fingerprint { return slices.Clone(n.inputs) }

// String renders "<fingerprint> (<command preview>)".
func (n *Node) String() string {
	return n.fingerprint.String() + " (" + n.job.String() + ")"
}

// Graph is a DAG of jobs deduplicated by fingerprint.
type Graph struct {
	nodes      map[Fingerprint]*Node
	dependents map[Fingerprint][]Fingerprint
	owners     map[string]Fingerprint
	roots      []Fingerprint
	order      []Fingerprint
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[Fingerprint]*Node),
		dependents: make(map[Fingerprint][]Fingerprint),
		owners:     make(map[string]Fingerprint),
	}
}

// AddNode inserts job under fp with edges to inputs. Adding a fingerprint that
// is already present is a no-op and reports false. It fails with an
// OutputCollisionError when another node already owns one of the job's outputs.
func (g *Graph) AddNode(fp Fingerprint, job *Job, inputs []Fingerprint) (bool, error) {
	if _, exists := g.nodes[fp]; exists {
		return false, nil
	}

	node := &Node{fingerprint: fp, job: job}
	for _, in := range inputs {
		if !slices.Contains(node.inputs, in) {
			node.inputs = append(node.inputs, in)
		}
	}

	for _, out := range job.outputs {
		if owner, taken := g.owners[out]; taken {
			return false, &OutputCollisionError{
				Path:   out,
				First:  g.nodes[owner].String(),
				Second: node.String(),
			}
		}
	}
	for _, out := range job.outputs {
		g.owners[out] = fp
	}

	g.nodes[fp] = node
	for _, in := range node.inputs {
		g.dependents[in] = append(g.dependents[in], fp)
	}
	g.order = nil
	return true, nil
}

// AddRoot marks fp as a requested build target.
func (g *Graph) AddRoot(fp Fingerprint) {
	if !slices.Contains(g.roots, fp) {
		g.roots = append(g.roots, fp)
	}
}

// Seal validates edges and computes the topological order with Kahn's
// algorithm. Nodes that become ready together are ordered by fingerprint so
// the order is deterministic.
func (g *Graph) Seal() error {
	inDegree := make(map[Fingerprint]int, len(g.nodes))
	for fp, node := range g.nodes {
		for _, in := range node.inputs {
			if _, ok := g.nodes[in]; !ok {
				return zerr.With(zerr.With(zerr.Wrap(ErrMissingDependency, "graph is not closed"), "job", node.String()), "input", in.String())
			}
		}
		inDegree[fp] = len(node.inputs)
	}

	var ready []Fingerprint
	for fp, d := range inDegree {
		if d == 0 {
			ready = append(ready, fp)
		}
	}
	slices.Sort(ready)

	order := make([]Fingerprint, 0, len(g.nodes))
	for len(ready) > 0 {
		fp := ready[0]
		ready = ready[1:]
		order = append(order, fp)

		var released []Fingerprint
		for _, dep := range g.dependents[fp] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				released = append(released, dep)
			}
		}
		slices.Sort(released)
		ready = append(ready, released...)
	}

	if len(order) != len(g.nodes) {
		var stuck []string
		for _, fp := range slices.Sorted(maps.Keys(inDegree)) {
			if inDegree[fp] > 0 {
				stuck = append(stuck, g.nodes[fp].String())
			}
		}
		return &CycleError{Jobs: stuck}
	}

	g.order = order
	return nil
}

// Len returns the number of distinct jobs.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node for fp.
func (g *Graph) Node(fp Fingerprint) (*Node, bool) {
	n, ok := g.nodes[fp]
	return n, ok
}

// Roots returns the requested build targets in the order they were added.
func (g *Graph) Roots() []Fingerprint { return slices.Clone(g.roots) }

// Dependents returns the nodes that list fp as a direct input.
func (g *Graph) Dependents(fp Fingerprint) []Fingerprint {
	return slices.Clone(g.dependents[fp])
}

// Owner returns the fingerprint of the node declaring output path p.
func (g *Graph) Owner(p string) (Fingerprint, bool) {
	fp, ok := g.owners[p]
	return fp, ok
}

// Order returns the topological order computed by Seal, inputs first.
func (g *Graph) Order() []Fingerprint { return slices.Clone(g.order) }

// Downstream returns every node that transitively depends on fp, excluding fp.
func (g *Graph) Downstream(fp Fingerprint) []Fingerprint {
	seen := map[Fingerprint]bool{fp: true}
	var out []Fingerprint
	queue := []Fingerprint{fp}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[cur] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// Walk returns an iterator that yields nodes in topological order.
// It assumes Seal has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, fp := range g.order {
			if !yield(g.nodes[fp]) {
				return
			}
		}
	}
}
