package framegraph

import (
	"fmt"
	"strings"
)

// Resource is a resource in a task graph, parametrized on its own concrete
// type so dependency checks stay fully typed.
type Resource[R any] interface {
	// UID returns the unique identifier of this resource version.
	UID() string
	// IsDependencyOf reports whether this resource, as a task input,
	// depends on the output resource other.
	IsDependencyOf(other R) bool
}

// Task is a unit of work in a task graph.
type Task[R any] interface {
	// Inputs returns the resources this task consumes.
	Inputs() []R
	// Outputs returns the resources this task produces.
	Outputs() []R
}

// Barrier is a synchronization point between a producer and one or more
// consumers of a resource.
type Barrier[R any] interface {
	// Resource returns the resource this barrier acts on, describing the
	// source (producer-side) state.
	Resource() R
}

// NodeID identifies a node in a task graph. Node ids are stable: nodes are
// stored in an append-only arena and are logically retired rather than
// removed, so an id handed out once stays valid for the graph's lifetime.
type NodeID int

type nodeKind uint8

const (
	nodeTask nodeKind = iota
	nodeBarrier
)

// halfEdge is one direction of a graph edge, stored in the adjacency list of
// the node at the other end. The label carries the uid of the resource that
// caused the dependency.
type halfEdge struct {
	other NodeID
	uid   string
}

type graphNode[R Resource[R], B Barrier[R], T Task[R]] struct {
	kind    nodeKind
	task    T
	barrier B
	out     []halfEdge
	in      []halfEdge
	retired bool
}

// TaskGraph is a directed dependency graph of tasks and barriers, used for
// automatic synchronization of resource accesses. Adding a task inserts
// dependency edges against every existing task that produces one of its
// inputs or consumes one of its outputs; CreateBarrierNodes then splits each
// producer-consumer edge with an explicit barrier node.
//
// The graph is built and traversed by a single goroutine; it performs no
// internal locking.
type TaskGraph[R Resource[R], B Barrier[R], T Task[R]] struct {
	nodes      []graphNode[R, B, T]
	newBarrier func(R) B
}

// NewTaskGraph creates an empty task graph. newBarrier constructs a barrier
// node over a produced resource; it is invoked during CreateBarrierNodes.
func NewTaskGraph[R Resource[R], B Barrier[R], T Task[R]](newBarrier func(R) B) *TaskGraph[R, B, T] {
	return &TaskGraph[R, B, T]{newBarrier: newBarrier}
}

// NumNodes returns the number of live nodes in the graph. This can be used
// as a metric of how complex the graph is.
func (g *TaskGraph[R, B, T]) NumNodes() int {
	n := 0
	for i := range g.nodes {
		if !g.nodes[i].retired {
			n++
		}
	}
	return n
}

// Task returns the task stored at node id, if id refers to a live task node.
func (g *TaskGraph[R, B, T]) Task(id NodeID) (T, bool) {
	var zero T
	if !g.valid(id) || g.nodes[id].kind != nodeTask {
		return zero, false
	}
	return g.nodes[id].task, true
}

// Barrier returns the barrier stored at node id, if id refers to a live
// barrier node.
func (g *TaskGraph[R, B, T]) Barrier(id NodeID) (B, bool) {
	var zero B
	if !g.valid(id) || g.nodes[id].kind != nodeBarrier {
		return zero, false
	}
	return g.nodes[id].barrier, true
}

func (g *TaskGraph[R, B, T]) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.nodes) && !g.nodes[id].retired
}

// Sources returns the live nodes with no incoming edges, in insertion order.
func (g *TaskGraph[R, B, T]) Sources() []NodeID {
	var sources []NodeID
	for i := range g.nodes {
		if !g.nodes[i].retired && len(g.nodes[i].in) == 0 {
			sources = append(sources, NodeID(i))
		}
	}
	return sources
}

// Children returns the targets of the outgoing edges of node id, in edge
// insertion order.
func (g *TaskGraph[R, B, T]) Children(id NodeID) []NodeID {
	out := make([]NodeID, 0, len(g.nodes[id].out))
	for _, e := range g.nodes[id].out {
		out = append(out, e.other)
	}
	return out
}

// Parents returns the sources of the incoming edges of node id.
func (g *TaskGraph[R, B, T]) Parents(id NodeID) []NodeID {
	in := make([]NodeID, 0, len(g.nodes[id].in))
	for _, e := range g.nodes[id].in {
		in = append(in, e.other)
	}
	return in
}

func (g *TaskGraph[R, B, T]) addTaskNode(task T) NodeID {
	g.nodes = append(g.nodes, graphNode[R, B, T]{kind: nodeTask, task: task})
	return NodeID(len(g.nodes) - 1)
}

func (g *TaskGraph[R, B, T]) addBarrierNode(b B) NodeID {
	g.nodes = append(g.nodes, graphNode[R, B, T]{kind: nodeBarrier, barrier: b})
	return NodeID(len(g.nodes) - 1)
}

// updateEdge inserts an edge from -> to labeled uid, or relabels the edge if
// one already exists between the pair.
func (g *TaskGraph[R, B, T]) updateEdge(from, to NodeID, uid string) {
	for i, e := range g.nodes[from].out {
		if e.other == to {
			g.nodes[from].out[i].uid = uid
			for j, in := range g.nodes[to].in {
				if in.other == from {
					g.nodes[to].in[j].uid = uid
				}
			}
			return
		}
	}
	g.nodes[from].out = append(g.nodes[from].out, halfEdge{other: to, uid: uid})
	g.nodes[to].in = append(g.nodes[to].in, halfEdge{other: from, uid: uid})
}

// removeEdge deletes the edge from -> to if present.
func (g *TaskGraph[R, B, T]) removeEdge(from, to NodeID) {
	g.nodes[from].out = deleteHalfEdge(g.nodes[from].out, to)
	g.nodes[to].in = deleteHalfEdge(g.nodes[to].in, from)
}

func deleteHalfEdge(edges []halfEdge, other NodeID) []halfEdge {
	for i, e := range edges {
		if e.other == other {
			return append(edges[:i], edges[i+1:]...)
		}
	}
	return edges
}

// retireNode logically removes a node: it is skipped by all queries and
// traversals, and all its edges are detached. Node ids of other nodes are
// unaffected.
func (g *TaskGraph[R, B, T]) retireNode(id NodeID) {
	for _, e := range g.nodes[id].out {
		g.nodes[e.other].in = deleteHalfEdge(g.nodes[e.other].in, id)
	}
	for _, e := range g.nodes[id].in {
		g.nodes[e.other].out = deleteHalfEdge(g.nodes[e.other].out, id)
	}
	g.nodes[id].out = nil
	g.nodes[id].in = nil
	g.nodes[id].retired = true
}

// firstDependency returns the input of consumer that matches an output of
// producer, if any.
func firstDependency[R Resource[R]](consumerInputs, producerOutputs []R) (R, bool) {
	for _, input := range consumerInputs {
		for _, output := range producerOutputs {
			if input.IsDependencyOf(output) {
				return input, true
			}
		}
	}
	var zero R
	return zero, false
}

// AddTask inserts a task node and wires dependency edges in both directions
// against every existing task node: an edge X -> Y means Y consumes an
// output of X. If inserting the task closes a cycle, AddTask returns
// [ErrGraphHasCycle]; the node and its edges remain in the graph, so a graph
// that returned this error must be rebuilt from scratch.
func (g *TaskGraph[R, B, T]) AddTask(task T) (NodeID, error) {
	node := g.addTaskNode(task)
	for i := range g.nodes {
		other := NodeID(i)
		if other == node || g.nodes[i].retired || g.nodes[i].kind != nodeTask {
			continue
		}
		// New task depends on the existing one.
		if dep, ok := firstDependency(task.Inputs(), g.nodes[other].task.Outputs()); ok {
			g.updateEdge(other, node, dep.UID())
		}
		// Existing task depends on the new one. No else here: cycles are
		// detected and reported below rather than silently dropped.
		if dep, ok := firstDependency(g.nodes[other].task.Inputs(), task.Outputs()); ok {
			g.updateEdge(node, other, dep.UID())
		}
	}
	if g.hasCycle() {
		return node, ErrGraphHasCycle
	}
	return node, nil
}

// hasCycle reports whether the live graph contains a directed cycle,
// using an iterative three-color depth-first search.
func (g *TaskGraph[R, B, T]) hasCycle() bool {
	const (
		white = 0 // unvisited
		gray  = 1 // on the DFS stack
		black = 2 // fully explored
	)
	color := make([]uint8, len(g.nodes))

	for start := range g.nodes {
		if g.nodes[start].retired || color[start] != white {
			continue
		}
		type frame struct {
			node NodeID
			next int
		}
		stack := []frame{{node: NodeID(start)}}
		color[start] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			edges := g.nodes[top.node].out
			if top.next < len(edges) {
				child := edges[top.next].other
				top.next++
				switch color[child] {
				case gray:
					return true
				case white:
					color[child] = gray
					stack = append(stack, frame{node: child})
				}
				continue
			}
			color[top.node] = black
			stack = stack[:len(stack)-1]
		}
	}
	return false
}

// CreateBarrierNodes splits every producer-consumer dependency with a
// barrier node. For each task node P and each output resource of P that has
// direct consumers, one barrier is inserted per consumer Q, replacing the
// direct edge P -> Q with P -> barrier -> Q. Resources with no consumers
// need no synchronization and are skipped.
//
// This deliberately over-inserts: one barrier per consumer is the maximal
// correct set. Equivalent barriers are merged afterwards, once their
// destination usages are known.
func (g *TaskGraph[R, B, T]) CreateBarrierNodes() {
	numTasks := len(g.nodes)
	for i := 0; i < numTasks; i++ {
		node := NodeID(i)
		if g.nodes[i].retired || g.nodes[i].kind != nodeTask {
			continue
		}
		for _, resource := range g.nodes[i].task.Outputs() {
			var consumers []NodeID
			for j := 0; j < numTasks; j++ {
				if g.nodes[j].retired || g.nodes[j].kind != nodeTask {
					continue
				}
				for _, input := range g.nodes[j].task.Inputs() {
					if input.IsDependencyOf(resource) {
						consumers = append(consumers, NodeID(j))
						break
					}
				}
			}
			if len(consumers) == 0 {
				continue
			}
			for _, consumer := range consumers {
				barrier := g.addBarrierNode(g.newBarrier(resource))
				g.updateEdge(node, barrier, resource.UID())
				g.updateEdge(barrier, consumer, resource.UID())
				g.removeEdge(node, consumer)
			}
		}
	}
}

// Dot writes the graph in graphviz dot format, for debugging and external
// visualization. taskLabel and barrierLabel render node labels.
func (g *TaskGraph[R, B, T]) Dot(taskLabel func(T) string, barrierLabel func(B) string) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	for i := range g.nodes {
		if g.nodes[i].retired {
			continue
		}
		switch g.nodes[i].kind {
		case nodeTask:
			fmt.Fprintf(&sb, "    %d [ label = %q style = filled fillcolor = \"#5e6df7\" ]\n",
				i, taskLabel(g.nodes[i].task))
		case nodeBarrier:
			fmt.Fprintf(&sb, "    %d [ label = %q style = filled fillcolor = \"#f75e70\" shape = box ]\n",
				i, barrierLabel(g.nodes[i].barrier))
		}
	}
	for i := range g.nodes {
		if g.nodes[i].retired {
			continue
		}
		for _, e := range g.nodes[i].out {
			fmt.Fprintf(&sb, "    %d -> %d [ label = %q ]\n", i, e.other, e.uid)
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}
