package framegraph

import (
	"errors"
	"strings"
	"testing"
)

type fakeResource struct {
	uid string
}

func (r fakeResource) UID() string { return r.uid }

func (r fakeResource) IsDependencyOf(other fakeResource) bool { return r.uid == other.uid }

type fakeBarrier struct {
	resource fakeResource
}

func (b fakeBarrier) Resource() fakeResource { return b.resource }

type fakeTask struct {
	name string
	in   []fakeResource
	out  []fakeResource
}

func (t fakeTask) Inputs() []fakeResource  { return t.in }
func (t fakeTask) Outputs() []fakeResource { return t.out }

func newFakeGraph() *TaskGraph[fakeResource, fakeBarrier, fakeTask] {
	return NewTaskGraph[fakeResource, fakeBarrier, fakeTask](
		func(r fakeResource) fakeBarrier { return fakeBarrier{resource: r} })
}

func res(uid string) fakeResource { return fakeResource{uid: uid} }

func mustAddTask(t *testing.T, g *TaskGraph[fakeResource, fakeBarrier, fakeTask], task fakeTask) NodeID {
	t.Helper()
	id, err := g.AddTask(task)
	if err != nil {
		t.Fatalf("AddTask(%s): %v", task.name, err)
	}
	return id
}

func TestAddTaskWiresDependencies(t *testing.T) {
	g := newFakeGraph()
	producer := mustAddTask(t, g, fakeTask{name: "producer", out: []fakeResource{res("a+")}})
	consumer := mustAddTask(t, g, fakeTask{name: "consumer", in: []fakeResource{res("a+")}})

	children := g.Children(producer)
	if len(children) != 1 || children[0] != consumer {
		t.Fatalf("producer children = %v, want [%d]", children, consumer)
	}
	parents := g.Parents(consumer)
	if len(parents) != 1 || parents[0] != producer {
		t.Fatalf("consumer parents = %v, want [%d]", parents, producer)
	}
	// Dependencies wire regardless of insertion order.
	late := mustAddTask(t, g, fakeTask{name: "late-producer", out: []fakeResource{res("b")}})
	early := mustAddTask(t, g, fakeTask{name: "early-consumer", in: []fakeResource{res("b")}})
	_ = early
	if children := g.Children(late); len(children) != 1 {
		t.Fatalf("late producer children = %v, want one edge", children)
	}
}

func TestAddTaskDetectsCycle(t *testing.T) {
	g := newFakeGraph()
	mustAddTask(t, g, fakeTask{name: "a", in: []fakeResource{res("x")}, out: []fakeResource{res("y")}})
	_, err := g.AddTask(fakeTask{name: "b", in: []fakeResource{res("y")}, out: []fakeResource{res("x")}})
	if !errors.Is(err, ErrGraphHasCycle) {
		t.Fatalf("AddTask closing a cycle: err = %v, want ErrGraphHasCycle", err)
	}
}

func TestThreeTaskCycle(t *testing.T) {
	g := newFakeGraph()
	mustAddTask(t, g, fakeTask{name: "a", in: []fakeResource{res("z")}, out: []fakeResource{res("x")}})
	mustAddTask(t, g, fakeTask{name: "b", in: []fakeResource{res("x")}, out: []fakeResource{res("y")}})
	_, err := g.AddTask(fakeTask{name: "c", in: []fakeResource{res("y")}, out: []fakeResource{res("z")}})
	if !errors.Is(err, ErrGraphHasCycle) {
		t.Fatalf("AddTask closing a three-task cycle: err = %v, want ErrGraphHasCycle", err)
	}
}

func TestSourcesInInsertionOrder(t *testing.T) {
	g := newFakeGraph()
	first := mustAddTask(t, g, fakeTask{name: "first", out: []fakeResource{res("a")}})
	second := mustAddTask(t, g, fakeTask{name: "second", out: []fakeResource{res("b")}})
	sink := mustAddTask(t, g, fakeTask{name: "sink", in: []fakeResource{res("a"), res("b")}})
	_ = sink

	sources := g.Sources()
	if len(sources) != 2 || sources[0] != first || sources[1] != second {
		t.Fatalf("Sources() = %v, want [%d %d]", sources, first, second)
	}
}

func TestCreateBarrierNodesSplitsEveryDependency(t *testing.T) {
	g := newFakeGraph()
	producer := mustAddTask(t, g, fakeTask{name: "producer", out: []fakeResource{res("a+")}})
	c1 := mustAddTask(t, g, fakeTask{name: "c1", in: []fakeResource{res("a+")}})
	c2 := mustAddTask(t, g, fakeTask{name: "c2", in: []fakeResource{res("a+")}})

	g.CreateBarrierNodes()

	// One barrier per consumer: 3 tasks + 2 barriers.
	if got := g.NumNodes(); got != 5 {
		t.Fatalf("NumNodes() = %d, want 5", got)
	}
	// Direct producer-consumer edges are replaced: every child of the
	// producer is now a barrier, and every parent of a consumer is a barrier.
	for _, child := range g.Children(producer) {
		if _, ok := g.Barrier(child); !ok {
			t.Errorf("producer child %d is not a barrier", child)
		}
	}
	for _, consumer := range []NodeID{c1, c2} {
		parents := g.Parents(consumer)
		if len(parents) != 1 {
			t.Fatalf("consumer %d parents = %v, want one barrier", consumer, parents)
		}
		barrier, ok := g.Barrier(parents[0])
		if !ok {
			t.Fatalf("consumer %d parent %d is not a barrier", consumer, parents[0])
		}
		if barrier.Resource().UID() != "a+" {
			t.Errorf("barrier resource = %q, want %q", barrier.Resource().UID(), "a+")
		}
	}
}

func TestCreateBarrierNodesSkipsUnconsumedOutputs(t *testing.T) {
	g := newFakeGraph()
	mustAddTask(t, g, fakeTask{name: "producer", out: []fakeResource{res("unused")}})
	g.CreateBarrierNodes()
	if got := g.NumNodes(); got != 1 {
		t.Fatalf("NumNodes() = %d, want 1 (no barrier for unconsumed output)", got)
	}
}

func TestRetiredNodesAreInvisible(t *testing.T) {
	g := newFakeGraph()
	producer := mustAddTask(t, g, fakeTask{name: "producer", out: []fakeResource{res("a")}})
	consumer := mustAddTask(t, g, fakeTask{name: "consumer", in: []fakeResource{res("a")}})

	g.retireNode(consumer)
	if _, ok := g.Task(consumer); ok {
		t.Error("retired node still resolves")
	}
	if children := g.Children(producer); len(children) != 0 {
		t.Errorf("retired node still has incoming edges: %v", children)
	}
	if got := g.NumNodes(); got != 1 {
		t.Errorf("NumNodes() = %d, want 1", got)
	}
	// Ids of remaining nodes are untouched.
	if task, ok := g.Task(producer); !ok || task.name != "producer" {
		t.Errorf("producer node id invalidated by retirement")
	}
}

func TestDotOutput(t *testing.T) {
	g := newFakeGraph()
	mustAddTask(t, g, fakeTask{name: "producer", out: []fakeResource{res("a")}})
	mustAddTask(t, g, fakeTask{name: "consumer", in: []fakeResource{res("a")}})
	g.CreateBarrierNodes()

	dot := g.Dot(
		func(task fakeTask) string { return task.name },
		func(b fakeBarrier) string { return "barrier " + b.resource.uid })
	for _, want := range []string{"digraph {", "producer", "consumer", "barrier a", "->"} {
		if !strings.Contains(dot, want) {
			t.Errorf("dot output missing %q:\n%s", want, dot)
		}
	}
}
