package framegraph

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// sourceNodeName identifies the synthetic source node injected into every
// pass graph. It produces all resources that have no in-frame producer and
// anchors synchronization against the previous frame.
const sourceNodeName = "_source"

// PassResourceBarrier is a GPU barrier in a pass graph. It translates
// directly to a pipeline barrier command during recording.
type PassResourceBarrier struct {
	resource  PassResource
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
}

// newPassResourceBarrier creates a barrier over a produced resource. Only
// the source side is known at creation; the destination side is filled in
// during the merge phase, once the consumers are known.
func newPassResourceBarrier(resource PassResource) PassResourceBarrier {
	return PassResourceBarrier{
		resource:  resource,
		SrcAccess: resource.Usage.Access(),
		SrcStage:  resource.Stage,
	}
}

// Resource returns the resource this barrier acts on, describing the source
// (producer-side) state.
func (b PassResourceBarrier) Resource() PassResource { return b.resource }

// String renders the barrier for graph visualization.
func (b PassResourceBarrier) String() string {
	return fmt.Sprintf("%s (access %#x => %#x, stage %#x => %#x)",
		b.resource.UID(), b.SrcAccess, b.DstAccess, b.SrcStage, b.DstStage)
}

// PassNode is a pass stored in the graph: a render pass, compute pass or
// other work item.
type PassNode struct {
	name         string
	inputs       []PassResource
	outputs      []PassResource
	execute      PassFunc
	isRenderPass bool
}

// Name returns the pass name.
func (n *PassNode) Name() string { return n.name }

// Inputs returns the resources this pass consumes.
func (n *PassNode) Inputs() []PassResource { return n.inputs }

// Outputs returns the resources this pass produces.
func (n *PassNode) Outputs() []PassResource { return n.outputs }

type lastUsage struct {
	version int
	stage   vk.PipelineStageFlags
}

// PassGraph is a dependency graph of passes over a single queue. Passes are
// declared with [PassBuilder], added with AddPass, and the finished graph is
// turned into a recordable [BuiltPassGraph] by Build.
//
// A PassGraph is exclusively owned by a single goroutine during build and
// recording; it performs no internal locking.
type PassGraph struct {
	graph  *TaskGraph[PassResource, PassResourceBarrier, *PassNode]
	source NodeID

	swapchain    *VirtualResource
	lastUsages   map[string]lastUsage
	producedUIDs map[string]string // resource uid -> producing pass name

	built bool
}

// PassGraphOption configures a PassGraph during creation.
type PassGraphOption func(*PassGraph)

// WithSwapchain declares the virtual resource that will be presented. The
// swapchain resource needs special synchronization at the start of the
// frame: its first use must wait on the previous frame's color attachment
// output stage.
func WithSwapchain(resource VirtualResource) PassGraphOption {
	return func(g *PassGraph) {
		r := resource
		g.swapchain = &r
	}
}

// NewPassGraph creates an empty pass graph. If the graph renders to a
// swapchain, pass [WithSwapchain] so presentation is synchronized correctly.
func NewPassGraph(opts ...PassGraphOption) *PassGraph {
	g := &PassGraph{
		graph:        NewTaskGraph[PassResource, PassResourceBarrier, *PassNode](newPassResourceBarrier),
		lastUsages:   make(map[string]lastUsage),
		producedUIDs: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	// The synthetic source node produces all initial inputs and is used for
	// start-of-frame synchronization. It is always the first node, so its id
	// stays stable: nodes are only ever retired, never renumbered.
	source, err := g.graph.AddTask(&PassNode{name: sourceNodeName})
	if err != nil {
		// A single node cannot form a cycle.
		panic("framegraph: " + err.Error())
	}
	g.source = source
	return g
}

// TaskGraph returns the underlying graph structure, useful for creating
// debug visualizations.
func (g *PassGraph) TaskGraph() *TaskGraph[PassResource, PassResourceBarrier, *PassNode] {
	return g.graph
}

// NumNodes returns the total number of nodes in the graph, including the
// synthetic source node and any barrier nodes.
func (g *PassGraph) NumNodes() int { return g.graph.NumNodes() }

// Dot returns the graph in graphviz dot format.
func (g *PassGraph) Dot() string {
	return g.graph.Dot(
		func(t *PassNode) string { return "Task: " + t.name },
		PassResourceBarrier.String,
	)
}

// AddPass adds a pass to the graph. Passes are obtained from a
// [PassBuilder].
//
// AddPass fails with [ErrGraphHasCycle] if the pass closes a dependency
// cycle, and with [ErrIllegalTaskGraph] if the pass produces a resource
// version that another pass already produces. In both cases the graph is
// left in an unusable state and must be rebuilt from scratch.
func (g *PassGraph) AddPass(pass *Pass) error {
	if g.built {
		return fmt.Errorf("framegraph: cannot add pass %q to a built graph", pass.name)
	}
	for _, output := range pass.outputs {
		uid := output.UID()
		if producer, ok := g.producedUIDs[uid]; ok {
			return fmt.Errorf("%w: %q is produced by both %q and %q",
				ErrIllegalTaskGraph, uid, producer, pass.name)
		}
	}

	// Every source input (no in-frame producer) becomes an output of the
	// synthetic source node. Its pipeline stage is resolved in Build, once
	// the last usage within the frame is known.
	sourceTask, ok := g.graph.Task(g.source)
	if !ok {
		return ErrNodeNotFound
	}
	for _, input := range pass.inputs {
		if !input.Resource.IsSource() {
			continue
		}
		if g.sourceProduces(sourceTask, input.Resource) {
			continue
		}
		sourceTask.outputs = append(sourceTask.outputs, PassResource{
			Usage:    ResourceUsage{Kind: UsageNothing},
			Resource: input.Resource,
			Layout:   vk.ImageLayoutUndefined,
		})
	}

	for _, input := range pass.inputs {
		g.updateLastUsage(input.Resource, input.Stage)
	}

	if _, err := g.graph.AddTask(&PassNode{
		name:         pass.name,
		inputs:       pass.inputs,
		outputs:      pass.outputs,
		execute:      pass.execute,
		isRenderPass: pass.isRenderPass,
	}); err != nil {
		return fmt.Errorf("adding pass %q: %w", pass.name, err)
	}
	for _, output := range pass.outputs {
		g.producedUIDs[output.UID()] = pass.name
	}
	return nil
}

func (g *PassGraph) sourceProduces(source *PassNode, resource VirtualResource) bool {
	for _, output := range source.outputs {
		if output.Resource.UID() == resource.UID() {
			return true
		}
	}
	return false
}

func (g *PassGraph) updateLastUsage(resource VirtualResource, stage vk.PipelineStageFlags) {
	name := resource.Name()
	if last, ok := g.lastUsages[name]; ok && resource.Version() < last.version {
		return
	}
	g.lastUsages[name] = lastUsage{version: resource.Version(), stage: stage}
}

// BuiltPassGraph is a completely built pass graph, ready for recording.
type BuiltPassGraph struct {
	*PassGraph
}

// Build finalizes the graph so it can be recorded into a command buffer:
// source-node stages are resolved for cross-frame synchronization, barrier
// nodes are inserted between producers and consumers, and equivalent
// barriers are merged.
//
// Build fails with [ErrIllegalTaskGraph] if two consumers of one produced
// resource version require incompatible write usages. Build is one-shot; the
// PassGraph must not be reused after it.
func (g *PassGraph) Build() (*BuiltPassGraph, error) {
	if g.built {
		return nil, fmt.Errorf("framegraph: graph already built")
	}
	g.built = true
	if err := g.setSourceStages(); err != nil {
		return nil, err
	}
	g.graph.CreateBarrierNodes()
	if err := g.mergeIdenticalBarriers(); err != nil {
		return nil, err
	}
	Logger().Debug("framegraph: built pass graph",
		"nodes", g.graph.NumNodes(),
		"sources", len(g.graph.Sources()))
	return &BuiltPassGraph{PassGraph: g}, nil
}

// setSourceStages resolves the pipeline stage of every source-node output to
// the last usage of that resource in the frame, so the inserted barriers
// synchronize against the previous frame's final use. The swapchain resource
// is special: presentation semantics require the color attachment output
// stage.
func (g *PassGraph) setSourceStages() error {
	source, ok := g.graph.Task(g.source)
	if !ok {
		return ErrNodeNotFound
	}
	for i := range source.outputs {
		output := &source.outputs[i]
		if g.swapchain != nil && output.Resource.IsAssociatedWith(*g.swapchain) {
			output.Stage = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
			continue
		}
		last, ok := g.lastUsages[output.Resource.Name()]
		if !ok {
			// Source outputs are only registered from pass inputs, which
			// always record a last usage first.
			return fmt.Errorf("%w: no recorded usage for %q",
				ErrNodeNotFound, output.Resource.Name())
		}
		output.Stage = last.stage
	}
	return nil
}

// barrierDstResource returns the resource state on the consumer side of a
// barrier. After the merge phase every outgoing edge of a barrier carries
// the same usage, so the first edge determines it.
func (g *PassGraph) barrierDstResource(id NodeID) (PassResource, error) {
	barrier, ok := g.graph.Barrier(id)
	if !ok {
		return PassResource{}, ErrNodeNotFound
	}
	children := g.graph.Children(id)
	if len(children) == 0 {
		return PassResource{}, ErrNodeNotFound
	}
	// A barrier's outgoing edge always points to a task.
	task, ok := g.graph.Task(children[0])
	if !ok {
		return PassResource{}, ErrNodeNotFound
	}
	uid := barrier.resource.UID()
	for _, input := range task.inputs {
		if input.UID() == uid {
			return input, nil
		}
	}
	return PassResource{}, ErrNodeNotFound
}

// mergeIdenticalBarriers merges barriers over the same resource version with
// compatible destination usages into one, computing the union of destination
// stage and access masks. Two consumers with divergent write usages on one
// produced version make the graph ambiguous and fail the build.
func (g *PassGraph) mergeIdenticalBarriers() error {
	type dstFlags struct {
		stage  vk.PipelineStageFlags
		access vk.AccessFlags
		usage  ResourceUsage
	}
	// Barrier node ids in ascending (insertion) order, grouped by uid.
	primaries := make(map[string]NodeID)
	flags := make(map[NodeID]dstFlags)
	merged := 0

	for i := range g.graph.nodes {
		id := NodeID(i)
		if g.graph.nodes[i].retired || g.graph.nodes[i].kind != nodeBarrier {
			continue
		}
		dst, err := g.barrierDstResource(id)
		if err != nil {
			return err
		}
		uid := g.graph.nodes[i].barrier.resource.UID()
		primary, ok := primaries[uid]
		if !ok {
			primaries[uid] = id
			flags[id] = dstFlags{stage: dst.Stage, access: dst.Usage.Access(), usage: dst.Usage}
			continue
		}

		first := flags[primary]
		if !first.usage.IsRead() && !dst.Usage.IsRead() && first.usage != dst.Usage {
			return fmt.Errorf("%w: conflicting write usages for %q",
				ErrIllegalTaskGraph, uid)
		}
		// Redirect this barrier's consumer to the primary barrier, union
		// the destination masks, and retire the duplicate.
		children := g.graph.Children(id)
		if len(children) == 0 {
			return ErrNodeNotFound
		}
		g.graph.updateEdge(primary, children[0], uid)
		first.stage |= dst.Stage
		first.access |= dst.Usage.Access()
		flags[primary] = first
		g.graph.retireNode(id)
		merged++
	}

	for id, f := range flags {
		b := &g.graph.nodes[id].barrier
		b.DstStage = f.stage
		b.DstAccess = f.access
	}
	if merged > 0 {
		Logger().Debug("framegraph: merged identical barriers", "merged", merged)
	}
	return nil
}
