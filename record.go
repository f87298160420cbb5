package framegraph

import (
	"fmt"
	"sort"

	vk "github.com/goki/vulkan"
)

// CommandBuffer is the command recording surface the graph plays back into.
// It is implemented by the native-API command buffer wrapper (see the vkcmd
// package); tests implement it with an in-memory recorder.
//
// Pass executors receive the same CommandBuffer and may record any
// domain-specific commands their concrete implementation offers.
type CommandBuffer interface {
	// BeginRendering starts a render pass with the given attachments.
	BeginRendering(info RenderingInfo) error
	// EndRendering ends the current render pass.
	EndRendering() error
	// PipelineBarrier records an image memory barrier with a layout
	// transition.
	PipelineBarrier(barrier ImageBarrier) error
	// MemoryBarrier records a global memory barrier. Buffer barriers are
	// lowered to global memory barriers, since drivers implement them that
	// way regardless.
	MemoryBarrier(barrier BufferBarrier) error
}

// RenderingAttachment describes one attachment of a render pass, fully
// resolved to a physical image.
type RenderingAttachment struct {
	Image   ImageView
	Layout  vk.ImageLayout
	LoadOp  vk.AttachmentLoadOp
	StoreOp vk.AttachmentStoreOp
	Clear   ClearValue

	// ResolveImage, when non-nil, is the MSAA resolve target for this
	// attachment.
	ResolveImage  *ImageView
	ResolveLayout vk.ImageLayout
}

// RenderingInfo describes a render pass instance: the render area and the
// resolved attachments.
type RenderingInfo struct {
	RenderArea       vk.Rect2D
	LayerCount       uint32
	ColorAttachments []RenderingAttachment
	DepthAttachment  *RenderingAttachment
}

// ImageBarrier is a fully resolved image memory barrier with a layout
// transition.
type ImageBarrier struct {
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
	OldLayout vk.ImageLayout
	NewLayout vk.ImageLayout
	Image     ImageView
}

// BufferBarrier is a fully resolved buffer synchronization point, emitted as
// a global memory barrier.
type BufferBarrier struct {
	SrcStage  vk.PipelineStageFlags
	DstStage  vk.PipelineStageFlags
	SrcAccess vk.AccessFlags
	DstAccess vk.AccessFlags
}

// Record plays the built graph back into cmd in dependency order: passes
// invoke their executors (framed by BeginRendering/EndRendering for render
// passes), barrier nodes emit pipeline barriers. Virtual resources are
// resolved through bindings; frame is handed to every executor for
// per-frame scratch allocations and may be nil if no executor uses it.
//
// The traversal is a topological order of the graph. Ties between
// independent nodes are broken by insertion order, so identical graphs
// record identically.
//
// Record fails with a [NoResourceBoundError] if a barrier or attachment
// references an unbound resource. On error the command buffer contains the
// commands recorded so far; it is valid to abandon, never to submit.
func (g *BuiltPassGraph) Record(cmd CommandBuffer, bindings *PhysicalResourceBindings, frame *FrameContext) error {
	graph := g.graph
	total := graph.NumNodes()
	active := make(map[NodeID]bool, total)
	frontier := make(map[NodeID]bool)

	activate := func(id NodeID) {
		delete(frontier, id)
		active[id] = true
		for _, child := range graph.Children(id) {
			if !active[child] {
				frontier[child] = true
			}
		}
	}

	// Source nodes have no predecessors; record them immediately.
	for _, id := range graph.Sources() {
		if err := g.recordNode(id, cmd, bindings, frame); err != nil {
			return err
		}
		activate(id)
	}

	scratch := make([]int, 0, total)
	for len(active) < total {
		// A frontier node becomes recordable once all its predecessors are
		// active. Scan in ascending node id for deterministic ordering.
		scratch = scratch[:0]
		for id := range frontier {
			scratch = append(scratch, int(id))
		}
		sort.Ints(scratch)

		recorded := 0
		for _, i := range scratch {
			id := NodeID(i)
			ready := true
			for _, parent := range graph.Parents(id) {
				if !active[parent] {
					ready = false
					break
				}
			}
			if !ready {
				continue
			}
			if err := g.recordNode(id, cmd, bindings, frame); err != nil {
				return err
			}
			activate(id)
			recorded++
		}
		if recorded == 0 {
			// Unreachable for a graph that passed Build.
			return fmt.Errorf("%w: recording stalled with %d of %d nodes recorded",
				ErrNodeNotFound, len(active), total)
		}
	}
	return nil
}

func (g *BuiltPassGraph) recordNode(id NodeID, cmd CommandBuffer, bindings *PhysicalResourceBindings, frame *FrameContext) error {
	if task, ok := g.graph.Task(id); ok {
		return g.recordPass(task, cmd, bindings, frame)
	}
	if barrier, ok := g.graph.Barrier(id); ok {
		return g.recordBarrier(id, barrier, cmd, bindings)
	}
	return ErrNodeNotFound
}

func (g *BuiltPassGraph) recordPass(pass *PassNode, cmd CommandBuffer, bindings *PhysicalResourceBindings, frame *FrameContext) error {
	if pass.isRenderPass {
		info, err := renderingInfo(pass, bindings)
		if err != nil {
			return err
		}
		if err := cmd.BeginRendering(info); err != nil {
			return err
		}
	}
	if pass.execute != nil {
		if err := pass.execute(cmd, frame, bindings); err != nil {
			return fmt.Errorf("framegraph: executing pass %q: %w", pass.name, err)
		}
	}
	if pass.isRenderPass {
		return cmd.EndRendering()
	}
	return nil
}

func (g *BuiltPassGraph) recordBarrier(id NodeID, barrier PassResourceBarrier, cmd CommandBuffer, bindings *PhysicalResourceBindings) error {
	dst, err := g.barrierDstResource(id)
	if err != nil {
		return err
	}
	src := barrier.resource
	physical, ok := bindings.Resolve(src.Resource)
	if !ok {
		return &NoResourceBoundError{Name: src.Resource.Name()}
	}
	switch physical.Type {
	case ResourceImage:
		// The barrier's resource describes the source state; the consumer's
		// matching input describes the destination layout.
		return cmd.PipelineBarrier(ImageBarrier{
			SrcStage:  barrier.SrcStage,
			DstStage:  barrier.DstStage,
			SrcAccess: barrier.SrcAccess,
			DstAccess: barrier.DstAccess,
			OldLayout: src.Layout,
			NewLayout: dst.Layout,
			Image:     physical.Image,
		})
	case ResourceBuffer:
		return cmd.MemoryBarrier(BufferBarrier{
			SrcStage:  barrier.SrcStage,
			DstStage:  barrier.DstStage,
			SrcAccess: barrier.SrcAccess,
			DstAccess: barrier.DstAccess,
		})
	}
	return ErrNodeNotFound
}

// renderingInfo derives the render pass framing of a pass from its
// attachment outputs: color attachments, the depth attachment, resolve
// targets, and the render area from the first bound attachment's extent.
func renderingInfo(pass *PassNode, bindings *PhysicalResourceBindings) (RenderingInfo, error) {
	info := RenderingInfo{LayerCount: 1}
	for _, output := range pass.outputs {
		if output.Usage.Kind != UsageAttachment {
			continue
		}
		switch output.Usage.Attachment {
		case AttachmentColor:
			image, err := bindings.ResolveImage(output.Resource)
			if err != nil {
				return RenderingInfo{}, err
			}
			attachment := RenderingAttachment{
				Image:   image,
				Layout:  output.Layout,
				LoadOp:  output.LoadOp,
				StoreOp: vk.AttachmentStoreOpStore,
			}
			if output.Clear != nil {
				attachment.Clear = *output.Clear
			}
			resolve, err := findResolveTarget(pass, output, bindings)
			if err != nil {
				return RenderingInfo{}, err
			}
			if resolve != nil {
				attachment.ResolveImage = resolve
				attachment.ResolveLayout = vk.ImageLayoutColorAttachmentOptimal
			}
			info.ColorAttachments = append(info.ColorAttachments, attachment)
		case AttachmentDepth:
			image, err := bindings.ResolveImage(output.Resource)
			if err != nil {
				return RenderingInfo{}, err
			}
			attachment := RenderingAttachment{
				Image:   image,
				Layout:  output.Layout,
				LoadOp:  output.LoadOp,
				StoreOp: vk.AttachmentStoreOpStore,
			}
			if output.Clear != nil {
				attachment.Clear = *output.Clear
			}
			info.DepthAttachment = &attachment
		}
	}
	if len(info.ColorAttachments) > 0 {
		extent := info.ColorAttachments[0].Image
		info.RenderArea = vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		}
	} else if info.DepthAttachment != nil {
		extent := info.DepthAttachment.Image
		info.RenderArea = vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		}
	}
	return info, nil
}

// findResolveTarget returns the physical image of the resolve output whose
// source is the given color attachment, if the pass declares one.
func findResolveTarget(pass *PassNode, color PassResource, bindings *PhysicalResourceBindings) (*ImageView, error) {
	for _, output := range pass.outputs {
		if output.Usage.Kind != UsageAttachment || output.Usage.Attachment != AttachmentResolve {
			continue
		}
		if !color.Resource.IsAssociatedWith(output.Usage.ResolveSrc) {
			continue
		}
		image, err := bindings.ResolveImage(output.Resource)
		if err != nil {
			return nil, err
		}
		return &image, nil
	}
	return nil, nil
}
