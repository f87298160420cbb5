package framegraph

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// PassFunc is the executor invoked when a pass is recorded. It may record
// arbitrary commands on cmd, allocate transient memory from frame, and
// resolve sibling virtual resources through bindings.
type PassFunc func(cmd CommandBuffer, frame *FrameContext, bindings *PhysicalResourceBindings) error

// Pass is one pass in a GPU task graph: a named set of resource usages plus
// an executor. Obtain one using a [PassBuilder], then hand it to
// [PassGraph.AddPass].
type Pass struct {
	name         string
	inputs       []PassResource
	outputs      []PassResource
	execute      PassFunc
	isRenderPass bool
}

// Name returns the pass name.
func (p *Pass) Name() string { return p.name }

// Output returns the output virtual resource associated with the given
// resource: the version this pass produces of it. Use it to obtain the
// identifier downstream passes must consume.
func (p *Pass) Output(resource VirtualResource) (VirtualResource, bool) {
	for _, output := range p.outputs {
		if resource.IsAssociatedWith(output.Resource) {
			return output.Resource, true
		}
	}
	return VirtualResource{}, false
}

// PassBuilder declares a [Pass]: its attachments, sampled and storage
// images, and the executor closure. Builder methods record the first error
// encountered and return the builder, so calls chain; Build reports the
// error.
//
// A pass created with [NewPass] cannot declare attachments; use
// [NewRenderPass] for passes that render to color or depth attachments.
type PassBuilder struct {
	pass Pass
	err  error
}

// NewPass creates a builder for a generic pass: compute, transfer, or any
// other work that does not render to attachments.
func NewPass(name string) *PassBuilder {
	return &PassBuilder{pass: Pass{name: name}}
}

// NewRenderPass creates a builder for a render pass. Only passes created
// through NewRenderPass may declare color and depth attachments.
func NewRenderPass(name string) *PassBuilder {
	return &PassBuilder{pass: Pass{name: name, isRenderPass: true}}
}

// NewPresentPass creates a pass declaring the final use of the swapchain
// resource before presentation. It records no commands; it exists purely so
// the graph inserts the correct final barrier, transitioning the swapchain
// image to the present layout. swapchain must be the last produced version
// of the swapchain resource.
func NewPresentPass(name string, swapchain VirtualResource) *Pass {
	return &Pass{
		name: name,
		inputs: []PassResource{{
			Usage:    ResourceUsage{Kind: UsagePresent},
			Resource: swapchain,
			Stage:    vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
			Layout:   vk.ImageLayoutPresentSrc,
		}},
	}
}

// ColorAttachment declares a color attachment. If op is
// vk.AttachmentLoadOpClear, clear must not be nil.
func (b *PassBuilder) ColorAttachment(resource VirtualResource, op vk.AttachmentLoadOp, clear *ClearColor) *PassBuilder {
	if b.err != nil {
		return b
	}
	if !b.pass.isRenderPass {
		b.err = fmt.Errorf("%w: color attachment %q on pass %q", ErrNotARenderPass, resource.Name(), b.pass.name)
		return b
	}
	if op == vk.AttachmentLoadOpClear && clear == nil {
		b.err = fmt.Errorf("%w: color attachment %q on pass %q", ErrNoClearValue, resource.Name(), b.pass.name)
		return b
	}
	if op != vk.AttachmentLoadOpClear && op != vk.AttachmentLoadOpLoad {
		b.err = fmt.Errorf("framegraph: unsupported load op %d for color attachment %q", op, resource.Name())
		return b
	}
	var clearValue *ClearValue
	if clear != nil {
		c := *clear
		clearValue = &ClearValue{Color: &c}
	}
	// Load and clear operations on color attachments happen in the color
	// attachment output stage.
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageAttachment, Attachment: AttachmentColor},
		Resource: resource,
		Stage:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Layout:   vk.ImageLayoutColorAttachmentOptimal,
	})
	b.pass.outputs = append(b.pass.outputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageAttachment, Attachment: AttachmentColor},
		Resource: resource.Upgrade(),
		Stage:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Layout:   vk.ImageLayoutColorAttachmentOptimal,
		Clear:    clearValue,
		LoadOp:   op,
	})
	return b
}

// ClearColorAttachment declares a color attachment cleared to the given
// color at the start of the pass.
func (b *PassBuilder) ClearColorAttachment(resource VirtualResource, clear ClearColor) *PassBuilder {
	return b.ColorAttachment(resource, vk.AttachmentLoadOpClear, &clear)
}

// LoadColorAttachment declares a color attachment whose previous contents
// are preserved.
func (b *PassBuilder) LoadColorAttachment(resource VirtualResource) *PassBuilder {
	return b.ColorAttachment(resource, vk.AttachmentLoadOpLoad, nil)
}

// DepthAttachment declares a depth attachment. If op is
// vk.AttachmentLoadOpClear, clear must not be nil.
func (b *PassBuilder) DepthAttachment(resource VirtualResource, op vk.AttachmentLoadOp, clear *ClearDepthStencil) *PassBuilder {
	if b.err != nil {
		return b
	}
	if !b.pass.isRenderPass {
		b.err = fmt.Errorf("%w: depth attachment %q on pass %q", ErrNotARenderPass, resource.Name(), b.pass.name)
		return b
	}
	if op == vk.AttachmentLoadOpClear && clear == nil {
		b.err = fmt.Errorf("%w: depth attachment %q on pass %q", ErrNoClearValue, resource.Name(), b.pass.name)
		return b
	}
	if op != vk.AttachmentLoadOpClear && op != vk.AttachmentLoadOpLoad {
		b.err = fmt.Errorf("framegraph: unsupported load op %d for depth attachment %q", op, resource.Name())
		return b
	}
	var clearValue *ClearValue
	if clear != nil {
		c := *clear
		clearValue = &ClearValue{DepthStencil: &c}
	}
	// Load operations on depth attachments happen in the early fragment
	// tests stage; depth writes in the late fragment tests stage.
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageAttachment, Attachment: AttachmentDepth},
		Resource: resource,
		Stage:    vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit),
		Layout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
	})
	b.pass.outputs = append(b.pass.outputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageAttachment, Attachment: AttachmentDepth},
		Resource: resource.Upgrade(),
		Stage:    vk.PipelineStageFlags(vk.PipelineStageLateFragmentTestsBit),
		Layout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
		Clear:    clearValue,
		LoadOp:   op,
	})
	return b
}

// ClearDepthAttachment declares a depth attachment cleared to the given
// depth/stencil values at the start of the pass.
func (b *PassBuilder) ClearDepthAttachment(resource VirtualResource, clear ClearDepthStencil) *PassBuilder {
	return b.DepthAttachment(resource, vk.AttachmentLoadOpClear, &clear)
}

// LoadDepthAttachment declares a depth attachment whose previous contents
// are preserved.
func (b *PassBuilder) LoadDepthAttachment(resource VirtualResource) *PassBuilder {
	return b.DepthAttachment(resource, vk.AttachmentLoadOpLoad, nil)
}

// Resolve declares a hardware MSAA resolve from src into dst. src must be a
// color attachment of this pass.
func (b *PassBuilder) Resolve(src, dst VirtualResource) *PassBuilder {
	return b.resolve(src, dst, vk.ImageLayoutColorAttachmentOptimal)
}

// ResolveDepth declares a hardware MSAA resolve from src into dst for depth
// images.
func (b *PassBuilder) ResolveDepth(src, dst VirtualResource) *PassBuilder {
	return b.resolve(src, dst, vk.ImageLayoutDepthStencilAttachmentOptimal)
}

func (b *PassBuilder) resolve(src, dst VirtualResource, layout vk.ImageLayout) *PassBuilder {
	if b.err != nil {
		return b
	}
	if !b.pass.isRenderPass {
		b.err = fmt.Errorf("%w: resolve %q -> %q on pass %q", ErrNotARenderPass, src.Name(), dst.Name(), b.pass.name)
		return b
	}
	usage := ResourceUsage{Kind: UsageAttachment, Attachment: AttachmentResolve, ResolveSrc: src}
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    usage,
		Resource: dst,
		Stage:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Layout:   layout,
	})
	b.pass.outputs = append(b.pass.outputs, PassResource{
		Usage:    usage,
		Resource: dst.Upgrade(),
		Stage:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		Layout:   layout,
		LoadOp:   vk.AttachmentLoadOpDontCare,
	})
	return b
}

// SampleImage declares that the resource is sampled in the given pipeline
// stages. Only images used elsewhere in the frame need this; regular
// textures do not participate in the graph.
func (b *PassBuilder) SampleImage(resource VirtualResource, stage vk.PipelineStageFlags) *PassBuilder {
	if b.err != nil {
		return b
	}
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageShaderRead},
		Resource: resource,
		Stage:    stage,
		Layout:   vk.ImageLayoutShaderReadOnlyOptimal,
	})
	return b
}

// ReadStorageImage declares that the resource is read as a storage image in
// the given pipeline stages.
func (b *PassBuilder) ReadStorageImage(resource VirtualResource, stage vk.PipelineStageFlags) *PassBuilder {
	if b.err != nil {
		return b
	}
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageShaderRead},
		Resource: resource,
		Stage:    stage,
		Layout:   vk.ImageLayoutGeneral,
	})
	return b
}

// WriteStorageImage declares that the resource is written as a storage
// image in the given pipeline stages. This produces the next version of the
// resource.
func (b *PassBuilder) WriteStorageImage(resource VirtualResource, stage vk.PipelineStageFlags) *PassBuilder {
	if b.err != nil {
		return b
	}
	b.pass.inputs = append(b.pass.inputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageShaderWrite},
		Resource: resource,
		Stage:    stage,
		Layout:   vk.ImageLayoutGeneral,
	})
	b.pass.outputs = append(b.pass.outputs, PassResource{
		Usage:    ResourceUsage{Kind: UsageShaderWrite},
		Resource: resource.Upgrade(),
		Stage:    stage,
		Layout:   vk.ImageLayoutGeneral,
	})
	return b
}

// Execute sets the executor invoked when the pass is recorded. A pass
// without an executor records nothing of its own; barriers and render pass
// framing still apply.
func (b *PassBuilder) Execute(fn PassFunc) *PassBuilder {
	if b.err != nil {
		return b
	}
	b.pass.execute = fn
	return b
}

// Build returns the finished pass, or the first error any builder call
// recorded.
func (b *PassBuilder) Build() (*Pass, error) {
	if b.err != nil {
		return nil, b.err
	}
	pass := b.pass
	return &pass, nil
}
