package framegraph

import (
	vk "github.com/goki/vulkan"
)

// UsageKind classifies how a pass uses a resource.
type UsageKind uint8

const (
	// UsageNothing marks a resource that is tracked but not accessed.
	// Outputs of the synthetic source node use this.
	UsageNothing UsageKind = iota
	// UsagePresent marks the final use of a swapchain resource before
	// presentation.
	UsagePresent
	// UsageAttachment marks a color, depth or resolve attachment.
	UsageAttachment
	// UsageShaderRead marks a sampled or storage image read.
	UsageShaderRead
	// UsageShaderWrite marks a storage image write.
	UsageShaderWrite
)

// String returns the string representation of a UsageKind.
func (k UsageKind) String() string {
	switch k {
	case UsageNothing:
		return "Nothing"
	case UsagePresent:
		return "Present"
	case UsageAttachment:
		return "Attachment"
	case UsageShaderRead:
		return "ShaderRead"
	case UsageShaderWrite:
		return "ShaderWrite"
	}
	return "Unknown"
}

// AttachmentKind is the attachment flavor of a UsageAttachment resource.
type AttachmentKind uint8

const (
	// AttachmentColor is a color attachment.
	AttachmentColor AttachmentKind = iota
	// AttachmentDepth is a depth attachment.
	AttachmentDepth
	// AttachmentResolve is an MSAA resolve target. The resolve source is
	// carried in [ResourceUsage.ResolveSrc].
	AttachmentResolve
)

// ResourceUsage describes how a pass uses a resource. It is a tagged value:
// Attachment is only meaningful when Kind is UsageAttachment, and ResolveSrc
// only when Attachment is AttachmentResolve.
type ResourceUsage struct {
	Kind       UsageKind
	Attachment AttachmentKind
	ResolveSrc VirtualResource
}

// Access returns the access mask implied by this usage.
func (u ResourceUsage) Access() vk.AccessFlags {
	switch u.Kind {
	case UsageAttachment:
		switch u.Attachment {
		case AttachmentColor, AttachmentResolve:
			return vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
		case AttachmentDepth:
			return vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)
		}
	case UsageShaderRead:
		return vk.AccessFlags(vk.AccessShaderReadBit)
	case UsageShaderWrite:
		return vk.AccessFlags(vk.AccessShaderWriteBit)
	}
	// Nothing and Present have no access.
	return 0
}

// IsRead reports whether this usage only reads the resource. Attachments and
// present count as writes: attachments write their image, and presentation
// must order against every prior write.
func (u ResourceUsage) IsRead() bool {
	return u.Kind == UsageNothing || u.Kind == UsageShaderRead
}

// ClearColor is a color clear value.
type ClearColor [4]float32

// ClearDepthStencil is a depth/stencil clear value.
type ClearDepthStencil struct {
	Depth   float32
	Stencil uint32
}

// ClearValue is a union of clear values; at most one field is non-nil.
type ClearValue struct {
	Color        *ClearColor
	DepthStencil *ClearDepthStencil
}

// PassResource is one resource reference inside a pass: the virtual resource
// plus the usage, pipeline stage and image layout the pass requires for it.
// Attachment outputs additionally carry the load op and clear value forward
// for the recorder.
type PassResource struct {
	Usage    ResourceUsage
	Resource VirtualResource
	Stage    vk.PipelineStageFlags
	Layout   vk.ImageLayout
	Clear    *ClearValue
	// LoadOp is only meaningful on attachment outputs, where it is always
	// set by the pass builder.
	LoadOp vk.AttachmentLoadOp
}

// UID returns the uid of the referenced virtual resource version.
func (r PassResource) UID() string { return r.Resource.UID() }

// IsDependencyOf reports whether r, as an input, depends on the output
// resource other. Dependencies are exact version matches.
func (r PassResource) IsDependencyOf(other PassResource) bool {
	return r.Resource.UID() == other.Resource.UID()
}
