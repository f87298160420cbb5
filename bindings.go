package framegraph

import (
	vk "github.com/goki/vulkan"
)

// ImageView is a concrete image handle with the metadata the recorder needs:
// extent for render areas and a subresource range for barriers.
type ImageView struct {
	Image  vk.Image
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
	Aspect vk.ImageAspectFlags
}

// SubresourceRange returns the full subresource range of the image, for
// layout transition barriers.
func (v ImageView) SubresourceRange() vk.ImageSubresourceRange {
	aspect := v.Aspect
	if aspect == 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	return vk.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     vk.RemainingMipLevels,
		BaseArrayLayer: 0,
		LayerCount:     vk.RemainingArrayLayers,
	}
}

// BufferView is a concrete buffer handle, or a range of one.
type BufferView struct {
	Buffer vk.Buffer
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

// PhysicalResource is a concrete GPU resource bound to a virtual resource
// name: either an image or a buffer, discriminated by Type.
type PhysicalResource struct {
	Type   ResourceType
	Image  ImageView
	Buffer BufferView
}

// PhysicalResourceBindings maps virtual resource names to concrete GPU
// resources. Bindings are keyed by logical name, not uid: one physical
// resource backs every version of a virtual resource within the frame.
//
// Bindings must be fully populated before recording starts and are read-only
// during recording.
type PhysicalResourceBindings struct {
	bindings map[string]PhysicalResource
}

// NewPhysicalResourceBindings creates an empty binding map.
func NewPhysicalResourceBindings() *PhysicalResourceBindings {
	return &PhysicalResourceBindings{bindings: make(map[string]PhysicalResource)}
}

// BindImage binds an image to all virtual resources with the given name.
func (b *PhysicalResourceBindings) BindImage(name string, image ImageView) {
	b.bindings[name] = PhysicalResource{Type: ResourceImage, Image: image}
}

// BindBuffer binds a buffer to all virtual resources with the given name.
func (b *PhysicalResourceBindings) BindBuffer(name string, buffer BufferView) {
	b.bindings[name] = PhysicalResource{Type: ResourceBuffer, Buffer: buffer}
}

// Alias binds name to the same physical resource an existing binding refers
// to. It fails if the aliased name is not bound.
func (b *PhysicalResourceBindings) Alias(name, existing string) error {
	resource, ok := b.bindings[existing]
	if !ok {
		return &NoResourceBoundError{Name: existing}
	}
	b.bindings[name] = resource
	return nil
}

// Resolve looks up the physical resource bound to a virtual resource.
func (b *PhysicalResourceBindings) Resolve(resource VirtualResource) (PhysicalResource, bool) {
	r, ok := b.bindings[resource.Name()]
	return r, ok
}

// ResolveImage resolves a virtual resource that must be bound to an image.
func (b *PhysicalResourceBindings) ResolveImage(resource VirtualResource) (ImageView, error) {
	r, ok := b.bindings[resource.Name()]
	if !ok || r.Type != ResourceImage {
		return ImageView{}, &NoResourceBoundError{Name: resource.Name()}
	}
	return r.Image, nil
}

// ResolveBuffer resolves a virtual resource that must be bound to a buffer.
func (b *PhysicalResourceBindings) ResolveBuffer(resource VirtualResource) (BufferView, error) {
	r, ok := b.bindings[resource.Name()]
	if !ok || r.Type != ResourceBuffer {
		return BufferView{}, &NoResourceBoundError{Name: resource.Name()}
	}
	return r.Buffer, nil
}
