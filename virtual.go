package framegraph

import (
	"strings"
)

// ResourceType is the kind of GPU resource a virtual resource refers to.
type ResourceType uint8

const (
	// ResourceImage is an image resource.
	ResourceImage ResourceType = iota
	// ResourceBuffer is a buffer resource.
	ResourceBuffer
)

// String returns the string representation of a ResourceType.
func (t ResourceType) String() string {
	switch t {
	case ResourceImage:
		return "Image"
	case ResourceBuffer:
		return "Buffer"
	}
	return "Unknown"
}

// VirtualResource identifies a logical resource in a pass graph. A virtual
// resource has a name and a version: each time a pass writes to a resource
// it produces the next version of it, obtained through [VirtualResource.Upgrade].
// Downstream passes consume that upgraded version, which is what gives the
// graph its dependency edges.
//
// Virtual resources are plain values: comparable, hashable and cheap to copy.
// Two virtual resources denote the same logical resource (across versions)
// iff their names are equal, see [VirtualResource.IsAssociatedWith].
type VirtualResource struct {
	name    string
	version int
	typ     ResourceType
}

// Image creates a version-0 image virtual resource with the given name.
// Names must not contain '+', which is reserved for version suffixes in
// the resource uid; Image panics otherwise.
func Image(name string) VirtualResource {
	validateResourceName(name)
	return VirtualResource{name: name, typ: ResourceImage}
}

// Buffer creates a version-0 buffer virtual resource with the given name.
// Names must not contain '+'; Buffer panics otherwise.
func Buffer(name string) VirtualResource {
	validateResourceName(name)
	return VirtualResource{name: name, typ: ResourceBuffer}
}

func validateResourceName(name string) {
	if strings.ContainsRune(name, '+') {
		panic("framegraph: resource name must not contain '+': " + name)
	}
}

// Upgrade returns the next version of this resource. Use it to obtain the
// identifier a resource has after a pass that writes to it completes.
func (r VirtualResource) Upgrade() VirtualResource {
	return VirtualResource{name: r.name, version: r.version + 1, typ: r.typ}
}

// Name returns the logical resource name, without any version suffix.
func (r VirtualResource) Name() string { return r.name }

// Version returns the version of this resource. Larger versions are more
// recent states of the same logical resource.
func (r VirtualResource) Version() int { return r.version }

// Type returns the resource type.
func (r VirtualResource) Type() ResourceType { return r.typ }

// UID returns the unique identifier of this resource version: the name
// followed by one '+' per version.
func (r VirtualResource) UID() string {
	if r.version == 0 {
		return r.name
	}
	return r.name + strings.Repeat("+", r.version)
}

// String returns the uid.
func (r VirtualResource) String() string { return r.UID() }

// IsSource reports whether this resource is a source resource, one that is
// not produced by any pass within the frame. The first use of a source
// resource must synchronize against whatever touched it in a previous frame.
func (r VirtualResource) IsSource() bool { return r.version == 0 }

// IsAssociatedWith reports whether two virtual resources refer to the same
// logical resource, regardless of version.
func (r VirtualResource) IsAssociatedWith(other VirtualResource) bool {
	return r.name == other.name
}

// Older reports whether lhs is a strictly older version of the same logical
// resource than rhs. For resources that are not associated it returns false.
func Older(lhs, rhs VirtualResource) bool {
	if !lhs.IsAssociatedWith(rhs) {
		return false
	}
	return lhs.version < rhs.version
}

// Younger reports whether lhs is a strictly newer version of the same
// logical resource than rhs. Note that this is not the negation of [Older]:
// for non-associated resources, and for equal versions, both return false.
func Younger(lhs, rhs VirtualResource) bool {
	if !lhs.IsAssociatedWith(rhs) {
		return false
	}
	return lhs.version > rhs.version
}
