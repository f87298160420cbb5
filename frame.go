package framegraph

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// ScratchAllocator hands out transient sub-ranges of a backing buffer with a
// simple linear bump scheme. Allocations live for one frame; Reset reclaims
// everything at once.
type ScratchAllocator struct {
	buffer    BufferView
	offset    vk.DeviceSize
	alignment vk.DeviceSize
}

// NewScratchAllocator creates a scratch allocator over the given backing
// buffer. alignment is the minimum alignment of returned ranges; zero means
// no alignment requirement.
func NewScratchAllocator(buffer BufferView, alignment vk.DeviceSize) *ScratchAllocator {
	return &ScratchAllocator{buffer: buffer, alignment: alignment}
}

// Allocate returns a transient range of the backing buffer. It fails when
// the backing buffer is exhausted; the caller should size the backing buffer
// for the frame's worst case.
func (a *ScratchAllocator) Allocate(size vk.DeviceSize) (BufferView, error) {
	offset := a.offset
	if a.alignment > 0 {
		if rem := offset % a.alignment; rem != 0 {
			offset += a.alignment - rem
		}
	}
	if offset+size > a.buffer.Size {
		return BufferView{}, fmt.Errorf("framegraph: scratch buffer exhausted: need %d bytes at offset %d of %d",
			size, offset, a.buffer.Size)
	}
	a.offset = offset + size
	return BufferView{
		Buffer: a.buffer.Buffer,
		Offset: a.buffer.Offset + offset,
		Size:   size,
	}, nil
}

// Used returns the number of bytes allocated since the last Reset.
func (a *ScratchAllocator) Used() vk.DeviceSize { return a.offset }

// Reset reclaims all allocations. Only call it once the GPU is done with the
// frame that used them.
func (a *ScratchAllocator) Reset() { a.offset = 0 }

// FrameContext is the per-frame scratch allocation context handed to pass
// executors. It owns one linear allocator per buffer usage class; executors
// allocate transient vertex, index, uniform and storage ranges from it while
// recording.
//
// A FrameContext belongs to one frame in flight. It is not safe for
// concurrent use.
type FrameContext struct {
	Vertex  *ScratchAllocator
	Index   *ScratchAllocator
	Uniform *ScratchAllocator
	Storage *ScratchAllocator

	index uint64
}

// FrameContextBuffers holds the backing buffers of a FrameContext.
type FrameContextBuffers struct {
	Vertex  BufferView
	Index   BufferView
	Uniform BufferView
	Storage BufferView

	// UniformAlignment is the device's minimum uniform buffer offset
	// alignment; it is applied to uniform and storage allocations.
	UniformAlignment vk.DeviceSize
}

// NewFrameContext creates a frame context over caller-allocated backing
// buffers.
func NewFrameContext(buffers FrameContextBuffers) *FrameContext {
	return &FrameContext{
		Vertex:  NewScratchAllocator(buffers.Vertex, 0),
		Index:   NewScratchAllocator(buffers.Index, 0),
		Uniform: NewScratchAllocator(buffers.Uniform, buffers.UniformAlignment),
		Storage: NewScratchAllocator(buffers.Storage, buffers.UniformAlignment),
	}
}

// FrameIndex returns the number of completed NextFrame calls, a monotonic
// frame counter.
func (f *FrameContext) FrameIndex() uint64 { return f.index }

// NextFrame resets all scratch allocators and advances the frame counter.
// Call it once per frame, after the GPU has finished the previous use of
// these buffers.
func (f *FrameContext) NextFrame() {
	f.Vertex.Reset()
	f.Index.Reset()
	f.Uniform.Reset()
	f.Storage.Reset()
	f.index++
}
