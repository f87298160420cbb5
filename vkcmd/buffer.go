// Package vkcmd records framegraph playback into Vulkan command buffers.
//
// [Buffer] implements [framegraph.CommandBuffer] on top of a
// vk.CommandBuffer. Render pass handles and framebuffers come from a
// [PassSource], which lets callers plug in their own (usually cached)
// creation strategy.
package vkcmd

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/gogpu/framegraph"
)

// PassSource resolves a rendering description to Vulkan objects. The
// returned render pass and framebuffer must stay valid until the command
// buffer finishes executing.
type PassSource interface {
	RenderPass(info framegraph.RenderingInfo) (vk.RenderPass, vk.Framebuffer, error)
}

// Buffer records framegraph operations into a Vulkan command buffer. The
// command buffer must already be in the recording state.
type Buffer struct {
	cmd    vk.CommandBuffer
	passes PassSource

	inPass bool
}

// NewBuffer wraps cmd for recording. passes supplies render pass and
// framebuffer objects for each BeginRendering call.
func NewBuffer(cmd vk.CommandBuffer, passes PassSource) *Buffer {
	return &Buffer{cmd: cmd, passes: passes}
}

// Handle returns the underlying Vulkan command buffer.
func (b *Buffer) Handle() vk.CommandBuffer { return b.cmd }

// BeginRendering starts a render pass described by info.
func (b *Buffer) BeginRendering(info framegraph.RenderingInfo) error {
	if b.inPass {
		return fmt.Errorf("vkcmd: BeginRendering inside an active render pass")
	}
	pass, fb, err := b.passes.RenderPass(info)
	if err != nil {
		return fmt.Errorf("vkcmd: resolving render pass: %w", err)
	}
	clears := clearValues(info)
	begin := vk.RenderPassBeginInfo{
		SType:           vk.StructureTypeRenderPassBeginInfo,
		RenderPass:      pass,
		Framebuffer:     fb,
		RenderArea:      info.RenderArea,
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}
	vk.CmdBeginRenderPass(b.cmd, &begin, vk.SubpassContentsInline)
	b.inPass = true
	return nil
}

// EndRendering ends the active render pass.
func (b *Buffer) EndRendering() error {
	if !b.inPass {
		return fmt.Errorf("vkcmd: EndRendering without an active render pass")
	}
	vk.CmdEndRenderPass(b.cmd)
	b.inPass = false
	return nil
}

// PipelineBarrier records an image memory barrier.
func (b *Buffer) PipelineBarrier(barrier framegraph.ImageBarrier) error {
	img := imageBarrier(barrier)
	vk.CmdPipelineBarrier(b.cmd,
		barrier.SrcStage, barrier.DstStage, 0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{img})
	return nil
}

// MemoryBarrier records a global memory barrier covering buffer access.
func (b *Buffer) MemoryBarrier(barrier framegraph.BufferBarrier) error {
	mem := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: barrier.SrcAccess,
		DstAccessMask: barrier.DstAccess,
	}
	vk.CmdPipelineBarrier(b.cmd,
		barrier.SrcStage, barrier.DstStage, 0,
		1, []vk.MemoryBarrier{mem},
		0, nil,
		0, nil)
	return nil
}

// BindGraphicsPipeline binds a graphics pipeline.
func (b *Buffer) BindGraphicsPipeline(p Pipeline) {
	vk.CmdBindPipeline(b.cmd, p.BindPoint, p.Pipeline)
}

// SetViewport sets the dynamic viewport state.
func (b *Buffer) SetViewport(viewport vk.Viewport) {
	vk.CmdSetViewport(b.cmd, 0, 1, []vk.Viewport{viewport})
}

// SetScissor sets the dynamic scissor state.
func (b *Buffer) SetScissor(scissor vk.Rect2D) {
	vk.CmdSetScissor(b.cmd, 0, 1, []vk.Rect2D{scissor})
}

// BindVertexBuffer binds view as vertex buffer at the given binding.
func (b *Buffer) BindVertexBuffer(binding uint32, view framegraph.BufferView) {
	vk.CmdBindVertexBuffers(b.cmd, binding, 1,
		[]vk.Buffer{view.Buffer}, []vk.DeviceSize{view.Offset})
}

// BindIndexBuffer binds view as the index buffer.
func (b *Buffer) BindIndexBuffer(view framegraph.BufferView, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(b.cmd, view.Buffer, view.Offset, indexType)
}

// Draw records a non-indexed draw.
func (b *Buffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(b.cmd, vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw.
func (b *Buffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(b.cmd, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// Dispatch records a compute dispatch.
func (b *Buffer) Dispatch(groupsX, groupsY, groupsZ uint32) {
	vk.CmdDispatch(b.cmd, groupsX, groupsY, groupsZ)
}

// clearValues flattens the clear values of a rendering description in
// attachment order: color attachments first, then depth.
func clearValues(info framegraph.RenderingInfo) []vk.ClearValue {
	out := make([]vk.ClearValue, 0, len(info.ColorAttachments)+1)
	for _, att := range info.ColorAttachments {
		var cv vk.ClearValue
		if att.Clear.Color != nil {
			c := att.Clear.Color
			cv.SetColor([]float32{c[0], c[1], c[2], c[3]})
		}
		out = append(out, cv)
	}
	if info.DepthAttachment != nil {
		var cv vk.ClearValue
		if ds := info.DepthAttachment.Clear.DepthStencil; ds != nil {
			cv.SetDepthStencil(ds.Depth, ds.Stencil)
		}
		out = append(out, cv)
	}
	return out
}

// imageBarrier converts a framegraph image barrier to a Vulkan one covering
// the full subresource range of the image.
func imageBarrier(barrier framegraph.ImageBarrier) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       barrier.SrcAccess,
		DstAccessMask:       barrier.DstAccess,
		OldLayout:           barrier.OldLayout,
		NewLayout:           barrier.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               barrier.Image.Image,
		SubresourceRange:    barrier.Image.SubresourceRange(),
	}
}
