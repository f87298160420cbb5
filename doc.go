// Package framegraph provides a render graph layer over Vulkan-style GPU
// APIs: passes declare the virtual resources they read and write, and the
// graph derives execution order, image layout transitions and pipeline
// barriers automatically.
//
// # Overview
//
// Modern explicit GPU APIs push synchronization onto the application:
// every read of an image written earlier in the frame needs a pipeline
// barrier with the right stage, access and layout masks. framegraph treats
// this as a scheduling problem. Passes reference resources by name; writing
// a resource produces its next version; the versions form a dependency DAG
// which is checked for cycles, annotated with barriers, and linearized into
// a single command buffer.
//
// # Quick Start
//
// Declare virtual resources and passes. Writing to a resource produces an
// upgraded version that downstream passes consume:
//
//	offscreen := framegraph.Image("offscreen")
//	swapchain := framegraph.Image("swapchain")
//
//	offscreenPass, err := framegraph.NewRenderPass("offscreen").
//	    ClearColorAttachment(offscreen, framegraph.ClearColor{1, 0, 0, 1}).
//	    Execute(drawScene).
//	    Build()
//
//	// The offscreen pass output is a new version of the resource; look it
//	// up to declare the dependency.
//	rendered, _ := offscreenPass.Output(offscreen)
//
//	samplePass, err := framegraph.NewRenderPass("sample").
//	    ClearColorAttachment(swapchain, framegraph.ClearColor{0, 0, 0, 1}).
//	    SampleImage(rendered, vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)).
//	    Execute(drawFullscreenQuad).
//	    Build()
//
// Assemble and build the graph, bind physical resources, and record:
//
//	finalSwapchain, _ := samplePass.Output(swapchain)
//
//	graph := framegraph.NewPassGraph(framegraph.WithSwapchain(swapchain))
//	graph.AddPass(offscreenPass)
//	graph.AddPass(samplePass)
//	graph.AddPass(framegraph.NewPresentPass("present", finalSwapchain))
//	built, err := graph.Build()
//
//	bindings := framegraph.NewPhysicalResourceBindings()
//	bindings.BindImage("offscreen", offscreenView)
//	bindings.BindImage("swapchain", swapchainView)
//	err = built.Record(cmd, bindings, frame)
//
// The graph inserts two barriers here: offscreen transitions from color
// attachment to shader read before the sample pass, and the swapchain
// transitions to the present layout before presentation.
//
// # Architecture
//
// The library is organized into:
//   - Public API: VirtualResource, Pass, PassBuilder, PassGraph,
//     PhysicalResourceBindings, FrameContext
//   - Generic engine: TaskGraph, a directed dependency graph with
//     automatic barrier insertion, usable with any Resource/Task/Barrier
//     triple
//   - Backends: vkcmd records into a Vulkan command buffer; any type
//     implementing CommandBuffer works
//   - cache: content-addressed TTL caching for derived GPU objects
//     (pipelines, descriptor sets)
//
// # Concurrency
//
// Graph construction and recording are single-threaded, CPU-bound
// computations with no internal locking. Build one graph per frame per
// queue; record it on the goroutine that owns the command buffer.
package framegraph
