package framegraph

import (
	"errors"
	"fmt"
)

// Structural graph errors are returned while declaring or building a graph.
// They are fatal to that graph instance: callers should fix the pass
// declarations and rebuild from scratch.
var (
	// ErrGraphHasCycle is returned by AddPass when inserting a pass closes
	// a dependency cycle. The offending node and its edges remain in the
	// graph; a graph that returned this error must be discarded.
	ErrGraphHasCycle = errors.New("framegraph: task graph contains a cycle")

	// ErrIllegalTaskGraph is returned when resource usages are ambiguous:
	// either two passes produce the same resource version, or two consumers
	// of one produced version require incompatible write usages.
	ErrIllegalTaskGraph = errors.New("framegraph: ambiguous resource usage in task graph")

	// ErrNodeNotFound indicates an internal graph invariant violation. It
	// should not surface to a correct caller.
	ErrNodeNotFound = errors.New("framegraph: node not found in task graph")

	// ErrNoClearValue is returned when an attachment uses a clear load op
	// without a clear value.
	ErrNoClearValue = errors.New("framegraph: clear load op without clear value")

	// ErrNotARenderPass is returned when attachments are declared on a pass
	// that was not created with NewRenderPass.
	ErrNotARenderPass = errors.New("framegraph: attachments require a render pass")
)

// NoResourceBoundError is returned during recording when a virtual resource
// referenced by the graph has no entry in the physical resource bindings.
type NoResourceBoundError struct {
	// Name is the logical resource name that was not bound.
	Name string
}

// Error implements the error interface.
func (e *NoResourceBoundError) Error() string {
	return fmt.Sprintf("framegraph: no physical resource bound for %q", e.Name)
}
