package vkcmd

import (
	vk "github.com/goki/vulkan"

	"github.com/gogpu/framegraph/cache"
)

// Pipeline bundles a Vulkan pipeline with its layout and bind point.
type Pipeline struct {
	Pipeline  vk.Pipeline
	Layout    vk.PipelineLayout
	BindPoint vk.PipelineBindPoint
}

// PipelineSource resolves pipeline names to pipeline objects. Names are
// chosen by the application when it registers pipeline descriptions.
type PipelineSource interface {
	Pipeline(name string) (Pipeline, error)
}

// CachingPipelineSource builds pipelines on demand through a user-supplied
// builder and keeps them in a frame-TTL cache. Pipelines that go unused for
// [cache.DefaultTTL] frames are destroyed through the eviction callback.
type CachingPipelineSource struct {
	cache *cache.Cache[string, Pipeline]
	build func(name string) (Pipeline, error)
}

// NewCachingPipelineSource creates a source that builds missing pipelines
// with build and destroys evicted ones with destroy. destroy may be nil.
func NewCachingPipelineSource(build func(name string) (Pipeline, error), destroy func(Pipeline)) *CachingPipelineSource {
	var opts []cache.Option[string, Pipeline]
	if destroy != nil {
		opts = append(opts, cache.WithEvict[string, Pipeline](func(_ string, p Pipeline) {
			destroy(p)
		}))
	}
	return &CachingPipelineSource{
		cache: cache.New[string, Pipeline](opts...),
		build: build,
	}
}

// Pipeline returns the pipeline registered under name, building it on the
// first request.
func (s *CachingPipelineSource) Pipeline(name string) (Pipeline, error) {
	return s.cache.GetOrCreate(name, func() (Pipeline, error) {
		return s.build(name)
	})
}

// Pin keeps the named pipeline alive regardless of use. It reports whether
// the pipeline was present in the cache.
func (s *CachingPipelineSource) Pin(name string) bool {
	return s.cache.SetPersistent(name, true)
}

// NextFrame advances the cache TTLs. Call once per frame, after submission.
func (s *CachingPipelineSource) NextFrame() {
	s.cache.NextFrame()
}

// Stats reports cache hit, miss and eviction counts.
func (s *CachingPipelineSource) Stats() (hits, misses, evictions uint64) {
	return s.cache.Stats()
}
