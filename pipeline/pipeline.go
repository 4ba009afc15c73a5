// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package pipeline caches compiled render pipelines by descriptor.
//
// Pipeline creation is expensive because it involves shader compilation
// and validation. The cache keys pipelines by full descriptor equality:
// two descriptors with identical field values always resolve to the
// identical pipeline object, so repeated draws with unchanged state
// never recompile.
package pipeline

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/shader"
)

// Pipeline cache errors.
var (
	// ErrNilDevice is returned when creating a cache without a device.
	ErrNilDevice = errors.New("pipeline: device is nil")

	// ErrNilDescriptor is returned when fetching with a nil descriptor.
	ErrNilDescriptor = errors.New("pipeline: descriptor is nil")

	// ErrNilFunction is returned when a descriptor is missing a shader stage.
	ErrNilFunction = errors.New("pipeline: shader function is nil")
)

// Descriptor is the composite cache key for a render pipeline: shader
// stages, vertex layout, bind-group layout shape, attachment formats,
// and blend/stencil state. Field-wise equality is the cache contract;
// the fragment function carries its program version, so descriptors
// built against a stale function never collide with recompiled ones.
type Descriptor struct {
	Label string

	VertexFunction   *shader.Function
	FragmentFunction *shader.Function

	VertexLayout  []gputypes.VertexBufferLayout
	BindingLayout []gputypes.BindGroupLayoutEntry

	ColorFormat        gputypes.TextureFormat
	BlendEnabled       bool
	ColorWriteDisabled bool

	HasStencil     bool
	StencilFormat  gputypes.TextureFormat
	StencilCompare gputypes.CompareFunction
	StencilPassOp  hal.StencilOperation

	Topology gputypes.PrimitiveTopology
	CullMode gputypes.CullMode

	// SampleCount is samples per pixel; 0 means 1 (no MSAA).
	SampleCount uint32
}

// Hash computes an FNV-1a hash over every field that affects rendering
// behavior. Equal descriptors hash equal; collisions are resolved by
// [Descriptor.Equal] at lookup time.
func (d *Descriptor) Hash() uint64 {
	h := fnv.New64a()

	hashFunction(h, d.VertexFunction)
	hashFunction(h, d.FragmentFunction)

	hashWriteUint32(h, uint32(len(d.VertexLayout)))
	for i := range d.VertexLayout {
		layout := &d.VertexLayout[i]
		hashWriteUint64(h, layout.ArrayStride)
		hashWriteUint32(h, uint32(layout.StepMode))
		hashWriteUint32(h, uint32(len(layout.Attributes)))
		for j := range layout.Attributes {
			attr := &layout.Attributes[j]
			hashWriteUint32(h, attr.ShaderLocation)
			hashWriteUint32(h, uint32(attr.Format))
			hashWriteUint64(h, attr.Offset)
		}
	}

	hashWriteUint32(h, uint32(len(d.BindingLayout)))
	for i := range d.BindingLayout {
		e := &d.BindingLayout[i]
		hashWriteUint32(h, e.Binding)
		hashWriteUint32(h, uint32(e.Visibility))
		hashWriteBool(h, e.Buffer != nil)
		hashWriteBool(h, e.Texture != nil)
		hashWriteBool(h, e.Sampler != nil)
	}

	hashWriteUint32(h, uint32(d.ColorFormat))
	hashWriteBool(h, d.BlendEnabled)
	hashWriteBool(h, d.ColorWriteDisabled)

	hashWriteBool(h, d.HasStencil)
	hashWriteUint32(h, uint32(d.StencilFormat))
	hashWriteUint32(h, uint32(d.StencilCompare))
	hashWriteUint32(h, uint32(d.StencilPassOp))

	hashWriteUint32(h, uint32(d.Topology))
	hashWriteUint32(h, uint32(d.CullMode))
	hashWriteUint32(h, d.SampleCount)

	return h.Sum64()
}

// Equal reports whether two descriptors are field-wise equal. The label
// is excluded: it is debug metadata, not pipeline state.
func (d *Descriptor) Equal(o *Descriptor) bool {
	if d.VertexFunction != o.VertexFunction ||
		d.FragmentFunction != o.FragmentFunction ||
		d.ColorFormat != o.ColorFormat ||
		d.BlendEnabled != o.BlendEnabled ||
		d.ColorWriteDisabled != o.ColorWriteDisabled ||
		d.HasStencil != o.HasStencil ||
		d.StencilFormat != o.StencilFormat ||
		d.StencilCompare != o.StencilCompare ||
		d.StencilPassOp != o.StencilPassOp ||
		d.Topology != o.Topology ||
		d.CullMode != o.CullMode ||
		d.SampleCount != o.SampleCount {
		return false
	}
	if len(d.VertexLayout) != len(o.VertexLayout) {
		return false
	}
	for i := range d.VertexLayout {
		a, b := &d.VertexLayout[i], &o.VertexLayout[i]
		if a.ArrayStride != b.ArrayStride || a.StepMode != b.StepMode ||
			len(a.Attributes) != len(b.Attributes) {
			return false
		}
		for j := range a.Attributes {
			if a.Attributes[j] != b.Attributes[j] {
				return false
			}
		}
	}
	if len(d.BindingLayout) != len(o.BindingLayout) {
		return false
	}
	for i := range d.BindingLayout {
		a, b := &d.BindingLayout[i], &o.BindingLayout[i]
		if a.Binding != b.Binding || a.Visibility != b.Visibility ||
			(a.Buffer != nil) != (b.Buffer != nil) ||
			(a.Texture != nil) != (b.Texture != nil) ||
			(a.Sampler != nil) != (b.Sampler != nil) {
			return false
		}
	}
	return true
}

// Pipeline is a compiled, ready-to-bind render pipeline together with
// the layouts it was created from.
type Pipeline struct {
	desc       Descriptor
	raw        hal.RenderPipeline
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
}

// Raw returns the underlying hal render pipeline.
func (p *Pipeline) Raw() hal.RenderPipeline { return p.raw }

// BindGroupLayout returns the group-0 bind group layout, used to build
// bind groups for draws with this pipeline.
func (p *Pipeline) BindGroupLayout() hal.BindGroupLayout { return p.bindLayout }

// Descriptor returns a copy of the descriptor the pipeline was built from.
func (p *Pipeline) Descriptor() Descriptor { return p.desc }

// destroy releases the pipeline's GPU resources in reverse creation order.
func (p *Pipeline) destroy(device hal.Device) {
	if p.raw != nil {
		device.DestroyRenderPipeline(p.raw)
	}
	if p.pipeLayout != nil {
		device.DestroyPipelineLayout(p.pipeLayout)
	}
	if p.bindLayout != nil {
		device.DestroyBindGroupLayout(p.bindLayout)
	}
}

// Cache stores compiled pipelines indexed by descriptor hash, with
// field-wise equality resolving hash collisions.
//
// Thread Safety:
// Cache is safe for concurrent use. It uses RWMutex with double-check
// locking so concurrent creation of the same descriptor resolves to a
// single winning pipeline.
type Cache struct {
	device hal.Device

	mu      sync.RWMutex
	entries map[uint64][]*Pipeline

	hits     atomic.Uint64
	misses   atomic.Uint64
	compiles atomic.Uint64
}

// NewCache creates an empty pipeline cache for the device.
func NewCache(device hal.Device) (*Cache, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	return &Cache{
		device:  device,
		entries: make(map[uint64][]*Pipeline),
	}, nil
}

// GetOrCreate returns the cached pipeline for the descriptor, compiling
// one on first use. Identical descriptors always return the identical
// *Pipeline; the first writer wins under concurrent misses.
func (c *Cache) GetOrCreate(desc *Descriptor) (*Pipeline, error) {
	if desc == nil {
		return nil, ErrNilDescriptor
	}
	if desc.VertexFunction == nil || desc.FragmentFunction == nil {
		return nil, ErrNilFunction
	}

	key := desc.Hash()

	// Fast path: read lock.
	c.mu.RLock()
	if p := findEqual(c.entries[key], desc); p != nil {
		c.mu.RUnlock()
		c.hits.Add(1)
		return p, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check.
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := findEqual(c.entries[key], desc); p != nil {
		c.hits.Add(1)
		return p, nil
	}

	p, err := c.create(desc)
	if err != nil {
		return nil, err
	}
	c.entries[key] = append(c.entries[key], p)
	c.misses.Add(1)
	return p, nil
}

// findEqual resolves hash collisions by field-wise comparison.
func findEqual(bucket []*Pipeline, desc *Descriptor) *Pipeline {
	for _, p := range bucket {
		if p.desc.Equal(desc) {
			return p
		}
	}
	return nil
}

// create compiles a pipeline from the descriptor. Caller holds c.mu.
func (c *Cache) create(desc *Descriptor) (*Pipeline, error) {
	bindLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label + "_bind_layout",
		Entries: desc.BindingLayout,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: create bind group layout: %w", err)
	}

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		c.device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("pipeline: create pipeline layout: %w", err)
	}

	writeMask := gputypes.ColorWriteMaskAll
	if desc.ColorWriteDisabled {
		writeMask = gputypes.ColorWriteMaskNone
	}
	target := gputypes.ColorTargetState{
		Format:    desc.ColorFormat,
		WriteMask: writeMask,
	}
	if desc.BlendEnabled {
		blend := gputypes.BlendStatePremultiplied()
		target.Blend = &blend
	}

	var depthStencil *hal.DepthStencilState
	if desc.HasStencil {
		face := hal.StencilFaceState{
			Compare:     desc.StencilCompare,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      desc.StencilPassOp,
		}
		depthStencil = &hal.DepthStencilState{
			Format:            desc.StencilFormat,
			DepthWriteEnabled: false,
			DepthCompare:      gputypes.CompareFunctionAlways,
			StencilFront:      face,
			StencilBack:       face,
			StencilReadMask:   0xFF,
			StencilWriteMask:  0xFF,
		}
	}

	sampleCount := desc.SampleCount
	if sampleCount == 0 {
		sampleCount = 1
	}

	raw, err := c.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: pipeLayout,
		Vertex: hal.VertexState{
			Module:     desc.VertexFunction.Module,
			EntryPoint: desc.VertexFunction.Name,
			Buffers:    desc.VertexLayout,
		},
		Fragment: &hal.FragmentState{
			Module:     desc.FragmentFunction.Module,
			EntryPoint: desc.FragmentFunction.Name,
			Targets:    []gputypes.ColorTargetState{target},
		},
		DepthStencil: depthStencil,
		Multisample: gputypes.MultisampleState{
			Count: sampleCount,
			Mask:  0xFFFFFFFF,
		},
		Primitive: gputypes.PrimitiveState{
			Topology: desc.Topology,
			CullMode: desc.CullMode,
		},
	})
	if err != nil {
		c.device.DestroyPipelineLayout(pipeLayout)
		c.device.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("pipeline: create render pipeline: %w", err)
	}

	c.compiles.Add(1)
	return &Pipeline{
		desc:       *desc,
		raw:        raw,
		bindLayout: bindLayout,
		pipeLayout: pipeLayout,
	}, nil
}

// RemoveWithFragment destroys and removes every cached pipeline whose
// descriptor references the given fragment function. Called before a
// stale function is unregistered so no later draw can fetch a pipeline
// built against it. Returns the number of pipelines removed.
func (c *Cache) RemoveWithFragment(fn *shader.Function) int {
	if fn == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, bucket := range c.entries {
		kept := bucket[:0]
		for _, p := range bucket {
			if p.desc.FragmentFunction == fn {
				p.destroy(c.device)
				removed++
				continue
			}
			kept = append(kept, p)
		}
		if len(kept) == 0 {
			delete(c.entries, key)
		} else {
			c.entries[key] = kept
		}
	}
	return removed
}

// Size returns the number of cached pipelines.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, bucket := range c.entries {
		n += len(bucket)
	}
	return n
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// CompileCount returns the number of pipelines compiled since creation.
// Unlike the miss counter it is never reset, which makes it the right
// probe for "no duplicate compilation" assertions.
func (c *Cache) CompileCount() uint64 { return c.compiles.Load() }

// DestroyAll destroys all cached pipelines and clears the cache.
func (c *Cache) DestroyAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, bucket := range c.entries {
		for _, p := range bucket {
			p.destroy(c.device)
		}
	}
	c.entries = make(map[uint64][]*Pipeline)
	c.hits.Store(0)
	c.misses.Store(0)
}

// hashFunction writes a shader function's identity: entrypoint, stage,
// and the program version it was compiled from.
func hashFunction(h hash.Hash64, fn *shader.Function) {
	if fn == nil {
		hashWriteUint32(h, 0)
		return
	}
	hashWriteString(h, fn.Name)
	hashWriteUint32(h, uint32(fn.Stage))
	hashWriteUint64(h, fn.Version)
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

//nolint:gosec // G115: entry point names are short
func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}
