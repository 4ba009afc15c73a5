// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package sampler deduplicates GPU sampler objects by descriptor.
//
// Samplers are small immutable state objects; creating one per draw
// wastes device resources. The cache keeps one hal.Sampler per unique
// Descriptor and hands out the shared instance.
package sampler

import (
	"fmt"
	"hash/fnv"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/cache"
)

// Descriptor describes a sampler's filtering and addressing state.
// It is comparable and used directly as the cache key: two descriptors
// with equal fields always resolve to the same GPU sampler.
type Descriptor struct {
	Label        string
	MinFilter    gputypes.FilterMode
	MagFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
}

// DefaultDescriptor returns the descriptor used when a texture binding
// does not specify one: linear filtering, clamp-to-edge addressing.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		MinFilter:    gputypes.FilterModeLinear,
		MagFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeLinear,
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
	}
}

// hashDescriptor computes the shard hash for a descriptor.
// The label is excluded: it is debug metadata, not sampler state.
func hashDescriptor(d Descriptor) uint64 {
	h := fnv.New64a()
	buf := [6]byte{
		byte(d.MinFilter), byte(d.MagFilter), byte(d.MipmapFilter),
		byte(d.AddressModeU), byte(d.AddressModeV), byte(d.AddressModeW),
	}
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// created pairs a sampler with its creation error so that concurrent
// GetOrCreate callers for one key observe a single outcome.
type created struct {
	sampler hal.Sampler
	err     error
}

// Cache deduplicates samplers per device. Samplers displaced by LRU
// eviction are destroyed; hold a returned sampler only for the draw
// being recorded.
//
// Thread Safety: all methods are safe for concurrent use.
type Cache struct {
	device  hal.Device
	entries *cache.ShardedCache[Descriptor, created]
}

// NewCache creates a sampler cache for the given device.
func NewCache(device hal.Device) *Cache {
	c := &Cache{
		device:  device,
		entries: cache.NewSharded[Descriptor, created](cache.DefaultCapacity, hashDescriptor),
	}
	// Samplers displaced by LRU eviction are GPU objects; release them
	// as they fall out or they leak until device teardown.
	c.entries.SetOnEvict(func(_ Descriptor, e created) {
		if e.sampler != nil {
			c.device.DestroySampler(e.sampler)
		}
	})
	return c
}

// Get returns the shared sampler for the descriptor, creating it on
// first use. Equal descriptors always return the same sampler.
func (c *Cache) Get(desc Descriptor) (hal.Sampler, error) {
	key := desc
	key.Label = "" // label does not affect identity
	e := c.entries.GetOrCreate(key, func() created {
		s, err := c.device.CreateSampler(&hal.SamplerDescriptor{
			Label:        desc.Label,
			AddressModeU: desc.AddressModeU,
			AddressModeV: desc.AddressModeV,
			AddressModeW: desc.AddressModeW,
			MagFilter:    desc.MagFilter,
			MinFilter:    desc.MinFilter,
			MipmapFilter: desc.MipmapFilter,
		})
		if err != nil {
			return created{err: fmt.Errorf("sampler: create: %w", err)}
		}
		return created{sampler: s}
	})
	if e.err != nil {
		// Drop the failed entry so a later attempt can retry.
		c.entries.Delete(key)
		return nil, e.err
	}
	return e.sampler, nil
}

// Len returns the number of distinct samplers held by the cache.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Destroy releases all cached samplers. The cache must not be used
// after Destroy returns.
func (c *Cache) Destroy() {
	c.entries.Range(func(_ Descriptor, e created) bool {
		if e.sampler != nil {
			c.device.DestroySampler(e.sampler)
		}
		return true
	})
	c.entries.Clear()
}
