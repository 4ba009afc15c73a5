// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// VertexUniformBinding is the bind-group binding index reserved for the
// fixed vertex stage's transform uniform. Fragment uniform bindings
// start after it.
const VertexUniformBinding = 0

// UnsupportedUniformError reports a uniform whose declared type cannot
// be bound. The caller decides whether this skips or aborts the draw.
type UnsupportedUniformError struct {
	Name string
	Type UniformType
}

func (e *UnsupportedUniformError) Error() string {
	return fmt.Sprintf("shader: unsupported uniform type %s for %q", e.Type, e.Name)
}

// TextureCountError reports a program that declares more sampled-image
// uniforms than the caller supplied texture inputs for.
type TextureCountError struct {
	Required int
	Supplied int
}

func (e *TextureCountError) Error() string {
	return fmt.Sprintf("shader: program requires %d texture inputs, %d supplied",
		e.Required, e.Supplied)
}

// PlanEntry maps one uniform to its resolved binding slots.
//
// BufferSlot advances once per uniform in declaration order, image
// uniforms included. ImageSlot advances only for sampled images and is
// -1 for everything else; it doubles as the texture-input index the
// image consumes. Binding indices are final bind-group positions.
type PlanEntry struct {
	Uniform    Uniform
	BufferSlot int
	ImageSlot  int

	BufferBinding  uint32 // scalar uniforms only
	TextureBinding uint32 // sampled images only
	SamplerBinding uint32 // sampled images only
}

// BindingPlan is the per-program resolution of uniform metadata into
// binding slots, computed once per program version instead of recounted
// on every draw.
type BindingPlan struct {
	entries    []PlanEntry
	imageCount int
}

// BuildPlan resolves a uniform list into a binding plan. It returns an
// [UnsupportedUniformError] for the first uniform whose type is neither
// float nor sampled image.
func BuildPlan(uniforms []Uniform) (*BindingPlan, error) {
	p := &BindingPlan{entries: make([]PlanEntry, 0, len(uniforms))}

	// Scalar buffer bindings occupy [1, len(uniforms)]; image bindings
	// follow so the two ranges never collide.
	imageBase := uint32(VertexUniformBinding + 1 + len(uniforms))

	for slot, u := range uniforms {
		e := PlanEntry{Uniform: u, BufferSlot: slot, ImageSlot: -1}
		switch u.Type {
		case TypeSampledImage:
			e.ImageSlot = p.imageCount
			e.TextureBinding = imageBase + uint32(2*p.imageCount)
			e.SamplerBinding = e.TextureBinding + 1
			p.imageCount++
		case TypeFloat:
			e.BufferBinding = uint32(VertexUniformBinding + 1 + slot)
		default:
			return nil, &UnsupportedUniformError{Name: u.Name, Type: u.Type}
		}
		p.entries = append(p.entries, e)
	}
	return p, nil
}

// Entries returns the plan's entries in uniform declaration order.
func (p *BindingPlan) Entries() []PlanEntry { return p.entries }

// ImageCount returns the number of sampled-image uniforms in the plan.
func (p *BindingPlan) ImageCount() int { return p.imageCount }

// Validate checks that the supplied texture-input count covers every
// sampled-image uniform. Returns a [TextureCountError] on mismatch.
func (p *BindingPlan) Validate(textureCount int) error {
	if p.imageCount > textureCount {
		return &TextureCountError{Required: p.imageCount, Supplied: textureCount}
	}
	return nil
}

// LayoutEntries returns the bind-group layout for a pipeline using this
// plan: the vertex transform uniform at binding 0, one uniform buffer
// per scalar uniform, and a texture+sampler pair per sampled image.
func (p *BindingPlan) LayoutEntries() []gputypes.BindGroupLayoutEntry {
	entries := []gputypes.BindGroupLayoutEntry{
		{
			Binding:    VertexUniformBinding,
			Visibility: gputypes.ShaderStageVertex,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		},
	}
	for _, e := range p.entries {
		if e.ImageSlot >= 0 {
			entries = append(entries,
				gputypes.BindGroupLayoutEntry{
					Binding:    e.TextureBinding,
					Visibility: gputypes.ShaderStageFragment,
					Texture: &gputypes.TextureBindingLayout{
						SampleType:    gputypes.TextureSampleTypeFloat,
						ViewDimension: gputypes.TextureViewDimension2D,
					},
				},
				gputypes.BindGroupLayoutEntry{
					Binding:    e.SamplerBinding,
					Visibility: gputypes.ShaderStageFragment,
					Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
				},
			)
			continue
		}
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    e.BufferBinding,
			Visibility: gputypes.ShaderStageFragment,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
	}
	return entries
}
