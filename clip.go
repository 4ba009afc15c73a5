// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package runtimefx

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/pipeline"
	"github.com/gogpu/runtimefx/render"
	"github.com/gogpu/runtimefx/shader"
)

// ClipRestorer issues the follow-up draw that undoes a primary draw's
// stencil contribution. It runs against the same pass as the primary
// draw, with the same entity.
type ClipRestorer interface {
	Render(rc *RenderContext, entity Entity, pass *render.Pass) error
}

// StencilRestore resets stencil values raised above the entity's clip
// depth back down to it. Color writes are disabled, so the draw only
// touches the stencil attachment: wherever the primary draw
// incremented the buffer past ClipDepth, the restore replaces the
// stored value with ClipDepth again.
type StencilRestore struct{}

// Render appends the restore command to the pass.
func (StencilRestore) Render(rc *RenderContext, entity Entity, pass *render.Pass) error {
	plan, err := shader.BuildPlan(nil)
	if err != nil {
		return err
	}

	desc := &pipeline.Descriptor{
		Label:              "stencil_restore",
		VertexFunction:     rc.vertexFn,
		FragmentFunction:   rc.restoreFn,
		VertexLayout:       effectVertexLayout(),
		BindingLayout:      plan.LayoutEntries(),
		ColorFormat:        rc.ColorFormat,
		ColorWriteDisabled: true,
		HasStencil:         true,
		StencilFormat:      rc.StencilFormat,
		StencilCompare:     gputypes.CompareFunctionLess,
		StencilPassOp:      hal.StencilOperationReplace,
		Topology:           gputypes.PrimitiveTopologyTriangleList,
	}
	pipe, err := rc.Pipelines.GetOrCreate(desc)
	if err != nil {
		return err
	}

	geom, err := CoverGeometry{}.Resolve(rc, entity, pass)
	if err != nil {
		return err
	}
	mvp := pass.TransientsBuffer().EmplaceFloats(geom.Transform[:], render.DefaultUniformAlignment)

	return pass.AddCommand(&render.Command{
		Label:            "stencil_restore",
		Pipeline:         pipe,
		StencilReference: entity.ClipDepth,
		Vertices:         geom.Vertices,
		VertexCount:      geom.VertexCount,
		Buffers: []render.BufferBinding{
			{Name: "transform", Binding: shader.VertexUniformBinding, View: mvp},
		},
	})
}
