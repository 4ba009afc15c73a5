package runtimefx

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/runtimefx/render"
)

// GeometryResult is the resolved vertex data a geometry hands back for
// one draw.
type GeometryResult struct {
	// Vertices is a view into the pass's transient buffer holding
	// packed float32x2 positions in pixel space.
	Vertices    render.BufferView
	VertexCount uint32
	Topology    gputypes.PrimitiveTopology

	// Transform is the column-major model-view-projection matrix for
	// the vertex stage's uniform.
	Transform [16]float32

	// PreventOverdraw marks geometry that must not be drawn twice at
	// the same pixel. The effect follows such a draw with a stencil
	// restore.
	PreventOverdraw bool
}

// Geometry produces vertex data for an effect draw. Implementations
// write vertices into the pass's transient buffer during Resolve.
type Geometry interface {
	Resolve(rc *RenderContext, entity Entity, pass *render.Pass) (GeometryResult, error)
}

// CoverGeometry fills the whole render target with two triangles. It
// is the default geometry for runtime effects, which compute their
// coverage in the fragment stage.
type CoverGeometry struct {
	// PreventOverdraw requests a stencil restore after the draw.
	PreventOverdraw bool
}

// Resolve writes a full-target quad into the pass's transient buffer.
func (g CoverGeometry) Resolve(rc *RenderContext, entity Entity, pass *render.Pass) (GeometryResult, error) {
	w := float32(pass.Width())
	h := float32(pass.Height())
	quad := []float32{
		0, 0, w, 0, 0, h,
		w, 0, w, h, 0, h,
	}
	view := pass.TransientsBuffer().EmplaceFloats(quad, 0)
	return GeometryResult{
		Vertices:        view,
		VertexCount:     6,
		Topology:        gputypes.PrimitiveTopologyTriangleList,
		Transform:       entity.Transform.MVP(pass.Width(), pass.Height()),
		PreventOverdraw: g.PreventOverdraw,
	}, nil
}
