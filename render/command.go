package render

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/pipeline"
)

// BufferBinding binds a buffer region at a bind-group binding index.
type BufferBinding struct {
	Name    string
	Binding uint32
	View    BufferView
}

// ImageBinding binds a texture view and sampler pair.
type ImageBinding struct {
	Name           string
	TextureBinding uint32
	SamplerBinding uint32
	Texture        hal.TextureView
	Sampler        hal.Sampler
}

// Command is a single draw instruction: pipeline, stencil reference,
// vertex buffer, and the resource bindings for one invocation. Commands
// are created fresh per draw and consumed once by the pass.
type Command struct {
	Label            string
	Pipeline         *pipeline.Pipeline
	StencilReference uint32

	Vertices    BufferView
	VertexCount uint32

	Buffers []BufferBinding
	Images  []ImageBinding
}
