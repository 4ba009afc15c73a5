// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package runtimefx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/runtimefx/pipeline"
	"github.com/gogpu/runtimefx/render"
	"github.com/gogpu/runtimefx/shader"
)

// ErrNilProgram is returned when rendering an effect without a program.
var ErrNilProgram = errors.New("runtimefx: effect has no program")

// UniformDataError reports uniform descriptors that address bytes
// beyond the raw uniform data supplied for a draw.
type UniformDataError struct {
	Name string
	Need int
	Have int
}

func (e *UniformDataError) Error() string {
	return fmt.Sprintf("runtimefx: uniform %q needs %d bytes of uniform data, have %d", e.Name, e.Need, e.Have)
}

// RuntimeEffect draws a user-supplied fragment program over a
// geometry, binding the caller's uniform data and texture inputs per
// draw. The zero value is not usable; construct with NewRuntimeEffect.
//
// A RuntimeEffect is a per-draw builder for a single producer. The
// caches it renders through are shared and safe for concurrent use.
type RuntimeEffect struct {
	program  *shader.Program
	uniforms []byte
	textures []shader.TextureInput

	geometry Geometry
	restorer ClipRestorer

	// SkipUnsupported makes draws whose program declares a uniform
	// type this renderer cannot bind log and succeed without emitting
	// a command, instead of failing the draw. Defaults to true.
	SkipUnsupported bool
}

// NewRuntimeEffect creates an effect with default cover geometry and
// stencil clip restore.
func NewRuntimeEffect(program *shader.Program) *RuntimeEffect {
	return &RuntimeEffect{
		program:         program,
		geometry:        CoverGeometry{},
		restorer:        StencilRestore{},
		SkipUnsupported: true,
	}
}

// SetProgram replaces the effect's fragment program.
func (e *RuntimeEffect) SetProgram(program *shader.Program) {
	e.program = program
}

// SetUniformData sets the raw uniform byte buffer for subsequent
// draws. The buffer is shared with the caller and read at draw time;
// it must stay unchanged until Render returns.
func (e *RuntimeEffect) SetUniformData(data []byte) {
	e.uniforms = data
}

// SetTextureInputs sets the ordered texture inputs. Input i is bound
// to the i-th sampled-image uniform of the program.
func (e *RuntimeEffect) SetTextureInputs(inputs []shader.TextureInput) {
	e.textures = inputs
}

// SetGeometry replaces the effect's geometry.
func (e *RuntimeEffect) SetGeometry(g Geometry) {
	e.geometry = g
}

// SetClipRestorer replaces the collaborator used after draws that
// request overdraw prevention.
func (e *RuntimeEffect) SetClipRestorer(r ClipRestorer) {
	e.restorer = r
}

// Render appends the effect's draw to the pass. The sequence is:
// resolve the compiled program (compiling or recompiling as needed),
// resolve geometry, fetch or build the pipeline, stage the transform
// and uniform data into the pass's transient buffer, and append the
// command. If the geometry requested overdraw prevention, exactly one
// clip-restore draw follows the primary command.
//
// Any failure leaves the pass's command list unchanged.
func (e *RuntimeEffect) Render(ctx context.Context, rc *RenderContext, entity Entity, pass *render.Pass) error {
	if e.program == nil {
		return ErrNilProgram
	}

	fn, err := rc.ensureCompiled(ctx, e.program)
	if err != nil {
		return err
	}

	plan, err := e.program.Plan()
	if err != nil {
		var unsupported *shader.UnsupportedUniformError
		if errors.As(err, &unsupported) && e.SkipUnsupported {
			Logger().Warn("runtimefx: skipping draw",
				slog.String("entrypoint", e.program.Entrypoint()),
				slog.String("uniform", unsupported.Name),
				slog.String("type", unsupported.Type.String()))
			return nil
		}
		return err
	}
	if err := plan.Validate(len(e.textures)); err != nil {
		return err
	}

	geom, err := e.geometry.Resolve(rc, entity, pass)
	if err != nil {
		return err
	}

	desc := &pipeline.Descriptor{
		Label:            e.program.Entrypoint(),
		VertexFunction:   rc.vertexFn,
		FragmentFunction: fn,
		VertexLayout:     effectVertexLayout(),
		BindingLayout:    plan.LayoutEntries(),
		ColorFormat:      rc.ColorFormat,
		BlendEnabled:     entity.BlendMode.blendEnabled(),
		Topology:         geom.Topology,
	}
	if geom.PreventOverdraw {
		desc.HasStencil = true
		desc.StencilFormat = rc.StencilFormat
		desc.StencilCompare = gputypes.CompareFunctionEqual
		desc.StencilPassOp = hal.StencilOperationIncrementClamp
	}
	pipe, err := rc.Pipelines.GetOrCreate(desc)
	if err != nil {
		return err
	}

	cmd := &render.Command{
		Label:            e.program.Entrypoint(),
		Pipeline:         pipe,
		StencilReference: entity.ClipDepth,
		Vertices:         geom.Vertices,
		VertexCount:      geom.VertexCount,
	}
	if err := e.bindResources(rc, pass, plan, geom, cmd); err != nil {
		return err
	}
	if err := pass.AddCommand(cmd); err != nil {
		return err
	}

	if geom.PreventOverdraw {
		return e.restorer.Render(rc, entity, pass)
	}
	return nil
}

// bindResources stages the transform and every planned uniform into
// the pass's transient buffer and attaches the resulting bindings to
// the command. The vertex transform is bound first, unconditionally;
// fragment bindings follow the plan's order.
func (e *RuntimeEffect) bindResources(rc *RenderContext, pass *render.Pass, plan *shader.BindingPlan, geom GeometryResult, cmd *render.Command) error {
	tb := pass.TransientsBuffer()

	mvp := tb.EmplaceFloats(geom.Transform[:], render.DefaultUniformAlignment)
	cmd.Buffers = append(cmd.Buffers, render.BufferBinding{
		Name:    "transform",
		Binding: shader.VertexUniformBinding,
		View:    mvp,
	})

	for _, entry := range plan.Entries() {
		u := entry.Uniform
		if u.Type == shader.TypeSampledImage {
			in := e.textures[entry.ImageSlot]
			smp, err := rc.Samplers.Get(in.Sampler)
			if err != nil {
				return err
			}
			cmd.Images = append(cmd.Images, render.ImageBinding{
				Name:           u.Name,
				TextureBinding: entry.TextureBinding,
				SamplerBinding: entry.SamplerBinding,
				Texture:        in.Texture,
				Sampler:        smp,
			})
			continue
		}

		offset := u.Location * 4
		if offset < 0 || u.ByteSize < 0 || offset+u.ByteSize > len(e.uniforms) {
			return &UniformDataError{Name: u.Name, Need: offset + u.ByteSize, Have: len(e.uniforms)}
		}
		alignment := uint64(u.BitWidth / 8)
		if alignment < render.DefaultUniformAlignment {
			alignment = render.DefaultUniformAlignment
		}
		view := tb.Emplace(e.uniforms[offset:offset+u.ByteSize], alignment)
		cmd.Buffers = append(cmd.Buffers, render.BufferBinding{
			Name:    u.Name,
			Binding: entry.BufferBinding,
			View:    view,
		})
	}
	return nil
}

// effectVertexLayout describes the fixed vertex stream every effect
// pipeline consumes: packed float32x2 positions at shader location 0.
func effectVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 8,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}
